package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	// Authenticate returns ErrForbidden for a wrong password and ErrNotFound
	// for an unknown username.
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	repo repository.UserRepository
	log  *zerolog.Logger
}

func NewUserUseCase(repo repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{repo: repo, log: &l}
}

func (u *userUC) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.repo.FindByUsername(ctx, nil, username); err == nil {
		return nil, domain.ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := model.NewUser(uuid.NewString(), username, email, string(hash))
	if err := u.repo.Save(ctx, nil, user); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

func (u *userUC) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := u.repo.FindByUsername(ctx, nil, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.repo.FindByID(ctx, nil, id)
}
