package model

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	RegisteredAt time.Time
}

func NewUser(id, username, email, passwordHash string) *User {
	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		RegisteredAt: time.Now(),
	}
}
