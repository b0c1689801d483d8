package repository

import (
	"context"

	"delta-backend/internal/domain/model"
)

type ConversationRepository interface {
	Save(ctx context.Context, tx Tx, conv *model.Conversation) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Conversation, error)
	FindAllByUser(ctx context.Context, tx Tx, userID string) ([]*model.Conversation, error)
	UpdateSummary(ctx context.Context, tx Tx, id, summary string) error
}

type MessageRepository interface {
	Save(ctx context.Context, tx Tx, msg *model.Message) error
	// MaxIndex returns the highest message index in the conversation, 0 when empty.
	MaxIndex(ctx context.Context, tx Tx, conversationID string) (int, error)
	// ListRecent returns the last n messages in chronological (index) order.
	ListRecent(ctx context.Context, tx Tx, conversationID string, n int) ([]*model.Message, error)
	// ListAll returns every message in index order.
	ListAll(ctx context.Context, tx Tx, conversationID string) ([]*model.Message, error)
}
