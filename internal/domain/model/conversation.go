package model

import (
	"time"
)

// Message senders as stored. The provider layer maps "assistant" to its
// native "model" role.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message is one turn half within a conversation. Index is the explicit
// sequential position; ordering is by Index, not by timestamp.
type Message struct {
	ID             string
	ConversationID string
	Index          int
	Sender         string
	Content        string
	CreatedAt      time.Time
}

// Conversation is the aggregate root for one user's chat thread.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewConversation(id, userID, title string) *Conversation {
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}
