package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Message is one entry of a conversation's append-only log.
type Message struct {
	ID             string         `db:"id" json:"id"`
	ConversationID string         `db:"conversation_id" json:"conversationId"`
	Role           string         `db:"role" json:"role"`
	Content        string         `db:"content" json:"content"`
	Metadata       types.JSONText `db:"metadata" json:"metadata"`
	Timestamp      time.Time      `db:"sent_at" json:"timestamp"`
}
