package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// Message is append-only: rows are never mutated or deleted. Ordering within
// a chat is by created_at ascending, id as tiebreaker.
type Message struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    uuid.UUID   `gorm:"index;not null" json:"chat_id"`
	Chat      *Chat       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"-"`
	Role      MessageRole `gorm:"not null;column:role" json:"role"`
	Content   string      `gorm:"not null;column:content" json:"content"`
	CreatedAt time.Time   `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}
