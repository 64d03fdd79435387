package types

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is an append-only annotation on a chat, visible to the agent owner.
type Feedback struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID   uuid.UUID `gorm:"index;not null" json:"agent_id"`
	Agent     *Agent    `gorm:"constraint:OnDelete:CASCADE;foreignKey:AgentID;references:ID" json:"-"`
	ChatID    uuid.UUID `gorm:"index;not null" json:"chat_id"`
	Comment   string    `gorm:"not null;column:comment" json:"comment"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}
