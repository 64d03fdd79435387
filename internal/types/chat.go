package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatSource string

const (
	ChatSourceWeb     ChatSource = "web"
	ChatSourceWebhook ChatSource = "webhook"
	ChatSourcePublic  ChatSource = "public"
)

func (s ChatSource) Valid() bool {
	switch s {
	case ChatSourceWeb, ChatSourceWebhook, ChatSourcePublic:
		return true
	}
	return false
}

// Chat is one conversation session. AgentID, UserID and ThreadID are assigned
// at creation and never change; the provider thread id is reused for every
// message exchange in the chat.
type Chat struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID   uuid.UUID      `gorm:"index;not null" json:"agent_id"`
	Agent     *Agent         `gorm:"constraint:OnDelete:CASCADE;foreignKey:AgentID;references:ID" json:"-"`
	UserID    uuid.UUID      `gorm:"index;not null" json:"user_id"`
	ThreadID  string         `gorm:"index;not null;column:thread_id" json:"thread_id"`
	Source    ChatSource     `gorm:"not null;column:source" json:"source"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chat"
}
