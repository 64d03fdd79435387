package types

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a configured persona bound to one remote assistant. The assistant
// id, model and instructions are typed columns rather than an opaque config
// blob so they can be validated at the store boundary.
type Agent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"index;not null" json:"user_id"`
	User          *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name          string    `gorm:"not null;column:name" json:"name"`
	Description   string    `gorm:"column:description" json:"description"`
	AssistantID   string    `gorm:"index;not null;column:assistant_id" json:"assistant_id"`
	Model         string    `gorm:"not null;column:model" json:"model"`
	Instructions  string    `gorm:"column:instructions" json:"instructions"`
	WebhookSecret string    `gorm:"uniqueIndex;not null;column:webhook_secret" json:"-"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Agent) TableName() string {
	return "agent"
}
