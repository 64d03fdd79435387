package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password     string    `gorm:"not null;column:password" json:"-"`
	Name         string    `gorm:"column:name" json:"name"`
	CompanyName  string    `gorm:"column:company_name" json:"company_name"`
	OpenAIAPIKey string    `gorm:"column:openai_api_key" json:"-"`
	LogoURL      string    `gorm:"column:logo_url" json:"logo_url"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
