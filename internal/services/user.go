package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/requestdata"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

// UserProfile is the outward view of a user: the stored provider API key is
// replaced by a masked tail so it can be confirmed but never read back.
type UserProfile struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	CompanyName   string    `json:"company_name"`
	LogoURL       string    `json:"logo_url"`
	APIKeyPresent bool      `json:"api_key_present"`
	APIKeyTail    string    `json:"api_key_tail,omitempty"`
}

type UserService interface {
	GetMe(ctx context.Context) (*UserProfile, error)
	UpdateProfile(ctx context.Context, name, companyName string) (*UserProfile, error)
	SetOpenAIKey(ctx context.Context, apiKey string) (*UserProfile, error)
	SetLogo(ctx context.Context, logoURL string) (*UserProfile, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{db: db, log: log.With("service", "UserService"), userRepo: userRepo}
}

func (us *userService) currentUser(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	user, err := us.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apierr.NotFound("user")
	}
	return user, nil
}

func profileOf(user *types.User) *UserProfile {
	p := &UserProfile{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		CompanyName: user.CompanyName,
		LogoURL:     user.LogoURL,
	}
	if user.OpenAIAPIKey != "" {
		p.APIKeyPresent = true
		if n := len(user.OpenAIAPIKey); n > 4 {
			p.APIKeyTail = user.OpenAIAPIKey[n-4:]
		}
	}
	return p
}

func (us *userService) GetMe(ctx context.Context) (*UserProfile, error) {
	user, err := us.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

func (us *userService) UpdateProfile(ctx context.Context, name, companyName string) (*UserProfile, error) {
	user, err := us.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.Validation("name cannot be empty")
	}
	user.Name = name
	user.CompanyName = strings.TrimSpace(companyName)
	if err := us.userRepo.Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return profileOf(user), nil
}

func (us *userService) SetOpenAIKey(ctx context.Context, apiKey string) (*UserProfile, error) {
	user, err := us.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apierr.Validation("api key cannot be empty")
	}
	user.OpenAIAPIKey = apiKey
	if err := us.userRepo.Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	us.log.Info("Provider API key updated", "user_id", user.ID)
	return profileOf(user), nil
}

func (us *userService) SetLogo(ctx context.Context, logoURL string) (*UserProfile, error) {
	user, err := us.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	user.LogoURL = strings.TrimSpace(logoURL)
	if err := us.userRepo.Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return profileOf(user), nil
}
