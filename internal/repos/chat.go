package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

type ChatRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
	GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error)
	GetByAgentAndThread(ctx context.Context, tx *gorm.DB, agentID uuid.UUID, threadID string) (*types.Chat, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error)
	GetByAgentID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) ([]*types.Chat, error)
	CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	Touch(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: baseLog.With("repo", "ChatRepo")}
}

func (r *chatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(chat).Error; err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Chat
	if err := transaction.WithContext(ctx).
		Where("id = ?", chatID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *chatRepo) GetByAgentAndThread(ctx context.Context, tx *gorm.DB, agentID uuid.UUID, threadID string) (*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Chat
	if err := transaction.WithContext(ctx).
		Where("agent_id = ? AND thread_id = ?", agentID, threadID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *chatRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Chat
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatRepo) GetByAgentID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) ([]*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Chat
	if err := transaction.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Chat{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Touch bumps updated_at only; every other chat column is immutable.
func (r *chatRepo) Touch(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Chat{}).
		Where("id = ?", chatID).
		Update("updated_at", time.Now()).Error
}
