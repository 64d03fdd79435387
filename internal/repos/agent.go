package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

type AgentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, agent *types.Agent) (*types.Agent, error)
	GetByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) (*types.Agent, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Agent, error)
	GetByWebhookSecret(ctx context.Context, tx *gorm.DB, secret string) (*types.Agent, error)
	GetByUserAndAssistantID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, assistantID string) (*types.Agent, error)
	Update(ctx context.Context, tx *gorm.DB, agent *types.Agent) error
	DeleteByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) error
}

type agentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentRepo(db *gorm.DB, baseLog *logger.Logger) AgentRepo {
	return &agentRepo{db: db, log: baseLog.With("repo", "AgentRepo")}
}

func (r *agentRepo) Create(ctx context.Context, tx *gorm.DB, agent *types.Agent) (*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, err
	}
	return agent, nil
}

func (r *agentRepo) GetByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) (*types.Agent, error) {
	return r.getOne(ctx, tx, "id = ?", agentID)
}

func (r *agentRepo) GetByWebhookSecret(ctx context.Context, tx *gorm.DB, secret string) (*types.Agent, error) {
	return r.getOne(ctx, tx, "webhook_secret = ?", secret)
}

func (r *agentRepo) getOne(ctx context.Context, tx *gorm.DB, query string, arg interface{}) (*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Agent
	if err := transaction.WithContext(ctx).
		Where(query, arg).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *agentRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Agent
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *agentRepo) GetByUserAndAssistantID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, assistantID string) (*types.Agent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Agent
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND assistant_id = ?", userID, assistantID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *agentRepo) Update(ctx context.Context, tx *gorm.DB, agent *types.Agent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(agent).Error
}

func (r *agentRepo) DeleteByID(ctx context.Context, tx *gorm.DB, agentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", agentID).
		Delete(&types.Agent{}).Error
}
