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

type FeedbackService interface {
	// Add is called from the public share page, so it is scoped by agent id
	// rather than by an authenticated session.
	Add(ctx context.Context, agentID, chatID uuid.UUID, comment string) (*types.Feedback, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*types.Feedback, error)
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]*types.Feedback, error)
}

type feedbackService struct {
	db           *gorm.DB
	log          *logger.Logger
	agentRepo    repos.AgentRepo
	chatRepo     repos.ChatRepo
	feedbackRepo repos.FeedbackRepo
}

func NewFeedbackService(db *gorm.DB, log *logger.Logger, agentRepo repos.AgentRepo, chatRepo repos.ChatRepo, feedbackRepo repos.FeedbackRepo) FeedbackService {
	return &feedbackService{
		db:           db,
		log:          log.With("service", "FeedbackService"),
		agentRepo:    agentRepo,
		chatRepo:     chatRepo,
		feedbackRepo: feedbackRepo,
	}
}

func (s *feedbackService) Add(ctx context.Context, agentID, chatID uuid.UUID, comment string) (*types.Feedback, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apierr.Validation("feedback comment is required")
	}
	agent, err := s.agentRepo.GetByID(ctx, nil, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return nil, apierr.NotFound("agent")
	}
	chat, err := s.chatRepo.GetByID(ctx, nil, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.AgentID != agentID {
		return nil, apierr.NotFound("chat")
	}

	feedback := &types.Feedback{
		ID:      uuid.New(),
		AgentID: agentID,
		ChatID:  chatID,
		Comment: comment,
	}
	if _, err := s.feedbackRepo.Create(ctx, nil, feedback); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return feedback, nil
}

func (s *feedbackService) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*types.Feedback, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	agent, err := s.agentRepo.GetByID(ctx, nil, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agent == nil || agent.UserID != rd.UserID {
		return nil, apierr.NotFound("agent")
	}
	return s.feedbackRepo.GetByAgentID(ctx, nil, agentID)
}

func (s *feedbackService) ListByChat(ctx context.Context, chatID uuid.UUID) ([]*types.Feedback, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	chat, err := s.chatRepo.GetByID(ctx, nil, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.UserID != rd.UserID {
		return nil, apierr.NotFound("chat")
	}
	return s.feedbackRepo.GetByChatID(ctx, nil, chatID)
}
