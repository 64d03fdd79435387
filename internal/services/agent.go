package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/requestdata"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

type AgentInput struct {
	Name         string
	Description  string
	Model        string
	Instructions string
}

// PublicAgentView is what the share-link landing page sees: presentational
// fields only, never the webhook secret or assistant id.
type PublicAgentView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CompanyName string    `json:"company_name,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
}

type AgentService interface {
	Create(ctx context.Context, input AgentInput) (*types.Agent, error)
	List(ctx context.Context) ([]*types.Agent, error)
	Get(ctx context.Context, agentID uuid.UUID) (*types.Agent, error)
	Update(ctx context.Context, agentID uuid.UUID, input AgentInput) (*types.Agent, error)
	// Delete removes the local agent record. The remote assistant is left in
	// place; DeleteRemoteAssistant is a separate, optional action.
	Delete(ctx context.Context, agentID uuid.UUID) error
	DeleteRemoteAssistant(ctx context.Context, agentID uuid.UUID) error
	PublicView(ctx context.Context, agentID uuid.UUID) (*PublicAgentView, error)
}

type agentService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	agentRepo     repos.AgentRepo
	openaiFactory openai.Factory
}

func NewAgentService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, agentRepo repos.AgentRepo, openaiFactory openai.Factory) AgentService {
	return &agentService{
		db:            db,
		log:           log.With("service", "AgentService"),
		userRepo:      userRepo,
		agentRepo:     agentRepo,
		openaiFactory: openaiFactory,
	}
}

func (s *agentService) requireOwnerWithKey(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	user, err := s.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apierr.NotFound("user")
	}
	if user.OpenAIAPIKey == "" {
		return nil, apierr.Validation("a provider API key must be configured before managing agents")
	}
	return user, nil
}

func validateAgentInput(input *AgentInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Model = strings.TrimSpace(input.Model)
	if input.Name == "" {
		return apierr.Validation("agent name is required")
	}
	if input.Model == "" {
		return apierr.Validation("agent model is required")
	}
	return nil
}

func (s *agentService) Create(ctx context.Context, input AgentInput) (*types.Agent, error) {
	user, err := s.requireOwnerWithKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAgentInput(&input); err != nil {
		return nil, err
	}

	bridge := s.openaiFactory(user.OpenAIAPIKey)
	assistantID, err := bridge.CreateAssistant(ctx, input.Name, input.Instructions, input.Model)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("create assistant: %w", err))
	}

	agent := &types.Agent{
		ID:            uuid.New(),
		UserID:        user.ID,
		Name:          input.Name,
		Description:   strings.TrimSpace(input.Description),
		AssistantID:   assistantID,
		Model:         input.Model,
		Instructions:  input.Instructions,
		WebhookSecret: uuid.New().String(),
	}
	if _, err := s.agentRepo.Create(ctx, nil, agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.log.Info("Agent created", "user_id", user.ID, "agent_id", agent.ID)
	return agent, nil
}

func (s *agentService) List(ctx context.Context) ([]*types.Agent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	agents, err := s.agentRepo.GetByUserID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// Get resolves an agent and enforces ownership.
func (s *agentService) Get(ctx context.Context, agentID uuid.UUID) (*types.Agent, error) {
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
	return agent, nil
}

func (s *agentService) Update(ctx context.Context, agentID uuid.UUID, input AgentInput) (*types.Agent, error) {
	user, err := s.requireOwnerWithKey(ctx)
	if err != nil {
		return nil, err
	}
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := validateAgentInput(&input); err != nil {
		return nil, err
	}

	bridge := s.openaiFactory(user.OpenAIAPIKey)
	if err := bridge.UpdateAssistant(ctx, agent.AssistantID, input.Name, input.Instructions, input.Model); err != nil {
		return nil, apierr.Upstream(fmt.Errorf("update assistant: %w", err))
	}

	agent.Name = input.Name
	agent.Description = strings.TrimSpace(input.Description)
	agent.Model = input.Model
	agent.Instructions = input.Instructions
	if err := s.agentRepo.Update(ctx, nil, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return agent, nil
}

func (s *agentService) Delete(ctx context.Context, agentID uuid.UUID) error {
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if err := s.agentRepo.DeleteByID(ctx, nil, agent.ID); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	s.log.Info("Agent deleted", "agent_id", agent.ID)
	return nil
}

func (s *agentService) DeleteRemoteAssistant(ctx context.Context, agentID uuid.UUID) error {
	user, err := s.requireOwnerWithKey(ctx)
	if err != nil {
		return err
	}
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}
	bridge := s.openaiFactory(user.OpenAIAPIKey)
	if err := bridge.DeleteAssistant(ctx, agent.AssistantID); err != nil {
		return apierr.Upstream(fmt.Errorf("delete assistant: %w", err))
	}
	return nil
}

func (s *agentService) PublicView(ctx context.Context, agentID uuid.UUID) (*PublicAgentView, error) {
	agent, err := s.agentRepo.GetByID(ctx, nil, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return nil, apierr.NotFound("agent")
	}
	view := &PublicAgentView{
		ID:          agent.ID,
		Name:        agent.Name,
		Description: agent.Description,
	}
	owner, err := s.userRepo.GetByID(ctx, nil, agent.UserID)
	if err == nil && owner != nil {
		view.CompanyName = owner.CompanyName
		view.LogoURL = owner.LogoURL
	}
	return view, nil
}
