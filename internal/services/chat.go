package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/funnel"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/requestdata"
	"github.com/flexxlabs/agenthub-backend/internal/sse"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

type ChatService interface {
	StartChat(ctx context.Context, agentID uuid.UUID) (*types.Chat, error)
	StartPublicChat(ctx context.Context, agentID uuid.UUID) (*types.Chat, error)
	SendMessage(ctx context.Context, chatID uuid.UUID, text string) (string, error)
	SendPublicMessage(ctx context.Context, chatID uuid.UUID, text string) (string, error)
	ListChats(ctx context.Context) ([]*types.Chat, error)
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error)
	ListPublicMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error)
	// Stage recomputes the chat's funnel stage from its transcript. The stage
	// is derived, never stored.
	Stage(ctx context.Context, chatID uuid.UUID) (funnel.Stage, error)
}

type chatService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	agentRepo     repos.AgentRepo
	chatRepo      repos.ChatRepo
	messageRepo   repos.MessageRepo
	openaiFactory openai.Factory
	notifier      *Notifier
}

func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	agentRepo repos.AgentRepo,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	openaiFactory openai.Factory,
	notifier *Notifier,
) ChatService {
	return &chatService{
		db:            db,
		log:           log.With("service", "ChatService"),
		userRepo:      userRepo,
		agentRepo:     agentRepo,
		chatRepo:      chatRepo,
		messageRepo:   messageRepo,
		openaiFactory: openaiFactory,
		notifier:      notifier,
	}
}

func (s *chatService) StartChat(ctx context.Context, agentID uuid.UUID) (*types.Chat, error) {
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
	return s.startChat(ctx, agent, types.ChatSourceWeb)
}

// StartPublicChat serves the share-link page: no authentication, the chat is
// billed to the agent owner's provider key.
func (s *chatService) StartPublicChat(ctx context.Context, agentID uuid.UUID) (*types.Chat, error) {
	agent, err := s.agentRepo.GetByID(ctx, nil, agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return nil, apierr.NotFound("agent")
	}
	return s.startChat(ctx, agent, types.ChatSourcePublic)
}

func (s *chatService) startChat(ctx context.Context, agent *types.Agent, source types.ChatSource) (*types.Chat, error) {
	owner, err := s.userRepo.GetByID(ctx, nil, agent.UserID)
	if err != nil {
		return nil, fmt.Errorf("load agent owner: %w", err)
	}
	if owner == nil {
		return nil, apierr.NotFound("user")
	}
	if owner.OpenAIAPIKey == "" {
		return nil, apierr.Validation("agent owner has no provider API key configured")
	}

	bridge := s.openaiFactory(owner.OpenAIAPIKey)
	threadID, err := bridge.CreateThread(ctx)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("create thread: %w", err))
	}

	chat := &types.Chat{
		ID:       uuid.New(),
		AgentID:  agent.ID,
		UserID:   agent.UserID,
		ThreadID: threadID,
		Source:   source,
	}
	if _, err := s.chatRepo.Create(ctx, nil, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	s.notifier.Notify(ctx, agent.UserID, sse.EventChatStarted, map[string]any{
		"chat_id":  chat.ID,
		"agent_id": agent.ID,
		"source":   string(source),
	})
	return chat, nil
}

func (s *chatService) SendMessage(ctx context.Context, chatID uuid.UUID, text string) (string, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return "", apierr.Unauthorized("request data not set in context")
	}
	chat, err := s.chatRepo.GetByID(ctx, nil, chatID)
	if err != nil {
		return "", fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.UserID != rd.UserID {
		return "", apierr.NotFound("chat")
	}
	return s.exchange(ctx, chat, text)
}

func (s *chatService) SendPublicMessage(ctx context.Context, chatID uuid.UUID, text string) (string, error) {
	chat, err := s.chatRepo.GetByID(ctx, nil, chatID)
	if err != nil {
		return "", fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.Source != types.ChatSourcePublic {
		return "", apierr.NotFound("chat")
	}
	return s.exchange(ctx, chat, text)
}

// exchange persists the visitor's message, relays it to the assistant and
// persists the reply. A bridge failure after the first append leaves the
// inbound message stored with no reply; callers retry the assistant call, not
// the whole exchange.
func (s *chatService) exchange(ctx context.Context, chat *types.Chat, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apierr.Validation("message text is required")
	}
	agent, err := s.agentRepo.GetByID(ctx, nil, chat.AgentID)
	if err != nil {
		return "", fmt.Errorf("load agent: %w", err)
	}
	if agent == nil {
		return "", apierr.NotFound("agent")
	}
	owner, err := s.userRepo.GetByID(ctx, nil, agent.UserID)
	if err != nil {
		return "", fmt.Errorf("load agent owner: %w", err)
	}
	if owner == nil || owner.OpenAIAPIKey == "" {
		return "", apierr.Validation("agent owner has no provider API key configured")
	}

	if _, err := s.messageRepo.Create(ctx, nil, &types.Message{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    types.MessageRoleUser,
		Content: text,
	}); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	bridge := s.openaiFactory(owner.OpenAIAPIKey)
	reply, err := bridge.SendMessage(ctx, chat.ThreadID, agent.AssistantID, text)
	if err != nil {
		return "", apierr.Upstream(fmt.Errorf("assistant exchange: %w", err))
	}

	if _, err := s.messageRepo.Create(ctx, nil, &types.Message{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    types.MessageRoleAssistant,
		Content: reply,
	}); err != nil {
		return "", fmt.Errorf("persist assistant message: %w", err)
	}
	if err := s.chatRepo.Touch(ctx, nil, chat.ID); err != nil {
		s.log.Warn("Failed to bump chat updated_at", "chat_id", chat.ID, "error", err)
	}

	s.notifier.Notify(ctx, chat.UserID, sse.EventChatMessage, map[string]any{
		"chat_id": chat.ID,
	})
	return reply, nil
}

func (s *chatService) ListChats(ctx context.Context) ([]*types.Chat, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("request data not set in context")
	}
	chats, err := s.chatRepo.GetByUserID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *chatService) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error) {
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
	return s.messageRepo.GetByChatID(ctx, nil, chatID)
}

func (s *chatService) ListPublicMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error) {
	chat, err := s.chatRepo.GetByID(ctx, nil, chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat == nil || chat.Source != types.ChatSourcePublic {
		return nil, apierr.NotFound("chat")
	}
	return s.messageRepo.GetByChatID(ctx, nil, chatID)
}

func (s *chatService) Stage(ctx context.Context, chatID uuid.UUID) (funnel.Stage, error) {
	msgs, err := s.ListMessages(ctx, chatID)
	if err != nil {
		return "", err
	}
	view := make([]funnel.Message, 0, len(msgs))
	for _, m := range msgs {
		view = append(view, funnel.Message{Role: string(m.Role), Content: m.Content})
	}
	return funnel.ClassifyAll(view), nil
}
