package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/sse"
	"github.com/flexxlabs/agenthub-backend/internal/types"
	"github.com/flexxlabs/agenthub-backend/internal/webhooklog"
)

// WebhookPayload is the canonical inbound shape. The agent is selected by the
// webhook secret in the URL; ThreadID continues an existing conversation and
// is returned to the lead system on first contact so it can be echoed back.
type WebhookPayload struct {
	Message  string            `json:"message"`
	Email    string            `json:"email"`
	ThreadID string            `json:"threadId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WebhookResult is what the lead system gets back.
type WebhookResult struct {
	Response string `json:"response"`
	ThreadID string `json:"threadId"`
}

type WebhookService interface {
	Handle(ctx context.Context, secret string, payload WebhookPayload) (*WebhookResult, error)
}

type webhookService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	agentRepo     repos.AgentRepo
	chatRepo      repos.ChatRepo
	messageRepo   repos.MessageRepo
	openaiFactory openai.Factory
	ring          *webhooklog.Ring
	notifier      *Notifier
}

func NewWebhookService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	agentRepo repos.AgentRepo,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	openaiFactory openai.Factory,
	ring *webhooklog.Ring,
	notifier *Notifier,
) WebhookService {
	return &webhookService{
		db:            db,
		log:           log.With("service", "WebhookService"),
		userRepo:      userRepo,
		agentRepo:     agentRepo,
		chatRepo:      chatRepo,
		messageRepo:   messageRepo,
		openaiFactory: openaiFactory,
		ring:          ring,
		notifier:      notifier,
	}
}

// Handle correlates one inbound lead message to a chat and produces the
// assistant's reply.
//
// Resolution order matters: nothing is persisted until the secret, the lead's
// account email and (when given) the thread id have all resolved. After the
// inbound message is stored, a bridge failure intentionally leaves it in
// place with no reply; the lead system should retry the send, not re-post the
// message. Two concurrent first contacts for the same lead can create two
// chats; callers are expected to echo back the returned threadId to continue
// a conversation.
func (s *webhookService) Handle(ctx context.Context, secret string, payload WebhookPayload) (*WebhookResult, error) {
	result, userFound, agentName, err := s.handle(ctx, secret, payload)
	s.record(payload, userFound, agentName, err)
	return result, err
}

func (s *webhookService) handle(ctx context.Context, secret string, payload WebhookPayload) (result *WebhookResult, userFound bool, agentName string, err error) {
	if strings.TrimSpace(payload.Message) == "" || strings.TrimSpace(payload.Email) == "" {
		return nil, false, "", apierr.Validation("message and email are required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, false, "", apierr.Validation("webhook secret is required")
	}

	agent, err := s.agentRepo.GetByWebhookSecret(ctx, nil, secret)
	if err != nil {
		return nil, false, "", fmt.Errorf("resolve agent by secret: %w", err)
	}
	if agent == nil {
		return nil, false, "", apierr.NotFound("agent")
	}
	agentName = agent.Name

	user, err := s.userRepo.GetByEmail(ctx, nil, payload.Email)
	if err != nil {
		return nil, false, agentName, fmt.Errorf("resolve user by email: %w", err)
	}
	if user == nil || user.ID != agent.UserID {
		// The secret is a capability for one agent only; an email that does
		// not belong to the agent's owner is treated as unknown.
		return nil, false, agentName, apierr.NotFound("user")
	}
	userFound = true
	if user.OpenAIAPIKey == "" {
		return nil, true, agentName, apierr.Validation("account has no provider API key configured")
	}

	bridge := s.openaiFactory(user.OpenAIAPIKey)

	var chat *types.Chat
	threadID := strings.TrimSpace(payload.ThreadID)
	if threadID != "" {
		chat, err = s.chatRepo.GetByAgentAndThread(ctx, nil, agent.ID, threadID)
		if err != nil {
			return nil, true, agentName, fmt.Errorf("resolve chat by thread: %w", err)
		}
		if chat == nil {
			return nil, true, agentName, apierr.NotFound("chat")
		}
	} else {
		threadID, err = bridge.CreateThread(ctx)
		if err != nil {
			return nil, true, agentName, apierr.Upstream(fmt.Errorf("create thread: %w", err))
		}
		raw, merr := json.Marshal(payload)
		if merr != nil {
			raw = nil
		}
		chat = &types.Chat{
			ID:       uuid.New(),
			AgentID:  agent.ID,
			UserID:   user.ID,
			ThreadID: threadID,
			Source:   types.ChatSourceWebhook,
			Metadata: raw,
		}
		if _, err = s.chatRepo.Create(ctx, nil, chat); err != nil {
			return nil, true, agentName, fmt.Errorf("create chat: %w", err)
		}
	}

	if _, err = s.messageRepo.Create(ctx, nil, &types.Message{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    types.MessageRoleUser,
		Content: payload.Message,
	}); err != nil {
		return nil, true, agentName, fmt.Errorf("persist lead message: %w", err)
	}

	reply, err := bridge.SendMessage(ctx, threadID, agent.AssistantID, payload.Message)
	if err != nil {
		return nil, true, agentName, apierr.Upstream(fmt.Errorf("assistant exchange: %w", err))
	}

	if _, err = s.messageRepo.Create(ctx, nil, &types.Message{
		ID:      uuid.New(),
		ChatID:  chat.ID,
		Role:    types.MessageRoleAssistant,
		Content: reply,
	}); err != nil {
		return nil, true, agentName, fmt.Errorf("persist assistant reply: %w", err)
	}
	if err := s.chatRepo.Touch(ctx, nil, chat.ID); err != nil {
		s.log.Warn("Failed to bump chat updated_at", "chat_id", chat.ID, "error", err)
	}

	s.notifier.Notify(ctx, user.ID, sse.EventWebhookReceived, map[string]any{
		"chat_id":  chat.ID,
		"agent_id": agent.ID,
	})
	s.log.Info("Webhook handled", "agent_id", agent.ID, "chat_id", chat.ID)
	return &WebhookResult{Response: reply, ThreadID: threadID}, true, agentName, nil
}

// record appends the receipt to the diagnostics ring, failures included. The
// raw lead text is kept (it is what the diagnostics page exists to show); the
// secret never enters the payload map.
func (s *webhookService) record(payload WebhookPayload, userFound bool, agentName string, err error) {
	if s.ring == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apierr.From(err).Code
	}
	entry := webhooklog.Entry{
		Timestamp: time.Now(),
		AgentName: agentName,
		UserFound: userFound,
		Outcome:   outcome,
		Payload: map[string]interface{}{
			"message":  payload.Message,
			"email":    payload.Email,
			"threadId": payload.ThreadID,
		},
	}
	s.ring.Add(entry)
}
