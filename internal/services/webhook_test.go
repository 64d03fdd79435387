package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/db"
	"github.com/flexxlabs/agenthub-backend/internal/logger"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/types"
	"github.com/flexxlabs/agenthub-backend/internal/webhooklog"
)

// stubBridge fakes the assistant provider: thread ids are sequential and
// every exchange echoes a canned reply.
type stubBridge struct {
	threadSeq  int32
	reply      string
	failSend   bool
	failThread bool
}

func (s *stubBridge) CreateAssistant(ctx context.Context, name, instructions, model string) (string, error) {
	return "asst_stub", nil
}

func (s *stubBridge) UpdateAssistant(ctx context.Context, assistantID, name, instructions, model string) error {
	return nil
}

func (s *stubBridge) DeleteAssistant(ctx context.Context, assistantID string) error {
	return nil
}

func (s *stubBridge) CreateThread(ctx context.Context) (string, error) {
	if s.failThread {
		return "", fmt.Errorf("provider unavailable")
	}
	return fmt.Sprintf("th_%d", atomic.AddInt32(&s.threadSeq, 1)), nil
}

func (s *stubBridge) SendMessage(ctx context.Context, threadID, assistantID, text string) (string, error) {
	if s.failSend {
		return "", fmt.Errorf("run failed")
	}
	return s.reply, nil
}

func (s *stubBridge) ListThreadMessages(ctx context.Context, threadID string) ([]openai.ThreadMessage, error) {
	return nil, nil
}

type webhookFixture struct {
	svc      WebhookService
	gdb      *gorm.DB
	bridge   *stubBridge
	ring     *webhooklog.Ring
	agent    *types.Agent
	owner    *types.User
	users    repos.UserRepo
	agents   repos.AgentRepo
	messages repos.MessageRepo
	chats    repos.ChatRepo
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))

	userRepo := repos.NewUserRepo(gdb, log)
	agentRepo := repos.NewAgentRepo(gdb, log)
	chatRepo := repos.NewChatRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	owner := &types.User{
		ID:           uuid.New(),
		Email:        "owner@example.com",
		Password:     string(hashed),
		Name:         "Owner",
		OpenAIAPIKey: "sk-live",
	}
	_, err = userRepo.Create(context.Background(), nil, owner)
	require.NoError(t, err)

	agent := &types.Agent{
		ID:            uuid.New(),
		UserID:        owner.ID,
		Name:          "Closer",
		AssistantID:   "asst_1",
		Model:         "gpt-4o",
		WebhookSecret: uuid.New().String(),
	}
	_, err = agentRepo.Create(context.Background(), nil, agent)
	require.NoError(t, err)

	bridge := &stubBridge{reply: "Would you like to speak with an advisor?"}
	ring := webhooklog.NewRing(10)
	svc := NewWebhookService(gdb, log, userRepo, agentRepo, chatRepo, messageRepo,
		func(apiKey string) openai.Client { return bridge }, ring, nil)

	return &webhookFixture{
		svc:      svc,
		gdb:      gdb,
		bridge:   bridge,
		ring:     ring,
		agent:    agent,
		owner:    owner,
		users:    userRepo,
		agents:   agentRepo,
		messages: messageRepo,
		chats:    chatRepo,
	}
}

func TestHandleFirstContactCreatesChatAndReplies(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	result, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hi, tell me more",
		Email:   "Owner@Example.com", // case-insensitive lookup
	})
	require.NoError(t, err)
	assert.Equal(t, "th_1", result.ThreadID)
	assert.Equal(t, "Would you like to speak with an advisor?", result.Response)

	chats, err := f.chats.GetByAgentID(ctx, nil, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, types.ChatSourceWebhook, chats[0].Source)

	msgs, err := f.messages.GetByChatID(ctx, nil, chats[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "hi, tell me more", msgs[0].Content)
	assert.Equal(t, types.MessageRoleAssistant, msgs[1].Role)
}

func TestHandleWithoutThreadIDCreatesSeparateChats(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	payload := WebhookPayload{Message: "hello", Email: "owner@example.com"}

	first, err := f.svc.Handle(ctx, f.agent.WebhookSecret, payload)
	require.NoError(t, err)
	second, err := f.svc.Handle(ctx, f.agent.WebhookSecret, payload)
	require.NoError(t, err)

	// Documented behavior: absent a thread id every call is a first contact.
	assert.NotEqual(t, first.ThreadID, second.ThreadID)
	chats, err := f.chats.GetByAgentID(ctx, nil, f.agent.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestHandleWithThreadIDReusesChat(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	first, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "owner@example.com",
	})
	require.NoError(t, err)

	second, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message:  "following up",
		Email:    "owner@example.com",
		ThreadID: first.ThreadID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	chats, err := f.chats.GetByAgentID(ctx, nil, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	msgs, err := f.messages.GetByChatID(ctx, nil, chats[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestHandleUnknownThreadIDIsNotFound(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.svc.Handle(context.Background(), f.agent.WebhookSecret, WebhookPayload{
		Message:  "hello",
		Email:    "owner@example.com",
		ThreadID: "th_bogus",
	})
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

func TestHandleUnknownEmailPersistsNothing(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "stranger@example.com",
	})
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))

	chats, err := f.chats.GetByAgentID(ctx, nil, f.agent.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestHandleEmailOfDifferentAccountIsNotFound(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	other := &types.User{
		ID:           uuid.New(),
		Email:        "other@example.com",
		Password:     "x",
		Name:         "Other",
		OpenAIAPIKey: "sk-other",
	}
	require.NoError(t, f.gdb.Create(other).Error)

	// Valid account, but the secret belongs to someone else's agent.
	_, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "other@example.com",
	})
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

func TestHandleUnknownSecretIsNotFound(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.svc.Handle(context.Background(), "not-a-secret", WebhookPayload{
		Message: "hello",
		Email:   "owner@example.com",
	})
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

func TestHandleMissingFieldsIsValidation(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.svc.Handle(context.Background(), f.agent.WebhookSecret, WebhookPayload{
		Message: "",
		Email:   "owner@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, "validation", apierr.From(err).Code)
}

func TestHandleBridgeFailureLeavesInboundMessage(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	f.bridge.failSend = true

	_, err := f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "owner@example.com",
	})
	require.Error(t, err)
	assert.True(t, apierr.IsUpstream(err))

	// Half-applied on purpose: the lead's message is stored, no reply is.
	chats, err := f.chats.GetByAgentID(ctx, nil, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	msgs, err := f.messages.GetByChatID(ctx, nil, chats[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MessageRoleUser, msgs[0].Role)
}

func TestHandleRecordsReceiptsInRing(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "owner@example.com",
	})
	_, _ = f.svc.Handle(ctx, f.agent.WebhookSecret, WebhookPayload{
		Message: "hello",
		Email:   "stranger@example.com",
	})

	snap := f.ring.Snapshot()
	require.Len(t, snap, 2)
	// Newest first.
	assert.Equal(t, "not_found", snap[0].Outcome)
	assert.False(t, snap[0].UserFound)
	assert.Equal(t, "ok", snap[1].Outcome)
	assert.True(t, snap[1].UserFound)
}
