package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/clients/openai"
	"github.com/flexxlabs/agenthub-backend/internal/funnel"
	"github.com/flexxlabs/agenthub-backend/internal/requestdata"
	"github.com/flexxlabs/agenthub-backend/internal/types"
)

func newChatService(f *webhookFixture) ChatService {
	log := f.svc.(*webhookService).log
	return NewChatService(f.gdb, log,
		f.users, f.agents, f.chats, f.messages,
		func(apiKey string) openai.Client { return f.bridge }, nil)
}

func TestStartChatRequiresOwnership(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newChatService(f)

	ctx := requestdata.WithRequestData(context.Background(),
		&requestdata.RequestData{UserID: uuid.New()}) // not the owner
	_, err := svc.StartChat(ctx, f.agent.ID)
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

func TestSendMessagePersistsBothTurns(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newChatService(f)
	ctx := requestdata.WithRequestData(context.Background(),
		&requestdata.RequestData{UserID: f.owner.ID})

	chat, err := svc.StartChat(ctx, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ChatSourceWeb, chat.Source)

	reply, err := svc.SendMessage(ctx, chat.ID, "sounds interesting, what's the pricing?")
	require.NoError(t, err)
	assert.Equal(t, f.bridge.reply, reply)

	msgs, err := svc.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, types.MessageRoleAssistant, msgs[1].Role)
}

func TestStageIsDerivedFromTranscript(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newChatService(f)
	ctx := requestdata.WithRequestData(context.Background(),
		&requestdata.RequestData{UserID: f.owner.ID})

	chat, err := svc.StartChat(ctx, f.agent.ID)
	require.NoError(t, err)

	stage, err := svc.Stage(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, funnel.StageNew, stage)

	// A neutral reply: the lead has responded but nothing qualifies yet.
	f.bridge.reply = "Thanks for reaching out!"
	_, err = svc.SendMessage(ctx, chat.ID, "hello there")
	require.NoError(t, err)
	stage, err = svc.Stage(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, funnel.StageResponded, stage)

	// The assistant pitches a call: that turn qualifies the chat.
	f.bridge.reply = "Would you like to speak with an advisor?"
	_, err = svc.SendMessage(ctx, chat.ID, "tell me about pricing")
	require.NoError(t, err)
	stage, err = svc.Stage(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, funnel.StageQualified, stage)

	// The lead commits to a time: converted.
	f.bridge.reply = "Great, booked."
	_, err = svc.SendMessage(ctx, chat.ID, "sure, I'm free at 3pm tomorrow")
	require.NoError(t, err)
	stage, err = svc.Stage(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, funnel.StageConverted, stage)
}

func TestPublicChatIsSourceScoped(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newChatService(f)
	ctx := context.Background()

	chat, err := svc.StartPublicChat(ctx, f.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ChatSourcePublic, chat.Source)

	_, err = svc.SendPublicMessage(ctx, chat.ID, "hi")
	require.NoError(t, err)

	// The owner's web chat is not reachable through the public surface.
	ownerCtx := requestdata.WithRequestData(context.Background(),
		&requestdata.RequestData{UserID: f.owner.ID})
	webChat, err := svc.StartChat(ownerCtx, f.agent.ID)
	require.NoError(t, err)
	_, err = svc.SendPublicMessage(ctx, webChat.ID, "hi")
	require.Error(t, err)
	assert.True(t, apierr.IsNotFound(err))
}

func TestSendMessageUpstreamFailureKeepsUserTurn(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newChatService(f)
	ctx := requestdata.WithRequestData(context.Background(),
		&requestdata.RequestData{UserID: f.owner.ID})

	chat, err := svc.StartChat(ctx, f.agent.ID)
	require.NoError(t, err)

	f.bridge.failSend = true
	_, err = svc.SendMessage(ctx, chat.ID, "hello?")
	require.Error(t, err)
	assert.True(t, apierr.IsUpstream(err))

	msgs, err := svc.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MessageRoleUser, msgs[0].Role)
}
