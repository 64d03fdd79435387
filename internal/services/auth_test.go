package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexxlabs/agenthub-backend/internal/apierr"
	"github.com/flexxlabs/agenthub-backend/internal/repos"
	"github.com/flexxlabs/agenthub-backend/internal/requestdata"
)

func newAuthService(f *webhookFixture) AuthService {
	log := f.svc.(*webhookService).log
	return NewAuthService(f.gdb, log, f.users, repos.NewUserTokenRepo(f.gdb, log),
		"test-secret", time.Hour, 24*time.Hour)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"missing_email", RegisterInput{Password: "longenough", Name: "A"}},
		{"malformed_email", RegisterInput{Email: "nope", Password: "longenough", Name: "A"}},
		{"short_password", RegisterInput{Email: "a@b.com", Password: "short", Name: "A"}},
		{"missing_name", RegisterInput{Email: "a@b.com", Password: "longenough"}},
		{"duplicate_email", RegisterInput{Email: "owner@example.com", Password: "longenough", Name: "A"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterUser(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, "validation", apierr.From(err).Code)
		})
	}
}

func TestLoginRefreshLogoutRoundtrip(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, RegisterInput{
		Email:    "lead@example.com",
		Password: "correct horse battery",
		Name:     "Lead Ops",
	})
	require.NoError(t, err)

	_, _, err = svc.LoginUser(ctx, "lead@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "unauthorized", apierr.From(err).Code)

	access, refresh, err := svc.LoginUser(ctx, "Lead@Example.com", "correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	authedCtx, err := svc.SetContextFromToken(ctx, access)
	require.NoError(t, err)
	rd := requestdata.GetRequestData(authedCtx)
	require.NotNil(t, rd)
	assert.NotEqual(t, uuid.Nil, rd.UserID)

	// Rotation invalidates both old tokens.
	refreshCtx := requestdata.WithRequestData(ctx, &requestdata.RequestData{RefreshToken: refresh})
	newAccess, newRefresh, err := svc.RefreshUser(refreshCtx)
	require.NoError(t, err)
	assert.NotEqual(t, access, newAccess)
	assert.NotEqual(t, refresh, newRefresh)

	_, err = svc.SetContextFromToken(ctx, access)
	require.Error(t, err)
	_, _, err = svc.RefreshUser(refreshCtx)
	require.Error(t, err)

	// Logout revokes the rotated pair too.
	authedCtx, err = svc.SetContextFromToken(ctx, newAccess)
	require.NoError(t, err)
	require.NoError(t, svc.LogoutUser(authedCtx))
	_, err = svc.SetContextFromToken(ctx, newAccess)
	require.Error(t, err)
}

func TestTokenFromAnotherSecretIsRejected(t *testing.T) {
	f := newWebhookFixture(t)
	svc := newAuthService(f)
	other := NewAuthService(f.gdb, f.svc.(*webhookService).log, f.users,
		repos.NewUserTokenRepo(f.gdb, f.svc.(*webhookService).log),
		"different-secret", time.Hour, 24*time.Hour)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, RegisterInput{
		Email:    "lead@example.com",
		Password: "correct horse battery",
		Name:     "Lead Ops",
	})
	require.NoError(t, err)
	access, _, err := svc.LoginUser(ctx, "lead@example.com", "correct horse battery")
	require.NoError(t, err)

	_, err = other.SetContextFromToken(ctx, access)
	require.Error(t, err)
	assert.Equal(t, "unauthorized", apierr.From(err).Code)
}
