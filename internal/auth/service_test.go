package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tweetbox/internal/model"
)

// --- モック定義 ---

type mockOAuthProvider struct {
	loginURLFn func(state, verifier string) string
	exchangeFn func(ctx context.Context, code, verifier string) (*model.Credential, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*model.Credential, error)
}

func (m *mockOAuthProvider) LoginURL(state, verifier string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state, verifier)
	}
	return ""
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, code, verifier string) (*model.Credential, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, verifier)
	}
	return nil, nil
}

func (m *mockOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*model.Credential, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

type mockProfileFetcher struct {
	getOwnProfileFn func(ctx context.Context, accessToken string) (*model.Profile, error)
}

func (m *mockProfileFetcher) GetOwnProfile(ctx context.Context, accessToken string) (*model.Profile, error) {
	if m.getOwnProfileFn != nil {
		return m.getOwnProfileFn(ctx, accessToken)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ ProfileFetcher = (*mockProfileFetcher)(nil)

// --- テスト ---

func TestBeginLogin_GeneratesStateAndVerifier(t *testing.T) {
	var gotState, gotVerifier string
	provider := &mockOAuthProvider{
		loginURLFn: func(state, verifier string) string {
			gotState, gotVerifier = state, verifier
			return "https://twitter.com/i/oauth2/authorize?state=" + state
		},
	}
	svc := NewService(provider, nil, ServiceConfig{SessionMaxAge: 86400})

	req, err := svc.BeginLogin()
	require.NoError(t, err)

	assert.Len(t, req.State, 64)
	assert.NotEmpty(t, req.CodeVerifier)
	assert.Equal(t, req.State, gotState)
	assert.Equal(t, req.CodeVerifier, gotVerifier)
	assert.Equal(t, "https://twitter.com/i/oauth2/authorize?state="+req.State, req.URL)

	other, err := svc.BeginLogin()
	require.NoError(t, err)
	assert.NotEqual(t, req.State, other.State, "stateは毎回異なるべき")
	assert.NotEqual(t, req.CodeVerifier, other.CodeVerifier, "verifierは毎回異なるべき")
}

func TestHandleCallback_BuildsSession(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeFn: func(_ context.Context, code, verifier string) (*model.Credential, error) {
			assert.Equal(t, "auth-code", code)
			assert.Equal(t, "verifier", verifier)
			return &model.Credential{
				AccessToken:     "access-token",
				RefreshToken:    "refresh-token",
				SecondarySecret: "secret",
			}, nil
		},
	}
	profiles := &mockProfileFetcher{
		getOwnProfileFn: func(_ context.Context, accessToken string) (*model.Profile, error) {
			assert.Equal(t, "access-token", accessToken)
			return &model.Profile{ID: "12345", Name: "Hitoshi", Username: "hitoshi_dev"}, nil
		},
	}
	svc := NewService(provider, profiles, ServiceConfig{SessionMaxAge: 3600})
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	sess, err := svc.HandleCallback(context.Background(), "auth-code", "verifier")
	require.NoError(t, err)

	assert.Equal(t, model.Identity{UserID: "12345", DisplayName: "Hitoshi", Handle: "hitoshi_dev"}, sess.Identity)
	assert.Equal(t, model.Credential{AccessToken: "access-token", RefreshToken: "refresh-token", SecondarySecret: "secret"}, sess.Credential)
	assert.Equal(t, now, sess.IssuedAt)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
}

func TestHandleCallback_EmptyCode(t *testing.T) {
	called := false
	provider := &mockOAuthProvider{
		exchangeFn: func(context.Context, string, string) (*model.Credential, error) {
			called = true
			return nil, nil
		},
	}
	svc := NewService(provider, &mockProfileFetcher{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.HandleCallback(context.Background(), "", "verifier")
	require.Error(t, err)
	assert.False(t, called, "コードが空の場合はトークン交換を行わない")
}

func TestHandleCallback_ExchangeError(t *testing.T) {
	exchangeErr := errors.New("invalid_grant")
	provider := &mockOAuthProvider{
		exchangeFn: func(context.Context, string, string) (*model.Credential, error) {
			return nil, exchangeErr
		},
	}
	svc := NewService(provider, &mockProfileFetcher{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.HandleCallback(context.Background(), "auth-code", "verifier")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchangeErr)
}

func TestHandleCallback_ProfileError(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeFn: func(context.Context, string, string) (*model.Credential, error) {
			return &model.Credential{AccessToken: "access-token"}, nil
		},
	}
	profiles := &mockProfileFetcher{
		getOwnProfileFn: func(context.Context, string) (*model.Profile, error) {
			return nil, model.NewRateLimitedError(model.MessageProfileLimited, nil)
		},
	}
	svc := NewService(provider, profiles, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.HandleCallback(context.Background(), "auth-code", "verifier")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindRateLimited))
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	svc := NewService(&mockOAuthProvider{}, nil, ServiceConfig{})

	_, err := svc.Refresh(context.Background(), model.Credential{AccessToken: "access-token"})
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefresh_KeepsSecondarySecret(t *testing.T) {
	provider := &mockOAuthProvider{
		refreshFn: func(_ context.Context, refreshToken string) (*model.Credential, error) {
			assert.Equal(t, "refresh-token", refreshToken)
			return &model.Credential{AccessToken: "new-access-token", RefreshToken: "new-refresh-token"}, nil
		},
	}
	svc := NewService(provider, nil, ServiceConfig{})

	cred, err := svc.Refresh(context.Background(), model.Credential{
		AccessToken:     "old-access-token",
		RefreshToken:    "refresh-token",
		SecondarySecret: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, &model.Credential{
		AccessToken:     "new-access-token",
		RefreshToken:    "new-refresh-token",
		SecondarySecret: "secret",
	}, cred)
}

func TestRefresh_ProviderError(t *testing.T) {
	provider := &mockOAuthProvider{
		refreshFn: func(context.Context, string) (*model.Credential, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	svc := NewService(provider, nil, ServiceConfig{})

	_, err := svc.Refresh(context.Background(), model.Credential{RefreshToken: "revoked"})
	require.Error(t, err)
}

func TestRefresh_DoesNotMutateProviderResult(t *testing.T) {
	shared := &model.Credential{AccessToken: "new-access-token", RefreshToken: "new-refresh-token"}
	provider := &mockOAuthProvider{
		refreshFn: func(context.Context, string) (*model.Credential, error) {
			return shared, nil
		},
	}
	svc := NewService(provider, nil, ServiceConfig{})

	cred, err := svc.Refresh(context.Background(), model.Credential{RefreshToken: "refresh-token", SecondarySecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", cred.SecondarySecret)
	assert.Empty(t, shared.SecondarySecret, "呼び出し元ごとの値がプロバイダーの結果に漏れてはならない")
}

func TestRefresh_EmptyProviderResult(t *testing.T) {
	svc := NewService(&mockOAuthProvider{}, nil, ServiceConfig{})

	_, err := svc.Refresh(context.Background(), model.Credential{RefreshToken: "refresh-token"})
	require.Error(t, err)
}
