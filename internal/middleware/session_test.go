package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/tweetbox/internal/model"
)

// --- モック定義 ---

type mockSessionResolver struct {
	resolveFn func(r *http.Request) *model.Session
}

func (m *mockSessionResolver) Resolve(r *http.Request) *model.Session {
	if m.resolveFn != nil {
		return m.resolveFn(r)
	}
	return nil
}

func testSession(userID string) *model.Session {
	return &model.Session{
		Identity: model.Identity{
			UserID:      userID,
			DisplayName: "Test User",
			Handle:      "test_user",
		},
		Credential: model.Credential{AccessToken: "access-token"},
		IssuedAt:   time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

// withSession はリクエストにセッションを注入する。
func withSession(req *http.Request, sess *model.Session) *http.Request {
	return req.WithContext(ContextWithSession(req.Context(), sess))
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsSession(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveFn: func(r *http.Request) *model.Session {
			return testSession("user-123")
		},
	}

	var captured *model.Session
	var capturedUserID string
	handler := NewSessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = SessionFromContext(r.Context())
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/twitter/me", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil {
		t.Fatal("session should be injected into context")
	}
	if captured.Credential.AccessToken != "access-token" {
		t.Errorf("access token = %q, want %q", captured.Credential.AccessToken, "access-token")
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
}

func TestSessionMiddleware_NoSession_PassesThrough(t *testing.T) {
	handler := NewSessionMiddleware(&mockSessionResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := SessionFromContext(r.Context()); sess != nil {
			t.Errorf("expected nil session, got %+v", sess)
		}
		if _, err := UserIDFromContext(r.Context()); err == nil {
			t.Error("expected error for missing user ID")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/twitter/create", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// 未認証でもミドルウェアでは拒否しない
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestSessionFromContext_Empty(t *testing.T) {
	if sess := SessionFromContext(context.Background()); sess != nil {
		t.Errorf("expected nil, got %+v", sess)
	}
}

func TestUserIDFromContext_EmptyUserID(t *testing.T) {
	ctx := ContextWithSession(context.Background(), testSession(""))

	if _, err := UserIDFromContext(ctx); err == nil {
		t.Error("expected error for empty user ID")
	}
}
