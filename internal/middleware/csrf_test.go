package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCSRFTestHandler(config CSRFConfig, called *bool) http.Handler {
	return NewCSRFMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := newCSRFTestHandler(CSRFConfig{}, &called)

			req := withSession(httptest.NewRequest(method, "/api/twitter/me", nil), testSession("user-1"))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if !called {
				t.Fatalf("handler should have been called for %s request", method)
			}
		})
	}
}

func TestCSRFMiddleware_GETRequest_SetsCookie(t *testing.T) {
	called := false
	handler := newCSRFTestHandler(CSRFConfig{}, &called)

	req := httptest.NewRequest(http.MethodGet, "/api/twitter/me", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrf_token" {
			found = c
		}
	}
	if found == nil {
		t.Fatal("expected csrf_token cookie to be set")
	}
	if found.HttpOnly {
		t.Error("csrf_token cookie should be readable from JavaScript")
	}
	if found.Domain != "" {
		t.Errorf("Domain = %q, want empty (host-only)", found.Domain)
	}
	if len(found.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(found.Value))
	}
}

func TestCSRFMiddleware_GETRequest_KeepsExistingCookie(t *testing.T) {
	called := false
	handler := newCSRFTestHandler(CSRFConfig{}, &called)

	req := httptest.NewRequest(http.MethodGet, "/api/twitter/me", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Errorf("expected no Set-Cookie, got %d cookies", len(w.Result().Cookies()))
	}
}

func TestCSRFMiddleware_POSTWithoutSession_SkipsValidation(t *testing.T) {
	called := false
	handler := newCSRFTestHandler(CSRFConfig{}, &called)

	req := httptest.NewRequest(http.MethodPost, "/api/twitter/create", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// セッションのないリクエストはハンドラーで401となるため、ここでは拒否しない
	if !called {
		t.Fatal("handler should have been called for unauthenticated request")
	}
}

func TestCSRFMiddleware_StateChangingWithSession(t *testing.T) {
	tests := []struct {
		name        string
		cookieToken string
		headerToken string
		wantStatus  int
	}{
		{"トークン一致", "token-abc", "token-abc", http.StatusOK},
		{"Cookieなし", "", "token-abc", http.StatusForbidden},
		{"ヘッダーなし", "token-abc", "", http.StatusForbidden},
		{"トークン不一致", "token-abc", "token-xyz", http.StatusForbidden},
	}

	for _, tt := range tests {
		for _, method := range []string{http.MethodPost, http.MethodDelete} {
			t.Run(tt.name+"/"+method, func(t *testing.T) {
				called := false
				handler := newCSRFTestHandler(CSRFConfig{}, &called)

				req := withSession(httptest.NewRequest(method, "/api/twitter/create", nil), testSession("user-1"))
				if tt.cookieToken != "" {
					req.AddCookie(&http.Cookie{Name: "csrf_token", Value: tt.cookieToken})
				}
				if tt.headerToken != "" {
					req.Header.Set("X-CSRF-Token", tt.headerToken)
				}
				w := httptest.NewRecorder()

				handler.ServeHTTP(w, req)

				if w.Result().StatusCode != tt.wantStatus {
					t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
				}
				if called != (tt.wantStatus == http.StatusOK) {
					t.Errorf("handler called = %v, want %v", called, tt.wantStatus == http.StatusOK)
				}
				if tt.wantStatus == http.StatusForbidden {
					var body ErrorResponseBody
					if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
						t.Fatalf("failed to decode body: %v", err)
					}
					if body.Error != "CSRF token validation failed" {
						t.Errorf("error = %q, want %q", body.Error, "CSRF token validation failed")
					}
				}
			})
		}
	}
}

func TestCSRFMiddleware_SecureCookie_UsesHostPrefix(t *testing.T) {
	config := CSRFConfig{CookieSecure: true}

	called := false
	handler := newCSRFTestHandler(config, &called)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "__Host-csrf_token" {
		t.Errorf("cookie name = %q, want %q", cookies[0].Name, "__Host-csrf_token")
	}
	if !cookies[0].Secure {
		t.Error("cookie should be Secure")
	}
	if cookies[0].Path != "/" {
		t.Errorf("Path = %q, want %q", cookies[0].Path, "/")
	}

	// 本番用の名前のCookieで検証が通ること
	called = false
	post := withSession(httptest.NewRequest(http.MethodPost, "/api/twitter/create", nil), testSession("user-1"))
	post.AddCookie(&http.Cookie{Name: "__Host-csrf_token", Value: cookies[0].Value})
	post.Header.Set("X-CSRF-Token", cookies[0].Value)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, post)

	if !called {
		t.Errorf("handler should have been called, status = %d", w.Result().StatusCode)
	}
}

func TestCSRFTokenHandler_ReturnsNewToken(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] == "" {
		t.Fatal("expected non-empty token")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != body["token"] {
		t.Errorf("cookie should carry the same token as the body")
	}
}

func TestCSRFTokenHandler_ReturnsExistingToken(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] != "existing-token" {
		t.Errorf("token = %q, want %q", body["token"], "existing-token")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("existing cookie should not be reissued")
	}
}
