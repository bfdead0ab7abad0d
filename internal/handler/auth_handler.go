package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tweetbox/internal/auth"
	"github.com/hitoshi/tweetbox/internal/metrics"
	"github.com/hitoshi/tweetbox/internal/middleware"
	"github.com/hitoshi/tweetbox/internal/model"
	"github.com/hitoshi/tweetbox/internal/session"
)

const messageAuthenticationFailed = "Authentication failed"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginLogin() (*auth.LoginRequest, error)
	HandleCallback(ctx context.Context, code, verifier string) (*model.Session, error)
}

// SessionStore はセッションとOAuthフロー状態のCookie入出力を担うインターフェース。
type SessionStore interface {
	Save(w http.ResponseWriter, sess *model.Session) error
	Clear(w http.ResponseWriter)
	SaveLogin(w http.ResponseWriter, login session.PendingLogin) error
	TakeLogin(w http.ResponseWriter, r *http.Request) (*session.PendingLogin, error)
}

// LoginRecorder はログイン結果のメトリクスを記録する。
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string // ログイン・ログアウト後のリダイレクト先
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	store   SessionStore
	metrics LoginRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, store SessionStore, recorder LoginRecorder, config AuthHandlerConfig) *AuthHandler {
	if recorder == nil {
		recorder = nopLoginRecorder{}
	}
	return &AuthHandler{
		service: service,
		store:   store,
		metrics: recorder,
		config:  config,
	}
}

// sessionResponse はGET /auth/sessionのレスポンス。トークンは含めない。
type sessionResponse struct {
	User    sessionUser `json:"user"`
	Expires string      `json:"expires"`
}

type sessionUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// Login はOAuthフローを開始する。
// GET /auth/twitter/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.BeginLogin()
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	// stateとverifierを封緘してCookieに保存
	if err := h.store.SaveLogin(w, session.PendingLogin{
		State:        req.State,
		CodeVerifier: req.CodeVerifier,
	}); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	http.Redirect(w, r, req.URL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/twitter/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. フロー状態Cookieの取り出し（一度きり）
	login, err := h.store.TakeLogin(w, r)
	if err != nil {
		slog.Warn("oauth login state missing or invalid", slog.String("error", err.Error()))
		h.fail(w, model.NewInvalidArgumentError("invalid state parameter"))
		return
	}

	// 2. プロバイダー側での拒否
	if reason := query.Get("error"); reason != "" {
		slog.Warn("oauth authorization denied", slog.String("reason", reason))
		h.fail(w, model.NewInvalidArgumentError("authorization denied"))
		return
	}

	// 3. stateの検証（CSRF対策）
	state := query.Get("state")
	if subtle.ConstantTimeCompare([]byte(state), []byte(login.State)) != 1 {
		slog.Warn("oauth state mismatch")
		h.fail(w, model.NewInvalidArgumentError("invalid state parameter"))
		return
	}

	// 4. 認可コードの取得
	code := query.Get("code")
	if code == "" {
		h.fail(w, model.NewInvalidArgumentError("missing authorization code"))
		return
	}

	// 5. トークン交換とプロフィール取得
	sess, err := h.service.HandleCallback(r.Context(), code, login.CodeVerifier)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.fail(w, &model.APIError{
			Kind:    model.KindInternal,
			Status:  http.StatusInternalServerError,
			Message: messageAuthenticationFailed,
			Err:     err,
		})
		return
	}

	// 6. セッションCookieを設定
	if err := h.store.Save(w, sess); err != nil {
		slog.Error("failed to save session", slog.String("error", err.Error()))
		h.fail(w, model.NewInternalError(err))
		return
	}

	h.metrics.RecordLogin(metrics.LoginSuccess)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションCookieを削除する。
// サーバー側に状態を持たないため、Cookieの削除がセッションの破棄となる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
		slog.Info("user logged out", slog.String("user_id", userID))
	}

	h.store.Clear(w)
	http.Redirect(w, r, h.config.BaseURL, http.StatusSeeOther)
}

// Session は現在のセッションのユーザー情報を返す。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User: sessionUser{
			ID:     sess.Identity.UserID,
			Name:   sess.Identity.DisplayName,
			Handle: sess.Identity.Handle,
		},
		Expires: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// fail はログイン失敗を記録してエラーレスポンスを書き込む。
func (h *AuthHandler) fail(w http.ResponseWriter, apiErr *model.APIError) {
	h.metrics.RecordLogin(metrics.LoginFailure)
	middleware.WriteErrorResponse(w, apiErr)
}

type nopLoginRecorder struct{}

func (nopLoginRecorder) RecordLogin(string) {}
