package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tweetbox/internal/middleware"
	"github.com/hitoshi/tweetbox/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	CookieSecure      bool // HTTPS運用時はtrue。HSTSとCSRF Cookieの属性に影響する
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService  AuthServiceInterface
	SessionStore SessionStore
	AuthConfig   AuthHandlerConfig
	LoginMetrics LoginRecorder

	// 投稿
	Gateway    PostGateway
	PostConfig PostHandlerConfig

	// 運用
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Session → Logging → Recovery → SecurityHeaders → CORS → BodyLimit
//
// /auth/* と /api/* には RateLimit(General) → CSRF を追加で適用する。
// /health と /metrics はレート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	csrfConfig := middleware.CSRFConfig{CookieSecure: deps.CookieSecure}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.CookieSecure}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewBodyLimitMiddleware(middleware.DefaultMaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, model.NewMethodNotAllowedError())
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionStore, deps.LoginMetrics, deps.AuthConfig)
	postHandler := NewPostHandler(deps.Gateway, deps.PostConfig)

	// --- 運用エンドポイント ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		// 認証ルート（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/twitter/login", authHandler.Login)
			r.Get("/twitter/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
		})

		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

			// 投稿操作。セッションの確認は各ハンドラーが行う
			r.Route("/twitter", func(r chi.Router) {
				r.Get("/tweets", postHandler.ListPosts)
				r.Get("/me", postHandler.GetMe)
				r.With(deps.RateLimiter.PostCreateMiddleware()).Post("/create", postHandler.CreatePost)

				// IDなしも受け付け、ハンドラーで400を返す
				r.Delete("/delete", postHandler.DeletePost)
				r.Delete("/delete/", postHandler.DeletePost)
				r.Delete("/delete/{id}", postHandler.DeletePost)
			})
		})
	})

	return r
}

// Health はヘルスチェック用のハンドラー。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
