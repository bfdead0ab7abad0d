package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/tweetbox/internal/auth"
	"github.com/hitoshi/tweetbox/internal/config"
	"github.com/hitoshi/tweetbox/internal/handler"
	"github.com/hitoshi/tweetbox/internal/logger"
	"github.com/hitoshi/tweetbox/internal/metrics"
	"github.com/hitoshi/tweetbox/internal/middleware"
	"github.com/hitoshi/tweetbox/internal/security"
	"github.com/hitoshi/tweetbox/internal/session"
	"github.com/hitoshi/tweetbox/internal/twitter"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := new(slog.LevelVar)
	logger.SetupDefault(w, level)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に応じてログレベルを切り替える
	level.Set(logger.LevelFor(cfg.VerboseLogging, cfg.IsDevelopment()))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("app_env", cfg.AppEnv),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, slog.Default())
}

// serve は全依存関係をワイヤリングしてHTTPサーバーを起動し、ctxの終了まで待つ。
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	server, cleanup, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("API server stopped gracefully")
	return nil
}

// newServer は設定から全コンポーネントを組み立て、HTTPサーバーを返す。
// 戻り値のcleanupはサーバー停止後に呼ぶ。
func newServer(cfg *config.Config, log *slog.Logger) (*http.Server, func(), error) {
	// 1. セッション
	codec, err := session.NewCodec(cfg.SessionSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session codec: %w", err)
	}
	sessions := session.NewManager(codec, session.CookieConfig{
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	}, log)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. 外向き通信。開発モードではローカルの模擬サーバーに接続できるよう制限しない
	platformClient := &http.Client{}
	tokenClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	var guard *security.EgressGuard
	if !cfg.IsDevelopment() {
		guard = security.NewEgressGuard()
		platformClient = guard.NewPlatformClient(cfg.UpstreamTimeout)
		tokenClient = guard.NewPlatformClient(cfg.UpstreamTimeout)
	}

	// 4. プラットフォームゲートウェイ（タイムアウトは呼び出しごとのコンテキストで制御する）
	gateway := twitter.NewClient(platformClient, log, collector, twitter.Config{
		BaseURL:        cfg.TwitterAPIBaseURL,
		Timeout:        cfg.UpstreamTimeout,
		VerboseLogging: cfg.VerboseLogging,
	})

	// 5. 認証
	oauthProvider := auth.NewTwitterOAuthProvider(auth.TwitterOAuthConfig{
		ClientID:     cfg.TwitterClientID,
		ClientSecret: cfg.TwitterClientSecret,
		RedirectURL:  cfg.TwitterRedirectURL,
		AuthURL:      cfg.TwitterAuthURL,
		TokenURL:     cfg.TwitterTokenURL,
		HTTPClient:   tokenClient,
	})
	authService := auth.NewService(oauthProvider, gateway, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})

	if guard != nil {
		for _, endpoint := range []string{cfg.TwitterAPIBaseURL, oauthProvider.TokenURL()} {
			if err := guard.ValidateEndpoint(endpoint); err != nil {
				return nil, nil, fmt.Errorf("invalid platform endpoint %q: %w", endpoint, err)
			}
		}
	}

	// 6. ルーターの構築（configのレート制限はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPostCreate),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		SessionResolver:   sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,
		RateLimiter:       rateLimiter,

		AuthService:  authService,
		SessionStore: sessions,
		AuthConfig:   handler.AuthHandlerConfig{BaseURL: cfg.BaseURL},
		LoginMetrics: collector,

		Gateway: gateway,
		PostConfig: handler.PostHandlerConfig{
			DefaultMaxResults: cfg.DefaultMaxResults,
			MaxResultsLimit:   cfg.MaxResultsLimit,
		},

		MetricsHandler: metrics.Handler(registry),
	})

	// 7. HTTPサーバー。WriteTimeoutはプラットフォーム呼び出しのタイムアウトより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, rateLimiter.Stop, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
