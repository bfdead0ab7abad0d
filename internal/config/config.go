package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// minSessionSecretLength はSESSION_SECRETの最小バイト長。
const minSessionSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// OAuth
	TwitterClientID     string
	TwitterClientSecret string
	TwitterRedirectURL  string
	TwitterAuthURL      string // 空の場合はプロバイダーの既定値
	TwitterTokenURL     string // 空の場合はプロバイダーの既定値

	// Platform API
	TwitterAPIBaseURL string
	UpstreamTimeout   time.Duration
	VerboseLogging    bool

	// Session
	SessionSecret string
	SessionMaxAge int

	// Posts
	DefaultMaxResults int
	MaxResultsLimit   int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral    int
	RateLimitPostCreate int

	// Server
	ServerPort string
	BaseURL    string
	AppEnv     string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// IsDevelopment は開発モードかどうかを返す。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.TwitterClientID = os.Getenv("TWITTER_CLIENT_ID")
	if cfg.TwitterClientID == "" {
		missing = append(missing, "TWITTER_CLIENT_ID")
	}

	cfg.TwitterClientSecret = os.Getenv("TWITTER_CLIENT_SECRET")
	if cfg.TwitterClientSecret == "" {
		missing = append(missing, "TWITTER_CLIENT_SECRET")
	}

	cfg.TwitterRedirectURL = os.Getenv("TWITTER_REDIRECT_URL")
	if cfg.TwitterRedirectURL == "" {
		missing = append(missing, "TWITTER_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}

	// Optional fields with defaults
	cfg.TwitterAuthURL = getEnvString("TWITTER_AUTH_URL", "")
	cfg.TwitterTokenURL = getEnvString("TWITTER_TOKEN_URL", "")
	cfg.TwitterAPIBaseURL = getEnvString("TWITTER_API_BASE_URL", "https://api.twitter.com/2")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.VerboseLogging = getEnvBool("VERBOSE_LOGGING", false)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 2592000)
	cfg.DefaultMaxResults = getEnvInt("DEFAULT_MAX_RESULTS", 5)
	cfg.MaxResultsLimit = getEnvInt("MAX_RESULTS_LIMIT", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPostCreate = getEnvInt("RATE_LIMIT_POST_CREATE", 10)
	if cfg.RateLimitGeneral <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", cfg.RateLimitGeneral)
	}
	if cfg.RateLimitPostCreate <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_POST_CREATE must be positive, got %d", cfg.RateLimitPostCreate)
	}
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "production")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
