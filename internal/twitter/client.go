// Package twitter はX（Twitter）API v2へのプロキシゲートウェイを提供する。
// 自分の投稿一覧・プロフィール取得・投稿作成・投稿削除の4操作のみを扱い、
// エラーの正規化とレート制限時の再試行ガイダンス計算を行う。
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/tweetbox/internal/model"
)

const (
	// DefaultBaseURL はX API v2のベースURL。
	DefaultBaseURL = "https://api.twitter.com/2"
	// DefaultMaxResults は投稿一覧の既定取得件数。
	DefaultMaxResults = 5
	// DefaultTimeout は1回のAPI呼び出しの既定タイムアウト。
	DefaultTimeout = 10 * time.Second

	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20

	tweetFields = "created_at,public_metrics,author_id"
	userFields  = "profile_image_url"
	userAgent   = "Tweetbox/1.0"
)

// 操作名（ログ・メトリクスのラベル）
const (
	OpListOwnPosts  = "list_own_posts"
	OpGetOwnProfile = "get_own_profile"
	OpCreatePost    = "create_post"
	OpDeletePost    = "delete_post"
)

// MetricsRecorder はゲートウェイが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordUpstreamCall(operation string, statusCode int, duration time.Duration)
	RecordUpstreamRateLimited(operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordUpstreamCall(string, int, time.Duration) {}
func (nopMetrics) RecordUpstreamRateLimited(string)              {}

// Config はゲートウェイの設定。構築時に注入し、以後は変更しない。
type Config struct {
	BaseURL        string        // テスト用に差し替え可能
	Timeout        time.Duration // 1回の呼び出しのタイムアウト
	VerboseLogging bool          // リクエスト・レスポンスの詳細をDebugログに出力する
}

// Client はX API v2のゲートウェイ。
// 自動リトライは行わない（投稿作成は冪等でないため）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
	config     Config
	now        func() time.Time
}

// NewClient はClientを生成する。metricsがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder, config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		config:     config,
		now:        time.Now,
	}
}

// dataEnvelope はプラットフォームの{data: ...}形式のレスポンス。
type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

// upstreamResponse は読み取り済みのプラットフォームレスポンス。
type upstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *upstreamResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ListOwnPosts はユーザーの投稿一覧を取得する。
// maxResultsが0以下の場合はDefaultMaxResultsを使う。上限の丸めはこの層では行わない。
// スロットリング時はレスポンスヘッダーから計算した再試行ガイダンスを付けて返す。
func (c *Client) ListOwnPosts(ctx context.Context, accessToken, userID string, maxResults int) (*model.PostList, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError()
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, model.NewInvalidArgumentError("userId is required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("tweet.fields", tweetFields)
	endpoint := fmt.Sprintf("%s/users/%s/tweets?%s", c.config.BaseURL, url.PathEscape(userID), q.Encode())

	resp, err := c.do(ctx, OpListOwnPosts, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		state := ParseRateLimitHeaders(resp.Header)
		info := state.Guidance(c.now())
		c.metrics.RecordUpstreamRateLimited(OpListOwnPosts)
		c.logger.Error("rate limit exceeded for tweets API", state.logAttrs()...)
		return nil, model.NewRateLimitedError(fmt.Sprintf(listRateLimitMessage, info.WaitMinutes()), &info)
	}
	if !resp.ok() {
		return nil, c.upstreamError(OpListOwnPosts, resp, fallbackListPosts)
	}

	var list model.PostList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to parse %s response: %w", OpListOwnPosts, err))
	}
	if list.Data == nil {
		list.Data = []model.Post{}
	}
	if meta, err := list.ParsedMeta(); err == nil {
		c.debug("fetched tweets", slog.Int("result_count", meta.ResultCount), slog.String("next_token", meta.NextToken))
	}

	return &list, nil
}

// GetOwnProfile は認証ユーザーのプロフィールを取得する。
// スロットリング時は待ち時間を計算せず、固定のメッセージを返す。
func (c *Client) GetOwnProfile(ctx context.Context, accessToken string) (*model.Profile, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError()
	}

	endpoint := fmt.Sprintf("%s/users/me?%s", c.config.BaseURL, url.Values{"user.fields": {userFields}}.Encode())

	resp, err := c.do(ctx, OpGetOwnProfile, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.RecordUpstreamRateLimited(OpGetOwnProfile)
		c.logger.Error("rate limit exceeded for user info API")
		return nil, model.NewRateLimitedError(model.MessageProfileLimited, nil)
	}
	if !resp.ok() {
		return nil, c.upstreamError(OpGetOwnProfile, resp, fallbackGetProfile)
	}

	var env dataEnvelope[model.Profile]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to parse %s response: %w", OpGetOwnProfile, err))
	}

	return &env.Data, nil
}

// CreatePost は投稿を1件作成する。
// 前後の空白を除いて空のテキストはネットワーク呼び出し前に拒否する。
// 文字数上限はプラットフォームが判定し、そのエラーをそのまま返す。
func (c *Client) CreatePost(ctx context.Context, accessToken, text string) (*model.CreatedPost, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if strings.TrimSpace(text) == "" {
		return nil, model.NewInvalidArgumentError("Tweet text is required")
	}

	c.debug("creating tweet", slog.Int("text_length", len([]rune(text))))

	resp, err := c.do(ctx, OpCreatePost, http.MethodPost, c.config.BaseURL+"/tweets", accessToken, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.RecordUpstreamRateLimited(OpCreatePost)
	}
	if !resp.ok() {
		return nil, c.upstreamError(OpCreatePost, resp, fallbackCreatePost)
	}

	var env dataEnvelope[model.CreatedPost]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to parse %s response: %w", OpCreatePost, err))
	}

	return &env.Data, nil
}

// DeletePost は投稿を削除する。
// 既に削除済みのIDはプラットフォームのnot-foundをUpstreamErrorとして返す。
func (c *Client) DeletePost(ctx context.Context, accessToken, postID string) (*model.DeleteResult, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if strings.TrimSpace(postID) == "" {
		return nil, model.NewInvalidArgumentError("Tweet ID is required")
	}

	endpoint := fmt.Sprintf("%s/tweets/%s", c.config.BaseURL, url.PathEscape(postID))

	resp, err := c.do(ctx, OpDeletePost, http.MethodDelete, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.RecordUpstreamRateLimited(OpDeletePost)
	}
	if !resp.ok() {
		return nil, c.upstreamError(OpDeletePost, resp, fallbackDeletePost)
	}

	var env dataEnvelope[model.DeleteResult]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to parse %s response: %w", OpDeletePost, err))
	}

	return &env.Data, nil
}

// do はプラットフォームへリクエストを送り、レスポンスボディを読み取って返す。
// 通信・読み取りの失敗はInternalErrorとして返す。
func (c *Client) do(ctx context.Context, op, method, endpoint, accessToken string, payload any) (*upstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, model.NewInternalError(fmt.Errorf("failed to marshal %s request: %w", op, err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("failed to create %s request: %w", op, err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.debug("sending request to platform",
		slog.String("operation", op),
		slog.String("method", method),
		slog.String("url", endpoint),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamCall(op, 0, time.Since(start))
		c.logger.Error("platform request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError(fmt.Errorf("%s request failed: %w", op, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordUpstreamCall(op, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error("failed to read platform response",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError(fmt.Errorf("failed to read %s response: %w", op, err))
	}

	c.debug("platform response received",
		slog.String("operation", op),
		slog.Int("status", resp.StatusCode),
	)

	return &upstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// upstreamError は非成功レスポンスをUpstreamErrorに変換する。
// ステータスコードはプラットフォームの値をそのまま使う。
func (c *Client) upstreamError(op string, resp *upstreamResponse, fallback string) *model.APIError {
	message := normalizeErrorMessage(resp.Body, fallback)

	if c.config.VerboseLogging {
		c.logger.Debug("platform error response",
			slog.String("operation", op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(resp.Body)),
		)
	} else {
		c.logger.Error("platform returned error",
			slog.String("operation", op),
			slog.Int("status", resp.StatusCode),
			slog.String("message", message),
		)
	}

	return model.NewUpstreamError(resp.StatusCode, message)
}

// debug はVerboseLoggingが有効な場合のみDebugログを出力する。
func (c *Client) debug(msg string, args ...any) {
	if c.config.VerboseLogging {
		c.logger.Debug(msg, args...)
	}
}
