// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tweetbox/internal/middleware"
	"github.com/hitoshi/tweetbox/internal/model"
)

// PostGateway は投稿ハンドラーが必要とするプラットフォームゲートウェイのインターフェース。
type PostGateway interface {
	ListOwnPosts(ctx context.Context, accessToken, userID string, maxResults int) (*model.PostList, error)
	GetOwnProfile(ctx context.Context, accessToken string) (*model.Profile, error)
	CreatePost(ctx context.Context, accessToken, text string) (*model.CreatedPost, error)
	DeletePost(ctx context.Context, accessToken, postID string) (*model.DeleteResult, error)
}

// PostHandlerConfig は投稿ハンドラーの設定。
type PostHandlerConfig struct {
	DefaultMaxResults int // maxResults省略時の取得件数
	MaxResultsLimit   int // maxResultsの上限。超えた値は上限に丸める
}

// PostHandler は投稿操作のHTTPハンドラー。
// 各ハンドラーはセッションの確認、入力検証、ゲートウェイ呼び出し、レスポンス整形のみを行う。
type PostHandler struct {
	gateway PostGateway
	config  PostHandlerConfig
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(gateway PostGateway, config PostHandlerConfig) *PostHandler {
	if config.DefaultMaxResults <= 0 {
		config.DefaultMaxResults = 5
	}
	if config.MaxResultsLimit <= 0 {
		config.MaxResultsLimit = 100
	}
	return &PostHandler{
		gateway: gateway,
		config:  config,
	}
}

// dataResponse は{data: ...}形式のレスポンス。
type dataResponse struct {
	Data any `json:"data"`
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Text string `json:"text"`
}

// ListPosts は自分の投稿一覧を返す。
// GET /api/twitter/tweets?userId=xxx&maxResults=5
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := requireAccessToken(w, r)
	if !ok {
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		middleware.WriteErrorResponse(w, model.NewInvalidArgumentError("userId is required"))
		return
	}

	maxResults, err := h.parseMaxResults(r.URL.Query().Get("maxResults"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	list, err := h.gateway.ListOwnPosts(r.Context(), accessToken, userID, maxResults)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetMe は認証ユーザーのプロフィールを返す。
// GET /api/twitter/me
func (h *PostHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := requireAccessToken(w, r)
	if !ok {
		return
	}

	profile, err := h.gateway.GetOwnProfile(r.Context(), accessToken)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{Data: profile})
}

// CreatePost は投稿を作成する。
// POST /api/twitter/create
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := requireAccessToken(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidArgumentError("Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteErrorResponse(w, model.NewInvalidArgumentError("Tweet text is required"))
		return
	}

	created, err := h.gateway.CreatePost(r.Context(), accessToken, req.Text)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{Data: created})
}

// DeletePost は投稿を削除する。
// DELETE /api/twitter/delete/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := requireAccessToken(w, r)
	if !ok {
		return
	}

	postID := strings.TrimSpace(chi.URLParam(r, "id"))
	if postID == "" {
		middleware.WriteErrorResponse(w, model.NewInvalidArgumentError("Tweet ID is required"))
		return
	}

	result, err := h.gateway.DeletePost(r.Context(), accessToken, postID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{Data: result})
}

// parseMaxResults はmaxResultsクエリを解釈する。
// 省略時は既定値、上限を超える値は上限に丸める。
func (h *PostHandler) parseMaxResults(raw string) (int, error) {
	if raw == "" {
		return min(h.config.DefaultMaxResults, h.config.MaxResultsLimit), nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, model.NewInvalidArgumentError("maxResults must be a positive integer")
	}
	if n > h.config.MaxResultsLimit {
		n = h.config.MaxResultsLimit
	}
	return n, nil
}

// requireAccessToken はセッションのアクセストークンを取り出す。
// セッションがない、またはアクセストークンが空の場合は401を書き込んでfalseを返す。
func requireAccessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil || !sess.Credential.HasAccessToken() {
		middleware.WriteErrorResponse(w, model.NewUnauthenticatedError())
		return "", false
	}
	return sess.Credential.AccessToken, true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
