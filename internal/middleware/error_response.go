package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/tweetbox/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// スロットリング時のみ再試行ガイダンスを含む。
type ErrorResponseBody struct {
	Error             string `json:"error"`
	RateLimitExceeded bool   `json:"rateLimitExceeded,omitempty"`
	RetryAfter        *int64 `json:"retryAfter,omitempty"`
	ResetTime         string `json:"resetTime,omitempty"`
}

// NewErrorResponseBody はAPIErrorからレスポンスボディを組み立てる。
func NewErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	body := ErrorResponseBody{Error: apiErr.Message}
	if apiErr.Kind != model.KindRateLimited {
		return body
	}

	body.RateLimitExceeded = true
	if info := apiErr.RateLimit; info != nil {
		retryAfter := info.WaitSeconds
		body.RetryAfter = &retryAfter
		body.ResetTime = info.ResetAt.UTC().Format(time.RFC3339)
	}
	return body
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIErrorの値を使う。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	if apiErr.RateLimit != nil {
		w.Header().Set("Retry-After", strconv.FormatInt(apiErr.RateLimit.WaitSeconds, 10))
	}
	writeJSON(w, apiErr.Status, NewErrorResponseBody(apiErr))
}

// WriteError は任意のエラーをAPIエラーレスポンスに変換して書き込む。
// 内部エラーの詳細はログのみに記録し、クライアントには汎用メッセージを返す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := model.AsAPIError(err)

	if apiErr.Kind == model.KindInternal {
		slog.ErrorContext(r.Context(), "internal error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}

	WriteErrorResponse(w, apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponseBody{Error: model.MessageInternalError})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
