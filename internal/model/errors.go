package model

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind はAPIエラーの分類を表す。
type ErrorKind string

// 定義済みエラー分類
const (
	KindUnauthenticated  ErrorKind = "UNAUTHENTICATED"
	KindInvalidArgument  ErrorKind = "INVALID_ARGUMENT"
	KindRateLimited      ErrorKind = "RATE_LIMITED"
	KindUpstream         ErrorKind = "UPSTREAM_ERROR"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindMethodNotAllowed ErrorKind = "METHOD_NOT_ALLOWED"
)

// ユーザー向けの定型メッセージ
const (
	MessageUnauthorized     = "Unauthorized"
	MessageInternalError    = "Internal server error"
	MessageProfileLimited   = "API制限に達しました。15分ほど待ってから再度お試しください。"
	MessageNotFound         = "Not found"
	MessageMethodNotAllowed = "Method not allowed"
)

// RateLimitInfo はスロットリング時にクライアントへ返す再試行ガイダンス。
type RateLimitInfo struct {
	WaitSeconds int64     // リセットまでの秒数（0以上）
	ResetAt     time.Time // リセット時刻
}

// WaitMinutes は表示用に切り上げた待ち時間（分）を返す。
func (i RateLimitInfo) WaitMinutes() int64 {
	return (i.WaitSeconds + 59) / 60
}

// APIError はハンドラー境界でHTTPレスポンスに変換されるエラーを表す。
type APIError struct {
	Kind      ErrorKind
	Status    int    // HTTPステータスコード
	Message   string // クライアントに返すメッセージ
	RateLimit *RateLimitInfo
	Err       error // ログ専用の詳細。クライアントには返さない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError はerrからAPIErrorを取り出す。
// APIError以外のエラーはInternalErrorとして包む。
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err)
}

// IsKind はerrが指定された分類のAPIErrorかどうかを判定する。
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Kind:    KindUnauthenticated,
		Status:  http.StatusUnauthorized,
		Message: MessageUnauthorized,
	}
}

// NewInvalidArgumentError は入力不正エラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Kind:    KindInvalidArgument,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

// NewRateLimitedError はスロットリングエラーを生成する。
// プラットフォームが返したステータスに関わらず常に429とする。
// infoがnilの場合は再試行ガイダンスを含まない。
func NewRateLimitedError(message string, info *RateLimitInfo) *APIError {
	return &APIError{
		Kind:      KindRateLimited,
		Status:    http.StatusTooManyRequests,
		Message:   message,
		RateLimit: info,
	}
}

// NewUpstreamError はプラットフォームの非成功レスポンスを表すエラーを生成する。
// プラットフォームのステータスコードをそのまま保持する。
func NewUpstreamError(status int, message string) *APIError {
	return &APIError{
		Kind:    KindUpstream,
		Status:  status,
		Message: message,
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はErrに保持し、クライアントには汎用メッセージのみを返す。
func NewInternalError(err error) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: MessageInternalError,
		Err:     err,
	}
}

// NewNotFoundError は存在しないルートへのリクエストを表すエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: MessageNotFound,
	}
}

// NewMethodNotAllowedError はルートが受け付けないメソッドを表すエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Message: MessageMethodNotAllowed,
	}
}
