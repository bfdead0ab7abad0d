package middleware

import "net/http"

// DefaultMaxBodyBytes はリクエストボディの既定の上限。
const DefaultMaxBodyBytes = 64 << 10

// NewBodyLimitMiddleware はリクエストボディをmaxBytesまでに制限するミドルウェアを返す。
// 上限を超えた読み取りはハンドラー側でデコードエラーとなる。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
