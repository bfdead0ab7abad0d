package twitter

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/tweetbox/internal/model"
)

const (
	headerRateLimitLimit     = "x-rate-limit-limit"
	headerRateLimitRemaining = "x-rate-limit-remaining"
	headerRateLimitReset     = "x-rate-limit-reset"

	// DefaultResetWindow はリセット時刻ヘッダーがない場合に仮定する待ち時間。
	DefaultResetWindow = 900 * time.Second
)

// RateLimitState はレスポンスヘッダーから読み取ったレート制限状態。
// 呼び出しごとに導出し、永続化しない。
type RateLimitState struct {
	Limit     int       // 不明な場合は-1
	Remaining int       // 不明な場合は-1
	ResetAt   time.Time // 不明な場合はゼロ値
}

// ParseRateLimitHeaders はx-rate-limit-*ヘッダーからRateLimitStateを読み取る。
// 数値として解釈できないヘッダーは存在しないものとして扱う。
func ParseRateLimitHeaders(h http.Header) RateLimitState {
	state := RateLimitState{
		Limit:     parseHeaderInt(h, headerRateLimitLimit),
		Remaining: parseHeaderInt(h, headerRateLimitRemaining),
	}

	if v := strings.TrimSpace(h.Get(headerRateLimitReset)); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.ResetAt = time.Unix(epoch, 0).UTC()
		}
	}

	return state
}

// Guidance はnow時点での再試行ガイダンスを計算する。
// リセット時刻が不明な場合はnow+900秒をリセット時刻とみなす。
// 待ち秒数は0未満にならない。
func (s RateLimitState) Guidance(now time.Time) model.RateLimitInfo {
	nowEpoch := now.Unix()

	resetEpoch := nowEpoch + int64(DefaultResetWindow/time.Second)
	if !s.ResetAt.IsZero() {
		resetEpoch = s.ResetAt.Unix()
	}

	wait := resetEpoch - nowEpoch
	if wait < 0 {
		wait = 0
	}

	return model.RateLimitInfo{
		WaitSeconds: wait,
		ResetAt:     time.Unix(resetEpoch, 0).UTC(),
	}
}

// logAttrs はログ出力用の属性を返す。
func (s RateLimitState) logAttrs() []any {
	reset := "unknown"
	if !s.ResetAt.IsZero() {
		reset = s.ResetAt.Format(time.RFC3339)
	}
	return []any{
		slog.Int("limit", s.Limit),
		slog.Int("remaining", s.Remaining),
		slog.String("reset_time", reset),
	}
}

func parseHeaderInt(h http.Header, key string) int {
	v := strings.TrimSpace(h.Get(key))
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
