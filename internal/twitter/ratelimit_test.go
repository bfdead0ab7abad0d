package twitter

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRateLimitHeaders_AllPresent(t *testing.T) {
	h := http.Header{}
	h.Set("x-rate-limit-limit", "900")
	h.Set("x-rate-limit-remaining", "0")
	h.Set("x-rate-limit-reset", "1767225600")

	state := ParseRateLimitHeaders(h)

	assert.Equal(t, 900, state.Limit)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, int64(1767225600), state.ResetAt.Unix())
}

func TestParseRateLimitHeaders_MissingOrInvalid(t *testing.T) {
	h := http.Header{}
	h.Set("x-rate-limit-limit", "abc")
	h.Set("x-rate-limit-reset", "soon")

	state := ParseRateLimitHeaders(h)

	assert.Equal(t, -1, state.Limit)
	assert.Equal(t, -1, state.Remaining)
	assert.True(t, state.ResetAt.IsZero(), "解釈できないresetは未指定として扱うべき")
}

func TestRateLimitState_Guidance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name        string
		resetHeader string
		wantWait    int64
		wantMinutes int64
		wantReset   int64
	}{
		{"125秒後", strconv.FormatInt(now.Unix()+125, 10), 125, 3, now.Unix() + 125},
		{"60秒後", strconv.FormatInt(now.Unix()+60, 10), 60, 1, now.Unix() + 60},
		{"ヘッダーなし", "", 900, 15, now.Unix() + 900},
		{"過去のリセット時刻", strconv.FormatInt(now.Unix()-30, 10), 0, 0, now.Unix() - 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.resetHeader != "" {
				h.Set("x-rate-limit-reset", tt.resetHeader)
			}

			info := ParseRateLimitHeaders(h).Guidance(now)

			assert.Equal(t, tt.wantWait, info.WaitSeconds)
			assert.Equal(t, tt.wantMinutes, info.WaitMinutes())
			assert.Equal(t, tt.wantReset, info.ResetAt.Unix())
			assert.Equal(t, time.UTC, info.ResetAt.Location())
		})
	}
}
