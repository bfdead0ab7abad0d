package session

import "net/http"

const (
	sessionCookieBaseName = "tweetbox.session-token"
	loginCookieBaseName   = "tweetbox.oauth-login"

	// hostPrefix を付けたCookieはSecure・Path=/・Domain未指定でなければブラウザが受け付けない。
	hostPrefix = "__Host-"

	// LoginCookieMaxAge はOAuthフロー途中のCookieの有効期間（秒）。
	LoginCookieMaxAge = 600
)

// CookieConfig はセッション関連Cookieの属性設定。
// Domainは設定しない（サブドメインへ送信させない）。
type CookieConfig struct {
	Secure bool // 本番（https）ではtrue。__Host-プレフィックスも付与する
	MaxAge int  // セッションCookieの有効期間（秒）
}

// SessionCookieName はセッションCookie名を返す。
func (c CookieConfig) SessionCookieName() string {
	return c.name(sessionCookieBaseName)
}

// LoginCookieName はOAuthフロー用Cookie名を返す。
func (c CookieConfig) LoginCookieName() string {
	return c.name(loginCookieBaseName)
}

func (c CookieConfig) name(base string) string {
	if c.Secure {
		return hostPrefix + base
	}
	return base
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
