package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tweetbox/internal/model"
)

// PendingLogin はOAuth認可リクエストからコールバックまでの間に保持する値。
type PendingLogin struct {
	State        string `json:"state"`
	CodeVerifier string `json:"verifier"`
}

// Manager はリクエストからのセッション解決と、Cookieへのアーティファクト書き込みを担う。
type Manager struct {
	codec   *Codec
	cookies CookieConfig
	logger  *slog.Logger
}

// NewManager はManagerを生成する。
func NewManager(codec *Codec, cookies CookieConfig, logger *slog.Logger) *Manager {
	return &Manager{
		codec:   codec,
		cookies: cookies,
		logger:  logger,
	}
}

// Resolve はリクエストのセッションCookieからセッションを復元する。
// Cookieがない、または検証に失敗した場合はnilを返す。これは正常系であり、エラーとしては扱わない。
func (m *Manager) Resolve(r *http.Request) *model.Session {
	cookie, err := r.Cookie(m.cookies.SessionCookieName())
	if err != nil || cookie.Value == "" {
		return nil
	}

	sess, err := m.codec.Decode(cookie.Value)
	if err != nil {
		m.logger.Debug("session artifact rejected",
			slog.String("reason", err.Error()),
			slog.String("path", r.URL.Path),
		)
		return nil
	}

	return sess
}

// Save はセッションを封緘してセッションCookieに設定する。
func (m *Manager) Save(w http.ResponseWriter, sess *model.Session) error {
	artifact, err := m.codec.Encode(sess, time.Duration(m.cookies.MaxAge)*time.Second)
	if err != nil {
		return err
	}

	http.SetCookie(w, m.cookies.cookie(m.cookies.SessionCookieName(), artifact, m.cookies.MaxAge))
	return nil
}

// Clear はセッションCookieを削除する。
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookies.cookie(m.cookies.SessionCookieName(), "", -1))
}

// SaveLogin はOAuthフローのstateとPKCE verifierを封緘してCookieに設定する。
func (m *Manager) SaveLogin(w http.ResponseWriter, login PendingLogin) error {
	artifact, err := m.codec.Seal(PurposeLogin, login, LoginCookieMaxAge*time.Second)
	if err != nil {
		return err
	}

	http.SetCookie(w, m.cookies.cookie(m.cookies.LoginCookieName(), artifact, LoginCookieMaxAge))
	return nil
}

// TakeLogin はOAuthフロー用Cookieを読み出して削除する。
// 一度読み出したCookieは再利用できない。
func (m *Manager) TakeLogin(w http.ResponseWriter, r *http.Request) (*PendingLogin, error) {
	cookie, err := r.Cookie(m.cookies.LoginCookieName())
	if err != nil {
		return nil, ErrInvalidArtifact
	}

	http.SetCookie(w, m.cookies.cookie(m.cookies.LoginCookieName(), "", -1))

	var login PendingLogin
	if err := m.codec.Open(PurposeLogin, cookie.Value, &login); err != nil {
		return nil, err
	}
	if login.State == "" || login.CodeVerifier == "" {
		return nil, errors.Join(ErrInvalidArtifact, errors.New("incomplete login state"))
	}

	return &login, nil
}
