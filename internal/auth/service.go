// Package auth はOAuth認証フローとセッションの発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/tweetbox/internal/model"
)

// ErrNoRefreshToken はリフレッシュトークンを持たない資格情報の更新を要求された場合に返す。
var ErrNoRefreshToken = errors.New("credential has no refresh token")

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// LoginURL はstateとPKCE verifierから認可URLを生成する。
	LoginURL(state, verifier string) string
	// Exchange は認可コードをトークンに交換する。
	Exchange(ctx context.Context, code, verifier string) (*model.Credential, error)
	// Refresh はリフレッシュトークンで新しいトークンを取得する。
	Refresh(ctx context.Context, refreshToken string) (*model.Credential, error)
}

// ProfileFetcher はアクセストークンでログインユーザーのプロフィールを取得する。
type ProfileFetcher interface {
	GetOwnProfile(ctx context.Context, accessToken string) (*model.Profile, error)
}

// LoginRequest は認可リクエストの開始に必要な値をまとめたもの。
// StateとCodeVerifierはコールバックまでCookieに封緘して保持する。
type LoginRequest struct {
	URL          string
	State        string
	CodeVerifier string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	profiles ProfileFetcher
	config   ServiceConfig
	now      func() time.Time

	// 同じリフレッシュトークンでの同時更新を1回にまとめる
	refreshGroup singleflight.Group
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, profiles ProfileFetcher, config ServiceConfig) *Service {
	return &Service{
		oauth:    oauth,
		profiles: profiles,
		config:   config,
		now:      time.Now,
	}
}

// BeginLogin はstateとPKCE verifierを生成し、認可URLを返す。
func (s *Service) BeginLogin() (*LoginRequest, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	return &LoginRequest{
		URL:          s.oauth.LoginURL(state, verifier),
		State:        state,
		CodeVerifier: verifier,
	}, nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを生成する。
// セッションの永続化は行わない。呼び出し側が封緘してCookieに書き込む。
func (s *Service) HandleCallback(ctx context.Context, code, verifier string) (*model.Session, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	// 1. 認可コードをトークンに交換
	cred, err := s.oauth.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. アクセストークンでプロフィールを取得
	profile, err := s.profiles.GetOwnProfile(ctx, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	// 3. セッションを組み立てる
	now := s.now()
	sess := &model.Session{
		Identity: model.Identity{
			UserID:      profile.ID,
			DisplayName: profile.Name,
			Handle:      profile.Username,
		},
		Credential: *cred,
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
	}

	slog.Info("user logged in",
		slog.String("user_id", profile.ID),
		slog.String("handle", profile.Username),
	)

	return sess, nil
}

// Refresh はリフレッシュトークンで資格情報を更新する。
// 投稿操作からは呼ばれず、アクセストークンの期限切れに備えて用意している。
func (s *Service) Refresh(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	v, err, _ := s.refreshGroup.Do(cred.RefreshToken, func() (any, error) {
		return s.oauth.Refresh(ctx, cred.RefreshToken)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh credential: %w", err)
	}

	shared, _ := v.(*model.Credential)
	if shared == nil {
		return nil, errors.New("failed to refresh credential: empty response")
	}

	// 共有結果を呼び出し元ごとに複製する
	refreshed := *shared
	if refreshed.SecondarySecret == "" {
		refreshed.SecondarySecret = cred.SecondarySecret
	}

	return &refreshed, nil
}

// generateState は暗号的に安全なstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
