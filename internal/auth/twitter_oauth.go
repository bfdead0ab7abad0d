package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/tweetbox/internal/model"
)

const (
	defaultTwitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	defaultTwitterTokenURL = "https://api.twitter.com/2/oauth2/token"

	// tokenExtraSecondarySecret はトークンレスポンスに含まれるプロバイダー固有のシークレット。
	tokenExtraSecondarySecret = "access_token_secret"
)

// Scopes はログイン時に要求するスコープ。
// offline.accessはリフレッシュトークンの取得に必要。
var Scopes = []string{"users.read", "tweet.read", "tweet.write", "offline.access"}

// TwitterOAuthConfig はX（Twitter）OAuth 2.0プロバイダーの設定。
type TwitterOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string

	// HTTPClient はトークンエンドポイントへの通信に使う。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// TwitterOAuthProvider はPKCE付き認可コードフローによる認証を提供する。
type TwitterOAuthProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewTwitterOAuthProvider はTwitterOAuthProviderを生成する。
func NewTwitterOAuthProvider(config TwitterOAuthConfig) *TwitterOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultTwitterAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTwitterTokenURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	return &TwitterOAuthProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: config.HTTPClient,
	}
}

// TokenURL はトークンエンドポイントのURLを返す。
func (p *TwitterOAuthProvider) TokenURL() string {
	return p.config.Endpoint.TokenURL
}

// LoginURL はS256のコードチャレンジ付きの認可URLを生成する。
func (p *TwitterOAuthProvider) LoginURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange は認可コードとPKCE verifierをトークンに交換する。
func (p *TwitterOAuthProvider) Exchange(ctx context.Context, code, verifier string) (*model.Credential, error) {
	token, err := p.config.Exchange(p.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return credentialFromToken(token)
}

// Refresh はリフレッシュトークンで新しいトークンを取得する。
// 新しいレスポンスにリフレッシュトークンが含まれない場合は元の値を引き継ぐ。
func (p *TwitterOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*model.Credential, error) {
	ts := p.config.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return credentialFromToken(token)
}

func (p *TwitterOAuthProvider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// credentialFromToken はoauth2.TokenをCredentialに変換する。
func credentialFromToken(token *oauth2.Token) (*model.Credential, error) {
	if token.AccessToken == "" {
		return nil, errors.New("empty access token in response")
	}

	cred := &model.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if secret, ok := token.Extra(tokenExtraSecondarySecret).(string); ok {
		cred.SecondarySecret = secret
	}

	return cred, nil
}

// compile-time interface check
var _ OAuthProvider = (*TwitterOAuthProvider)(nil)
