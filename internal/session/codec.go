// Package session はセッションアーティファクトの封緘・復元とCookieへの載せ替えを提供する。
// サーバー側にセッションを保存せず、暗号化・改ざん検知されたアーティファクトそのものをセッションとする。
package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/hitoshi/tweetbox/internal/model"
)

const (
	// MinSecretLength はセッション秘密鍵の最小バイト数。
	MinSecretLength = 32

	// artifactVersion はアーティファクト先頭のフォーマットバージョン。
	// AADにも含めるため、書き換えると復号に失敗する。
	artifactVersion byte = 0x01

	// PurposeSession はログインセッション用アーティファクトの用途ラベル。
	PurposeSession = "session"
	// PurposeLogin はOAuthフロー途中のstate/verifier用アーティファクトの用途ラベル。
	PurposeLogin = "oauth-login"
)

// hkdfInfo はセッション鍵導出のドメイン分離ラベル。変更すると既存のセッションはすべて無効になる。
var hkdfInfo = []byte("tweetbox.session.v1")

var (
	// ErrInvalidArtifact はアーティファクトが欠落・破損・改ざんされている場合に返る。
	ErrInvalidArtifact = errors.New("invalid session artifact")
	// ErrExpired はアーティファクトの有効期限が切れている場合に返る。
	ErrExpired = errors.New("session artifact expired")
	// ErrSecretTooShort は秘密鍵がMinSecretLengthに満たない場合に返る。
	ErrSecretTooShort = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	// ErrMissingAccessToken はアクセストークンを持たないセッションを封緘しようとした場合に返る。
	ErrMissingAccessToken = errors.New("session credential has no access token")
)

// envelope はアーティファクト内部の平文構造。
type envelope struct {
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
	Data      json.RawMessage `json:"d"`
}

// sessionClaims はセッションアーティファクトに格納するクレーム。
type sessionClaims struct {
	UserID          string `json:"uid"`
	Name            string `json:"name"`
	Handle          string `json:"handle"`
	AccessToken     string `json:"at"`
	RefreshToken    string `json:"rt,omitempty"`
	SecondarySecret string `json:"ss,omitempty"`
}

// Codec はXChaCha20-Poly1305でアーティファクトを封緘・復元するトークンストア。
// 出力形式: base64url([version 1byte][nonce 24byte][ciphertext+tag])
type Codec struct {
	aead cipher.AEAD
	now  func() time.Time
}

// NewCodec は秘密鍵からHKDF-SHA256で導出した鍵を使うCodecを生成する。
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cipher: %w", err)
	}

	return &Codec{aead: aead, now: time.Now}, nil
}

// Encode はセッションを有効期間ttlのアーティファクトに封緘する。
func (c *Codec) Encode(sess *model.Session, ttl time.Duration) (string, error) {
	if sess == nil || !sess.Credential.HasAccessToken() {
		return "", ErrMissingAccessToken
	}

	return c.Seal(PurposeSession, sessionClaims{
		UserID:          sess.Identity.UserID,
		Name:            sess.Identity.DisplayName,
		Handle:          sess.Identity.Handle,
		AccessToken:     sess.Credential.AccessToken,
		RefreshToken:    sess.Credential.RefreshToken,
		SecondarySecret: sess.Credential.SecondarySecret,
	}, ttl)
}

// Decode はアーティファクトを検証してセッションを復元する。
// 欠落・改ざん・期限切れはいずれもエラーとして返し、panicしない。
func (c *Codec) Decode(artifact string) (*model.Session, error) {
	env, err := c.openEnvelope(PurposeSession, artifact)
	if err != nil {
		return nil, err
	}

	var claims sessionClaims
	if err := json.Unmarshal(env.Data, &claims); err != nil {
		return nil, ErrInvalidArtifact
	}
	if claims.AccessToken == "" {
		return nil, ErrInvalidArtifact
	}

	return &model.Session{
		Identity: model.Identity{
			UserID:      claims.UserID,
			DisplayName: claims.Name,
			Handle:      claims.Handle,
		},
		Credential: model.Credential{
			AccessToken:     claims.AccessToken,
			RefreshToken:    claims.RefreshToken,
			SecondarySecret: claims.SecondarySecret,
		},
		IssuedAt:  time.Unix(env.IssuedAt, 0),
		ExpiresAt: time.Unix(env.ExpiresAt, 0),
	}, nil
}

// Seal は任意の値をJSONにして用途purposeのアーティファクトに封緘する。
// purposeはAADに含まれるため、別用途のアーティファクトとして復元することはできない。
func (c *Codec) Seal(purpose string, v any, ttl time.Duration) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact payload: %w", err)
	}

	now := c.now()
	plaintext, err := json.Marshal(envelope{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Data:      data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact envelope: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, artifactVersion)
	out = append(out, nonce[:]...)
	out = c.aead.Seal(out, nonce[:], plaintext, additionalData(purpose))

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open は用途purposeのアーティファクトを検証し、中身をvに復元する。
func (c *Codec) Open(purpose, artifact string, v any) error {
	env, err := c.openEnvelope(purpose, artifact)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return ErrInvalidArtifact
	}
	return nil
}

func (c *Codec) openEnvelope(purpose, artifact string) (*envelope, error) {
	if artifact == "" {
		return nil, ErrInvalidArtifact
	}

	raw, err := base64.RawURLEncoding.DecodeString(artifact)
	if err != nil {
		return nil, ErrInvalidArtifact
	}

	headerLen := 1 + chacha20poly1305.NonceSizeX
	if len(raw) < headerLen+c.aead.Overhead() || raw[0] != artifactVersion {
		return nil, ErrInvalidArtifact
	}

	plaintext, err := c.aead.Open(nil, raw[1:headerLen], raw[headerLen:], additionalData(purpose))
	if err != nil {
		return nil, ErrInvalidArtifact
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, ErrInvalidArtifact
	}

	if c.now().Unix() >= env.ExpiresAt {
		return nil, ErrExpired
	}

	return &env, nil
}

func additionalData(purpose string) []byte {
	aad := make([]byte, 0, 1+len(purpose))
	aad = append(aad, artifactVersion)
	return append(aad, purpose...)
}
