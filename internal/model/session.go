// Package model はドメインモデルを定義する。
package model

import "time"

// Credential はOAuth2ハンドシェイクで得たベアラートークン一式を表す。
// セッション発行時に一度だけ作られ、以後は変更しない。
type Credential struct {
	AccessToken     string
	RefreshToken    string // 現行の操作では使用しないが、トークン更新のために保持する
	SecondarySecret string // プロバイダー固有（access_token_secret）
}

// HasAccessToken はプラットフォームAPI呼び出しに必要なアクセストークンを持つかどうかを返す。
func (c Credential) HasAccessToken() bool {
	return c.AccessToken != ""
}

// Identity はセッションに紐づくユーザーの基本プロフィール。
type Identity struct {
	UserID      string
	DisplayName string
	Handle      string
}

// Session は署名済みセッションアーティファクトから復元されたログイン状態を表す。
// サーバー側にセッションテーブルは持たず、アーティファクトそのものがセッションとなる。
type Session struct {
	Identity   Identity
	Credential Credential
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
