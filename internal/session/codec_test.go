package session

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tweetbox/internal/model"
)

const testSecret = "test-session-secret-32bytes-long!"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret)
	require.NoError(t, err)
	return c
}

func testSession() *model.Session {
	return &model.Session{
		Identity: model.Identity{
			UserID:      "12345",
			DisplayName: "Hitoshi",
			Handle:      "hitoshi_dev",
		},
		Credential: model.Credential{
			AccessToken:     "access-token-abc",
			RefreshToken:    "refresh-token-def",
			SecondarySecret: "secret-ghi",
		},
	}
}

func TestNewCodec_ShortSecret_ReturnsError(t *testing.T) {
	_, err := NewCodec("too-short")
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestCodec_EncodeDecode_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	artifact, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, artifact, "access-token-abc", "アクセストークンが平文で含まれてはならない")

	got, err := c.Decode(artifact)
	require.NoError(t, err)

	assert.Equal(t, testSession().Identity, got.Identity)
	assert.Equal(t, testSession().Credential, got.Credential)
	assert.Equal(t, fixed.Unix(), got.IssuedAt.Unix())
	assert.Equal(t, fixed.Add(time.Hour).Unix(), got.ExpiresAt.Unix())
}

func TestCodec_Encode_WithoutAccessToken_ReturnsError(t *testing.T) {
	c := newTestCodec(t)

	sess := testSession()
	sess.Credential.AccessToken = ""

	_, err := c.Encode(sess, time.Hour)
	assert.ErrorIs(t, err, ErrMissingAccessToken)

	_, err = c.Encode(nil, time.Hour)
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestCodec_Decode_TamperedArtifact_ReturnsInvalid(t *testing.T) {
	c := newTestCodec(t)

	artifact, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(artifact)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, err = c.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestCodec_Decode_VersionByteChanged_ReturnsInvalid(t *testing.T) {
	c := newTestCodec(t)

	artifact, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(artifact)
	require.NoError(t, err)
	raw[0] = 0x02

	_, err = c.Decode(base64.RawURLEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestCodec_Decode_DifferentSecret_ReturnsInvalid(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(strings.Repeat("x", MinSecretLength))
	require.NoError(t, err)

	artifact, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)

	_, err = other.Decode(artifact)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestCodec_Decode_Expired_ReturnsExpired(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now()
	c.now = func() time.Time { return now }

	artifact, err := c.Encode(testSession(), time.Minute)
	require.NoError(t, err)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, err = c.Decode(artifact)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_Decode_MalformedInputs_ReturnInvalid(t *testing.T) {
	c := newTestCodec(t)

	inputs := map[string]string{
		"empty":     "",
		"not base64": "!!!not-base64!!!",
		"too short": base64.RawURLEncoding.EncodeToString([]byte{artifactVersion, 1, 2, 3}),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			sess, err := c.Decode(input)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestCodec_Open_PurposeMismatch_ReturnsInvalid(t *testing.T) {
	c := newTestCodec(t)

	artifact, err := c.Seal(PurposeLogin, PendingLogin{State: "s", CodeVerifier: "v"}, time.Minute)
	require.NoError(t, err)

	// ログイン用アーティファクトをセッションとして復元できてはならない
	_, err = c.Decode(artifact)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	var login PendingLogin
	require.NoError(t, c.Open(PurposeLogin, artifact, &login))
	assert.Equal(t, "s", login.State)
	assert.Equal(t, "v", login.CodeVerifier)
}

func TestCodec_Seal_ProducesDistinctArtifacts(t *testing.T) {
	c := newTestCodec(t)

	a, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)
	b, err := c.Encode(testSession(), time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "ノンスがランダムであれば同じ入力でも出力は異なるべき")
}
