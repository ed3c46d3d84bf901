package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	return ts
}

// clock is a settable time source; JWT dates have second precision.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClockedTokenService(t *testing.T, ttl time.Duration) (*TokenService, *clock) {
	t.Helper()
	ts, err := NewTokenService(testSecret, ttl)
	require.NoError(t, err)
	c := &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	ts.now = c.now
	return ts, c
}

// forge signs arbitrary claims with the service secret.
func forge(t *testing.T, method jwt.SigningMethod, key any, c jwt.RegisteredClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err, "secrets under 16 characters are rejected")

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, ts.TTL())

	ts, err = NewTokenService("this-is-16-chars", 90*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, ts.TTL())
}

func TestGenerate_ClaimsFollowConfiguredTTL(t *testing.T) {
	ts, c := newClockedTokenService(t, 90*time.Minute)

	raw, err := ts.Generate("user-42")
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, _, err = jwt.NewParser().ParseUnverified(raw, &claims)
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "wish-board", claims.Issuer)
	assert.True(t, c.t.Equal(claims.IssuedAt.Time), "iat = %v", claims.IssuedAt)
	assert.True(t, c.t.Add(90*time.Minute).Equal(claims.ExpiresAt.Time), "exp = %v", claims.ExpiresAt)
	assert.NotEmpty(t, claims.ID)

	again, err := ts.Generate("user-42")
	require.NoError(t, err)
	assert.NotEqual(t, raw, again, "each session gets its own jti")
}

func TestGenerate_RejectsEmptySubject(t *testing.T) {
	_, err := newTestTokenService(t).Generate("")
	assert.Error(t, err)
}

func TestValidate_Lifetime(t *testing.T) {
	ts, c := newClockedTokenService(t, time.Hour)
	raw, err := ts.Generate("user-42")
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	sub, err := ts.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	c.t = c.t.Add(2 * time.Minute)
	_, err = ts.Validate(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_Rejections(t *testing.T) {
	ts, c := newClockedTokenService(t, time.Hour)
	base := jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(c.t),
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
	}
	with := func(edit func(*jwt.RegisteredClaims)) jwt.RegisteredClaims {
		out := base
		edit(&out)
		return out
	}
	secret := []byte(testSecret)

	tests := []struct {
		name string
		raw  string
	}{
		{"foreign issuer", forge(t, jwt.SigningMethodHS256, secret, with(func(c *jwt.RegisteredClaims) { c.Issuer = "coding-playground" }))},
		{"no issuer", forge(t, jwt.SigningMethodHS256, secret, with(func(c *jwt.RegisteredClaims) { c.Issuer = "" }))},
		{"no expiry", forge(t, jwt.SigningMethodHS256, secret, with(func(c *jwt.RegisteredClaims) { c.ExpiresAt = nil }))},
		{"issued in the future", forge(t, jwt.SigningMethodHS256, secret, with(func(c *jwt.RegisteredClaims) {
			c.IssuedAt = jwt.NewNumericDate(base.IssuedAt.Add(10 * time.Minute))
		}))},
		{"no subject", forge(t, jwt.SigningMethodHS256, secret, with(func(c *jwt.RegisteredClaims) { c.Subject = "" }))},
		{"other secret", forge(t, jwt.SigningMethodHS256, []byte("another-secret-16-chars"), base)},
		{"HS512", forge(t, jwt.SigningMethodHS512, secret, base)},
		{"alg none", forge(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, base)},
		{"empty", ""},
		{"garbage", "not.a.jwt"},
	}

	sub, err := ts.Validate(forge(t, jwt.SigningMethodHS256, secret, base))
	require.NoError(t, err, "the untouched claims are accepted")
	require.Equal(t, "user-42", sub)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
