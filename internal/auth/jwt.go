// Package auth issues and verifies session tokens, hashes local passwords and
// talks to the Google OAuth endpoints.
//
// SESSION FLOW:
//  1. A credential (Google profile or email+password) is authenticated by
//     service.AuthService, which returns a model.Identity.
//  2. The handler asks TokenService for a signed JWT whose "sub" claim is the
//     user ID and stores it in the HttpOnly "token" cookie.
//  3. RequireAuth validates the JWT on each protected request and resolves
//     the subject back to an Identity through an IdentityResolver.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	issuer          = "wish-board"
	DefaultTokenTTL = 24 * time.Hour
)

var (
	// ErrTokenExpired is returned by Validate for a well-formed session whose
	// lifetime has passed.
	ErrTokenExpired = errors.New("auth: session expired")
	// ErrInvalidToken covers every other rejection: bad signature, foreign
	// issuer, missing expiry or subject, unparseable input.
	ErrInvalidToken = errors.New("auth: invalid session token")
)

// TokenService signs and verifies HS256 session tokens. Every token carries
// sub (user ID), iss, iat, exp = iat + ttl, and a unique jti.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService creates a TokenService with the given secret. A ttl of zero
// selects DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// TTL is the lifetime of tokens produced by Generate. Handlers use it for the
// cookie's Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate signs a session token for userID that expires after TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: session subject is empty")
	}

	iat := s.now()
	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session for %s: %w", userID, err)
	}
	return signed, nil
}

// Validate verifies a session token and returns the user ID it was issued to.
func (s *TokenService) Validate(raw string) (string, error) {
	var c jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case c.Subject == "":
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return c.Subject, nil
}
