package apitest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const issuer = "all-in-dash-apitest"

// TokenManager issues and verifies HS256 JWTs the way the real backend does.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewTokenManager creates a manager with the provided secret, lifetime and clock.
func NewTokenManager(secret string, ttl time.Duration, clock clockwork.Clock) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Generate issues a token for userID using the default lifetime.
func (t *TokenManager) Generate(userID string) (string, error) {
	return t.GenerateWithTTL(userID, t.ttl)
}

// GenerateWithTTL issues a token that expires ttl from now. A negative ttl
// yields an already expired token.
func (t *TokenManager) GenerateWithTTL(userID string, ttl time.Duration) (string, error) {
	now := t.clock.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature and expiry and returns the subject.
func (t *TokenManager) Verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
