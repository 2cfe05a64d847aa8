package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Codec reads the claims of bearer tokens issued by the backend. It never
// verifies signatures; that is the server's job.
type Codec struct {
	clock  clockwork.Clock
	parser *jwt.Parser
	logger *zap.Logger
}

// NewCodec creates a codec that judges expiry against clock.
func NewCodec(clock clockwork.Clock, logger *zap.Logger) *Codec {
	return &Codec{
		clock:  clock,
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
		logger: logger,
	}
}

// Decode returns the payload claims of token. It reports false for any
// malformed input instead of returning an error.
func (c *Codec) Decode(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		c.logger.Debug("decode token: wrong segment count", zap.Int("segments", len(parts)))
		return nil, false
	}
	raw, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		c.logger.Debug("decode token: payload is not base64url", zap.Error(err))
		return nil, false
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		c.logger.Debug("decode token: payload is not a JSON object", zap.Error(err))
		return nil, false
	}
	return claims, true
}

// Expiration returns the exp claim as a time.
func (c *Codec) Expiration(token string) (time.Time, bool) {
	claims, ok := c.Decode(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsExpired reports whether token should be treated as unusable. Tokens that
// cannot be decoded or carry no exp claim count as expired.
func (c *Codec) IsExpired(token string) bool {
	exp, ok := c.Expiration(token)
	if !ok {
		return true
	}
	return !c.clock.Now().Before(exp)
}

// TimeUntilExpiration returns exp minus now. The duration is negative once
// the token has expired.
func (c *Codec) TimeUntilExpiration(token string) (time.Duration, bool) {
	exp, ok := c.Expiration(token)
	if !ok {
		return 0, false
	}
	return exp.Sub(c.clock.Now()), true
}
