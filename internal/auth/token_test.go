package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newCodec() (*Codec, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(epoch)
	return NewCodec(clock, zap.NewNop()), clock
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func rawToken(payload string) string {
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func TestDecode(t *testing.T) {
	codec, _ := newCodec()

	claims, ok := codec.Decode(signed(t, jwt.MapClaims{"sub": "u1", "exp": epoch.Add(time.Hour).Unix()}))
	require.True(t, ok)
	assert.Equal(t, "u1", claims["sub"])

	padded := "h." + base64.URLEncoding.EncodeToString([]byte(`{"a":1}`)) + ".s"
	_, ok = codec.Decode(padded)
	assert.True(t, ok, "padding is tolerated")

	for name, token := range map[string]string{
		"empty":         "",
		"two segments":  "a.b",
		"four segments": "a.b.c.d",
		"bad base64":    "a.!!!.c",
		"not json":      rawToken("hello"),
		"json array":    rawToken(`[1,2]`),
		"json null":     rawToken(`null`),
		"empty payload": "a..c",
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := codec.Decode(token)
			assert.False(t, ok)
		})
	}
}

func TestIsExpiredFailsClosed(t *testing.T) {
	codec, _ := newCodec()

	assert.True(t, codec.IsExpired(""))
	assert.True(t, codec.IsExpired("not-a-token"))
	assert.True(t, codec.IsExpired(rawToken(`{"sub":"u1"}`)), "missing exp")
	assert.True(t, codec.IsExpired(rawToken(`{"exp":"tomorrow"}`)), "non-numeric exp")
	assert.True(t, codec.IsExpired(rawToken(`{"exp":0}`)), "zero exp")
}

func TestIsExpired(t *testing.T) {
	codec, clock := newCodec()

	past := signed(t, jwt.MapClaims{"exp": epoch.Add(-time.Second).Unix()})
	future := signed(t, jwt.MapClaims{"exp": epoch.Add(time.Hour).Unix()})
	boundary := signed(t, jwt.MapClaims{"exp": epoch.Unix()})

	assert.True(t, codec.IsExpired(past))
	assert.False(t, codec.IsExpired(future))
	assert.True(t, codec.IsExpired(boundary), "expiry instant itself counts as expired")

	clock.Advance(time.Hour)
	assert.True(t, codec.IsExpired(future))
}

func TestTimeUntilExpiration(t *testing.T) {
	codec, clock := newCodec()
	token := signed(t, jwt.MapClaims{"exp": epoch.Add(90 * time.Second).Unix()})

	d, ok := codec.TimeUntilExpiration(token)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	clock.Advance(2 * time.Minute)
	d, ok = codec.TimeUntilExpiration(token)
	require.True(t, ok)
	assert.Equal(t, -30*time.Second, d)

	_, ok = codec.TimeUntilExpiration("garbage")
	assert.False(t, ok)
	_, ok = codec.TimeUntilExpiration(rawToken(`{"sub":"u1"}`))
	assert.False(t, ok)
}

func TestExpiration(t *testing.T) {
	codec, _ := newCodec()
	exp, ok := codec.Expiration(rawToken(`{"exp":1790000000}`))
	require.True(t, ok)
	assert.Equal(t, int64(1790000000), exp.Unix())
}
