package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func TestGenerateAndVerify(t *testing.T) {
	tok, err := GenerateAccessToken(secret, "sitectl", 2*time.Minute)
	require.NoError(t, err)

	got, err := NewHMACVerifier(secret).Verify(context.Background(), tok)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, got.Claims(&claims))
	require.Equal(t, "sitectl", claims["sub"])
	require.Equal(t, Issuer, claims["iss"])
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, err := GenerateAccessToken("", "x", time.Minute)
	require.ErrorIs(t, err, ErrNoSecret)
	_, err = NewHMACVerifier("").Verify(context.Background(), "a.b.c")
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestVerifyRejects(t *testing.T) {
	v := NewHMACVerifier(secret)
	ctx := context.Background()

	expired, err := GenerateAccessToken(secret, "u", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	require.Error(t, err, "expired")

	other, err := GenerateAccessToken("different-secret-xxxxxxxxxxxxxxxx", "u", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	require.Error(t, err, "wrong secret")

	_, err = v.Verify(ctx, "not.a.jwt")
	require.Error(t, err, "malformed")

	seg := base64.RawURLEncoding.EncodeToString
	none := seg([]byte(`{"alg":"none"}`)) + "." + seg([]byte(`{"sub":"u","iss":"ai-consultant","exp":9999999999}`)) + "."
	_, err = v.Verify(ctx, none)
	require.Error(t, err, "alg=none")

	noIss := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Minute).Unix()})
	s, err := noIss.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, s)
	require.Error(t, err, "foreign issuer")
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	tok, err := GenerateAccessToken(secret, "user-t", 5*time.Minute)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = NewHMACVerifier(secret).Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}
