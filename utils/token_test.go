package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")

	token, err := GenerateToken(secret, "alice", time.Minute)
	require.NoError(t, err)

	userID, err := ParseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "alice", userID)
}

func TestParseToken_Rejects(t *testing.T) {
	secret := []byte("s3cret")

	expired, err := GenerateToken(secret, "alice", -time.Minute)
	require.NoError(t, err)

	otherKey, err := GenerateToken([]byte("other"), "alice", time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(secret)
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString(secret)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":     expired,
		"wrong_key":   otherKey,
		"no_subject":  noSubject,
		"wrong_alg":   wrongAlg,
		"garbage":     "not.a.token",
		"empty_token": "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
