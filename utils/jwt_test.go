package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateAccessToken("secret", userID, "user@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("secret", uuid.New(), "user@example.com", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateAccessToken("secret", uuid.New(), "user@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestRefreshTokenHashIsDeterministic(t *testing.T) {
	token, hash, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Equal(t, hash, HashToken(token))

	_, otherHash, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, hash, otherHash)
}
