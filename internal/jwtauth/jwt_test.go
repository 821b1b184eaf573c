package jwtauth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	service := NewService("test-signing-key", "capref-test")
	userID := uuid.NewString()

	token, err := service.GenerateToken(userID, "FRIEND42", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "FRIEND42", claims.ReferralCode)
}

func TestValidateTokenRejections(t *testing.T) {
	service := NewService("test-signing-key", "capref-test")

	t.Run("garbage input", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("different-key", "capref-test")
		token, err := other.GenerateToken(uuid.NewString(), "FRIEND42", time.Hour)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := service.GenerateToken(uuid.NewString(), "FRIEND42", -time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		require.Error(t, err)
	})
}
