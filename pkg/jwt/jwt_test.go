package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", 60, 3600)

	token, err := m.GenerateAccessToken("pro-1", "professional")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pro-1", claims.UserID)
	assert.Equal(t, "professional", claims.Role)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("secret", -60, -60)

	token, err := m.GenerateAccessToken("pro-1", "")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_WrongSecret(t *testing.T) {
	token, err := NewManager("secret", 60, 60).GenerateAccessToken("pro-1", "")
	require.NoError(t, err)

	_, err = NewManager("other", 60, 60).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager("secret", 60, 60).VerifyToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
