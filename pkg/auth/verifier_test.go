package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rempla/rempla-backend/pkg/jwt"
)

func TestJWTVerifier(t *testing.T) {
	m := jwt.NewManager("secret", 60, 60)
	token, err := m.GenerateAccessToken("est-1", "establishment")
	require.NoError(t, err)

	id, err := NewJWTVerifier(m).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "est-1", Role: "establishment"}, id)

	_, err = NewJWTVerifier(m).Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestChain(t *testing.T) {
	a := jwt.NewManager("a", 60, 60)
	b := jwt.NewManager("b", 60, 60)
	chain := Chain{NewJWTVerifier(a), NewJWTVerifier(b)}

	token, err := b.GenerateAccessToken("pro-1", "")
	require.NoError(t, err)

	id, err := chain.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "pro-1", id.UserID)

	_, err = chain.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
