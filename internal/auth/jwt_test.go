package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier([]byte("secret"))

	tok, err := v.Issue("host-1", RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := v.RequireRole(tok, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "host-1", claims.Subject)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier([]byte("secret"))

	t.Run("expired", func(t *testing.T) {
		tok, err := v.Issue("host-1", RoleAdmin, time.Minute, time.Now().Add(-time.Hour))
		require.NoError(t, err)

		_, err = v.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := NewVerifier([]byte("other")).Issue("host-1", RoleAdmin, time.Hour, time.Now())
		require.NoError(t, err)

		_, err = v.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong role", func(t *testing.T) {
		tok, err := v.Issue("guest", "guest", time.Hour, time.Now())
		require.NoError(t, err)

		_, err = v.RequireRole(tok, RoleAdmin)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
