package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	t.Run("should verify an issued token", func(t *testing.T) {
		v := NewVerifier("s3cret")
		token, err := v.Issue("ops", time.Hour, "banking")
		require.NoError(t, err)

		claims, err := v.Verify("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, []string{"banking"}, claims.Scope)
	})

	t.Run("should reject another secret", func(t *testing.T) {
		token, err := NewVerifier("one").Issue("ops", time.Hour)
		require.NoError(t, err)

		_, err = NewVerifier("two").Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		v := NewVerifier("s3cret")
		token, err := v.Issue("ops", -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("should reject unsigned tokens", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: issuer}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = NewVerifier("s3cret").Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("should reject garbage and empty input", func(t *testing.T) {
		v := NewVerifier("s3cret")
		_, err := v.Verify("Bearer ")
		assert.True(t, errors.Is(err, ErrInvalidToken))
		_, err = v.Verify("not.a.token")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("should refuse to work without a secret", func(t *testing.T) {
		v := NewVerifier("")
		_, err := v.Issue("ops", time.Hour)
		assert.ErrorIs(t, err, ErrNoSecret)
		_, err = v.Verify("x")
		assert.ErrorIs(t, err, ErrNoSecret)
	})
}
