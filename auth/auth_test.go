package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.True(t, errors.Is(err, story.ErrValidation))

	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword("secret1", hash))
	assert.False(t, CheckPassword("secret2", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	tok, err := issuer.Issue(7, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := issuer.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestTokenRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)

	tok, err := other.Issue(1, "x@example.com")
	require.NoError(t, err)
	_, err = issuer.Verify(tok.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.True(t, errors.Is(err, story.ErrAuthentication))

	_, err = issuer.Verify("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := issuer.Issue(1, "x@example.com")
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Verify(old.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("  ", time.Hour)
	assert.Error(t, err)
}
