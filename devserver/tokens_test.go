package devserver

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clk := newFakeClock()
	ti := newTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour, clk.now)

	token, issued, err := ti.issue("admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := ti.parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Subject)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, clk.now().Add(time.Hour).Equal(claims.ExpiresAt.Time))
}

func TestTokenIssuer_Expiry(t *testing.T) {
	clk := newFakeClock()
	ti := newTokenIssuer(nil, time.Minute, clk.now)
	token, _, err := ti.issue("admin@example.com")
	require.NoError(t, err)

	clk.advance(2 * time.Minute)
	_, err = ti.parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenIssuer_RejectsForeignKey(t *testing.T) {
	clk := newFakeClock()
	a := newTokenIssuer(nil, time.Hour, clk.now)
	b := newTokenIssuer(nil, time.Hour, clk.now)
	token, _, err := a.issue("admin@example.com")
	require.NoError(t, err)

	_, err = b.parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenIssuer_RejectsNone(t *testing.T) {
	ti := newTokenIssuer(nil, time.Hour, time.Now)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    tokenIssuerName,
		Subject:   "admin@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ti.parse(unsigned)
	assert.Error(t, err)
}

func TestTokenIssuer_Revoke(t *testing.T) {
	clk := newFakeClock()
	ti := newTokenIssuer(nil, time.Hour, clk.now)
	token, claims, err := ti.issue("admin@example.com")
	require.NoError(t, err)

	ti.revoke(claims)
	_, err = ti.parse(token)
	assert.ErrorIs(t, err, errTokenRevoked)

	other, _, err := ti.issue("admin@example.com")
	require.NoError(t, err)
	_, err = ti.parse(other)
	assert.NoError(t, err, "revocation is per token id")

	clk.advance(2 * time.Hour)
	ti.revoke(&jwt.RegisteredClaims{ID: "x", ExpiresAt: jwt.NewNumericDate(clk.now().Add(time.Hour))})
	ti.mu.Lock()
	_, kept := ti.revoked[claims.ID]
	ti.mu.Unlock()
	assert.False(t, kept, "expired revocations are swept")
}

func TestTokenIssuer_RevokeSubjectKeepsCurrent(t *testing.T) {
	clk := newFakeClock()
	ti := newTokenIssuer(nil, time.Hour, clk.now)
	first, _, err := ti.issue("admin@example.com")
	require.NoError(t, err)
	current, claims, err := ti.issue("admin@example.com")
	require.NoError(t, err)
	other, _, err := ti.issue("someone@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, ti.revokeSubject("admin@example.com", claims.ID))

	_, err = ti.parse(first)
	assert.ErrorIs(t, err, errTokenRevoked)
	_, err = ti.parse(current)
	assert.NoError(t, err)
	_, err = ti.parse(other)
	assert.NoError(t, err, "other subjects are untouched")

	assert.Equal(t, 1, ti.revokeSubject("admin@example.com", ""))
	_, err = ti.parse(current)
	assert.ErrorIs(t, err, errTokenRevoked)
}
