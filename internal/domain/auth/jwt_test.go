package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/clock"
)

func newService(clk clock.Clock) *JWTService {
	return NewJWTService(JWTConfig{
		Secret:         "test-secret",
		Issuer:         "invclose",
		AccessTokenTTL: time.Hour,
	}, clk)
}

func TestJWTService_RoundTrip(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	s := newService(clk)

	token, expiresAt, err := s.GenerateAccessToken("u-1", "Sato", []string{RoleOperator})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour), expiresAt)

	user, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "Sato", user.Name)
	assert.Equal(t, []string{RoleOperator}, user.Roles)
}

func TestJWTService_Expired(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	s := newService(clk)
	token, _, err := s.GenerateAccessToken("u-1", "", nil)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	_, err = s.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_WrongSecretOrIssuer(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	token, _, err := newService(clk).GenerateAccessToken("u-1", "", nil)
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{Secret: "other", Issuer: "invclose", AccessTokenTTL: time.Hour}, clk)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	foreign := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else", AccessTokenTTL: time.Hour}, clk)
	_, err = foreign.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RequiresSecret(t *testing.T) {
	s := NewJWTService(JWTConfig{Issuer: "invclose"}, clock.System{})

	_, _, err := s.GenerateAccessToken("u-1", "", nil)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = s.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}
