package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaffTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()

	tok, err := svc.Generate(id, "lead@example.com", "reglead")
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "reglead", claims.Role)
}

func TestTerminalToken(t *testing.T) {
	svc := NewJWTService("secret", 1)

	tok, err := svc.GenerateTerminal("lead@example.com", 96*time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateTerminal(tok)
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", claims.AuthorizedBy)
	assert.WithinDuration(t, time.Now().Add(96*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTerminalTokenExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	tok, err := svc.GenerateTerminal("lead@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateTerminal(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	svc := NewJWTService("secret", 1)

	terminal, err := svc.GenerateTerminal("lead@example.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.Validate(terminal)
	assert.ErrorIs(t, err, ErrInvalidToken, "terminal token must not act as a staff session")

	staff, err := svc.Generate(uuid.New(), "raf@example.com", "regraf")
	require.NoError(t, err)
	_, err = svc.ValidateTerminal(staff)
	assert.ErrorIs(t, err, ErrInvalidToken, "staff session must not authorize a terminal")
}

func TestWrongSecret(t *testing.T) {
	tok, err := NewJWTService("one", 1).GenerateTerminal("x", time.Hour)
	require.NoError(t, err)
	_, err = NewJWTService("two", 1).ValidateTerminal(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
