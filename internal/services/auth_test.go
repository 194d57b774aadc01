package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ratelimit"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(openTestDB(t), "test-secret", ratelimit.NewMemoryStore())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newAuthFixture(t)
	ctx := context.Background()

	_, err := s.Register("admin", "hunter22")
	require.NoError(t, err)

	_, err = s.Register("admin", "other")
	assert.Error(t, err)

	token, err := s.Login(ctx, "admin", "hunter22", "admin|1.2.3.4")
	require.NoError(t, err)

	adminID, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.NotZero(t, adminID)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newAuthFixture(t)
	ctx := context.Background()

	_, err := s.Register("admin", "hunter22")
	require.NoError(t, err)

	_, err = s.Login(ctx, "admin", "wrong", "admin|1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "nobody", "hunter22", "admin|1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	s := newAuthFixture(t)
	ctx := context.Background()

	_, err := s.Register("admin", "hunter22")
	require.NoError(t, err)

	key := "admin|1.2.3.4"
	for i := 0; i < ratelimit.MaxFailures-1; i++ {
		_, err := s.Login(ctx, "admin", "wrong", key)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The locking failure itself already reports the lockout.
	_, err = s.Login(ctx, "admin", "wrong", key)
	assert.True(t, IsRateLimit(err))

	// Even the correct password is refused while locked.
	_, err = s.Login(ctx, "admin", "hunter22", key)
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))

	// A different client identifier is unaffected.
	_, err = s.Login(ctx, "admin", "hunter22", "admin|5.6.7.8")
	assert.NoError(t, err)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	s := newAuthFixture(t)
	ctx := context.Background()

	_, err := s.Register("admin", "hunter22")
	require.NoError(t, err)

	key := "admin|1.2.3.4"
	for i := 0; i < ratelimit.MaxFailures-1; i++ {
		_, _ = s.Login(ctx, "admin", "wrong", key)
	}
	_, err = s.Login(ctx, "admin", "hunter22", key)
	require.NoError(t, err)

	// The counter restarted; four more failures do not lock.
	for i := 0; i < ratelimit.MaxFailures-1; i++ {
		_, err := s.Login(ctx, "admin", "wrong", key)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	s := newAuthFixture(t)

	_, err := s.ValidateToken("not-a-token")
	assert.Error(t, err)

	other := NewAuthService(openTestDB(t), "other-secret", ratelimit.NewMemoryStore())
	token, err := other.GenerateToken(1)
	require.NoError(t, err)

	_, err = s.ValidateToken(token)
	assert.Error(t, err)
}
