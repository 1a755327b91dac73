package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(20, 3)

	require.True(t, rl.Allow("alice"))
	require.True(t, rl.Allow("alice"))
	require.True(t, rl.Allow("alice"))
	require.False(t, rl.Allow("alice"))
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(20, 1)

	require.True(t, rl.Allow("alice"))
	require.False(t, rl.Allow("alice"))
	require.True(t, rl.Allow("bob"))
}
