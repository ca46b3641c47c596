package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Allow(t *testing.T) {
	l := NewLocal(3, time.Minute)
	ctx := context.Background()

	for i := range 3 {
		d, err := l.Allow(ctx, "bookings:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}

	d, err := l.Allow(ctx, "bookings:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 20*time.Second)

	// other keys have their own bucket
	d, err = l.Allow(ctx, "bookings:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestNewLocal_NonPositiveLimit(t *testing.T) {
	l := NewLocal(0, time.Minute)

	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
