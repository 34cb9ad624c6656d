package itinerary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLimiter(t *testing.T) {
	l := NewCacheLimiter(2, time.Hour)
	ctx := context.Background()

	u, err := l.Allow(ctx, "trip1", "member1")
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 1, u.Used)

	u, err = l.Allow(ctx, "trip1", "member1")
	require.NoError(t, err)
	assert.True(t, u.Allowed)
	assert.Equal(t, 2, u.Used)

	u, err = l.Allow(ctx, "trip1", "member1")
	require.NoError(t, err)
	assert.False(t, u.Allowed)
	assert.Equal(t, 2, u.Used)
	assert.Equal(t, 2, u.Limit)

	// Other keys are unaffected.
	u, err = l.Allow(ctx, "trip1", "member2")
	require.NoError(t, err)
	assert.True(t, u.Allowed)

	u, err = l.Allow(ctx, "trip2", "member1")
	require.NoError(t, err)
	assert.True(t, u.Allowed)
}
