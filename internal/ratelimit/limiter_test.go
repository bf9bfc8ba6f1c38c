package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstPerKey(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// buckets are independent
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Same(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.1"))
	assert.Less(t, l.Tokens("10.0.0.1"), 1.0)
}

func TestStaggerSpacesEvents(t *testing.T) {
	s := NewStagger(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, s.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first wait is immediate")

	require.NoError(t, s.Wait(ctx))
	require.NoError(t, s.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStaggerHonorsContext(t *testing.T) {
	s := NewStagger(time.Hour)
	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Wait(ctx))
}

func TestStaggerZeroIntervalNeverWaits(t *testing.T) {
	s := NewStagger(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Wait(context.Background()))
	}
}
