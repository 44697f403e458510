package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepZeroDelay(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	require.NoError(t, p.Sleep(context.Background(), 0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSleepRespectsCancellation(t *testing.T) {
	p := NewPacer(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepAddsJitterWithinBound(t *testing.T) {
	p := NewPacer(5 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Sleep(context.Background(), 10*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}
