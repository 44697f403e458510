package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePopCancelWhileEmpty(t *testing.T) {
	q := newQueue(4)

	for i := 0; i < 2000; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			_, err := q.pop(ctx)
			errCh <- err
		}()
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)

		// The queue must stay fully usable after a cancelled pop.
		require.NoError(t, q.push("job-1"))
		id, err := q.pop(context.Background())
		require.NoError(t, err)
		require.Equal(t, "job-1", id)
	}
}

func TestQueueCloseDrainsPending(t *testing.T) {
	q := newQueue(4)
	require.NoError(t, q.push("a"))
	require.NoError(t, q.push("b"))

	q.close()

	assert.ErrorIs(t, q.push("c"), ErrQueueClosed)

	id, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	id, err = q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	_, err = q.pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueFullRejectsPush(t *testing.T) {
	q := newQueue(1)
	require.NoError(t, q.push("a"))
	assert.ErrorIs(t, q.push("b"), ErrQueueFull)
}
