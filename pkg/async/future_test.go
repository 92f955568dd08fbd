package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/async"
	"github.com/dmitrymomot/schedkit/pkg/logger"
)

func submit(t *testing.T, task async.Task) *async.Future[struct{}] {
	t.Helper()

	d := async.NewDispatcher(async.WithLogger(logger.Discard()))
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	f, accepted, err := d.Submit("k", task)
	require.NoError(t, err)
	require.True(t, accepted)
	return f
}

func TestFuture(t *testing.T) {
	t.Parallel()

	t.Run("await returns the task error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		f := submit(t, func(ctx context.Context) error { return boom })

		_, err := f.Await()
		assert.ErrorIs(t, err, boom)
		assert.True(t, f.IsComplete())

		select {
		case <-f.Done():
		default:
			t.Fatal("done channel is not closed")
		}
	})

	t.Run("await with timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		f := submit(t, func(ctx context.Context) error {
			<-release
			return nil
		})

		_, err := f.AwaitWithTimeout(10 * time.Millisecond)
		assert.ErrorIs(t, err, async.ErrTimeout)
		assert.False(t, f.IsComplete())

		close(release)
		_, err = f.AwaitWithTimeout(time.Second)
		assert.NoError(t, err)
	})

	t.Run("await context", func(t *testing.T) {
		t.Parallel()

		block := make(chan struct{})
		defer close(block)
		f := submit(t, func(ctx context.Context) error {
			<-block
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.AwaitContext(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
