package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/async"
	"github.com/dmitrymomot/schedkit/pkg/logger"
)

func TestDispatcher_Submit(t *testing.T) {
	t.Parallel()

	t.Run("runs task and resolves future", func(t *testing.T) {
		d := async.NewDispatcher(async.WithLogger(logger.Discard()))
		defer d.Shutdown(context.Background())

		var ran atomic.Bool
		f, accepted, err := d.Submit("k", func(ctx context.Context) error {
			ran.Store(true)
			return nil
		})
		require.NoError(t, err)
		require.True(t, accepted)

		_, err = f.AwaitWithTimeout(time.Second)
		require.NoError(t, err)
		assert.True(t, ran.Load())
		assert.False(t, d.Pending("k"))
	})

	t.Run("deduplicates pending keys", func(t *testing.T) {
		d := async.NewDispatcher(async.WithLogger(logger.Discard()))
		defer d.Shutdown(context.Background())

		release := make(chan struct{})
		var runs atomic.Int32
		task := func(ctx context.Context) error {
			runs.Add(1)
			<-release
			return nil
		}

		f1, accepted, err := d.Submit("same", task)
		require.NoError(t, err)
		require.True(t, accepted)

		f2, accepted, err := d.Submit("same", task)
		require.NoError(t, err)
		assert.False(t, accepted)
		assert.Same(t, f1, f2)

		close(release)
		_, err = f1.AwaitWithTimeout(time.Second)
		require.NoError(t, err)
		assert.Equal(t, int32(1), runs.Load())
	})

	t.Run("rejects when queue is full", func(t *testing.T) {
		d := async.NewDispatcher(async.WithQueueSize(1), async.WithLogger(logger.Discard()))
		block := make(chan struct{})
		started := make(chan struct{})

		_, _, err := d.Submit("running", func(ctx context.Context) error {
			close(started)
			<-block
			return nil
		})
		require.NoError(t, err)
		<-started

		_, _, err = d.Submit("queued", func(ctx context.Context) error { return nil })
		require.NoError(t, err)

		_, _, err = d.Submit("overflow", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, async.ErrQueueFull)

		close(block)
		require.NoError(t, d.Shutdown(context.Background()))
	})

	t.Run("reports task errors and panics", func(t *testing.T) {
		d := async.NewDispatcher(async.WithWorkers(2), async.WithLogger(logger.Discard()))
		defer d.Shutdown(context.Background())

		boom := errors.New("boom")
		f1, _, err := d.Submit("err", func(ctx context.Context) error { return boom })
		require.NoError(t, err)
		f2, _, err := d.Submit("panic", func(ctx context.Context) error { panic("bad") })
		require.NoError(t, err)

		_, err = f1.AwaitWithTimeout(time.Second)
		assert.ErrorIs(t, err, boom)
		_, err = f2.AwaitWithTimeout(time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("empty key", func(t *testing.T) {
		d := async.NewDispatcher(async.WithLogger(logger.Discard()))
		defer d.Shutdown(context.Background())
		_, _, err := d.Submit("", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, async.ErrEmptyKey)
	})
}

func TestDispatcher_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("drains queued tasks", func(t *testing.T) {
		d := async.NewDispatcher(async.WithLogger(logger.Discard()))
		var count atomic.Int32
		for _, key := range []string{"a", "b", "c"} {
			_, _, err := d.Submit(key, func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
			require.NoError(t, err)
		}

		require.NoError(t, d.Shutdown(context.Background()))
		assert.Equal(t, int32(3), count.Load())

		_, _, err := d.Submit("late", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, async.ErrDispatcherClosed)
		assert.NoError(t, d.Shutdown(context.Background()))
	})

	t.Run("deadline cancels running task", func(t *testing.T) {
		d := async.NewDispatcher(async.WithLogger(logger.Discard()))
		started := make(chan struct{})
		f, _, err := d.Submit("slow", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		require.NoError(t, err)
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

		_, err = f.Await()
		assert.ErrorIs(t, err, context.Canceled)
	})
}
