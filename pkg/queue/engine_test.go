package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
	"github.com/dmitrymomot/schedkit/pkg/queue"
	"github.com/dmitrymomot/schedkit/pkg/validator"
)

func newTestEngine(t *testing.T, opts ...queue.EngineOption) (*queue.Engine, *metrics.MemorySink) {
	t.Helper()

	sink := metrics.NewMemorySink()
	opts = append([]queue.EngineOption{
		queue.WithLogger(logger.Discard()),
		queue.WithMetrics(sink),
	}, opts...)

	engine, err := queue.NewEngine(queue.NewMemoryStorage(), opts...)
	require.NoError(t, err)
	return engine, sink
}

func enqueue(t *testing.T, engine *queue.Engine, typ, dedupe string) *queue.Job {
	t.Helper()

	job, err := engine.Enqueue(context.Background(), queue.EnqueueParams{
		OrganizationID: "org-1",
		Type:           typ,
		Payload:        json.RawMessage(`{"n":1}`),
		DedupeKey:      dedupe,
	})
	require.NoError(t, err)
	return job
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine, err := queue.NewEngine(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	assert.Nil(t, engine)
}

func TestEngine_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, queue.StatusQueued, job.Status)
		assert.Equal(t, 3, job.MaxAttempts)
		assert.Zero(t, job.Attempts)
		assert.Nil(t, job.DedupeKey)
		assert.Empty(t, job.ErrorHistory)
		assert.Equal(t, float64(1), sink.Counter(queue.MetricEnqueued, metrics.Labels{"type": "parse"}))
	})

	t.Run("configured default attempts", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t, queue.WithConfig(queue.Config{DefaultMaxAttempts: 5}))
		job := enqueue(t, engine, "parse", "")
		assert.Equal(t, 5, job.MaxAttempts)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		_, err := engine.Enqueue(context.Background(), queue.EnqueueParams{
			MaxAttempts: -1,
			Payload:     json.RawMessage(`{broken`),
		})
		require.ErrorIs(t, err, queue.ErrInvalidArgument)

		verrs := validator.ExtractValidationErrors(err)
		assert.ElementsMatch(t, []string{"organizationId", "type", "maxAttempts", "payload"}, verrs.Fields())
	})

	t.Run("dedupe returns existing queued job", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		first := enqueue(t, engine, "parse", "k")
		second := enqueue(t, engine, "parse", "k")

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
		assert.Equal(t, float64(1), sink.Counter(queue.MetricEnqueued, metrics.Labels{"type": "parse"}))

		jobs, err := engine.List(context.Background(), queue.ListOptions{OrganizationID: "org-1"})
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("dedupe key is free once the holder leaves QUEUED", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		engine, _ := newTestEngine(t)
		first := enqueue(t, engine, "parse", "k")
		_, err := engine.Start(ctx, first.ID, "w1")
		require.NoError(t, err)

		second := enqueue(t, engine, "parse", "k")
		assert.NotEqual(t, first.ID, second.ID)

		_, err = engine.Start(ctx, second.ID, "w1")
		require.NoError(t, err)
		done, err := engine.Complete(ctx, second.ID, "w1", json.RawMessage(`{"ok":true}`))
		require.NoError(t, err)
		require.Equal(t, queue.StatusCompleted, done.Status)

		third := enqueue(t, engine, "parse", "k")
		assert.NotEqual(t, first.ID, third.ID)
		assert.NotEqual(t, second.ID, third.ID)
		assert.Equal(t, queue.StatusQueued, third.Status)
	})

	t.Run("dedupe key is scoped to the organization", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		engine, _ := newTestEngine(t)
		orgA, err := engine.Enqueue(ctx, queue.EnqueueParams{
			OrganizationID: "org-a",
			Type:           "report",
			Payload:        json.RawMessage(`{"secret":"a"}`),
			DedupeKey:      "nightly",
		})
		require.NoError(t, err)

		orgB, err := engine.Enqueue(ctx, queue.EnqueueParams{
			OrganizationID: "org-b",
			Type:           "report",
			DedupeKey:      "nightly",
		})
		require.NoError(t, err)

		assert.NotEqual(t, orgA.ID, orgB.ID)
		assert.Equal(t, "org-b", orgB.OrganizationID)
		assert.Empty(t, orgB.Payload)

		again, err := engine.Enqueue(ctx, queue.EnqueueParams{
			OrganizationID: "org-b",
			Type:           "report",
			DedupeKey:      "nightly",
		})
		require.NoError(t, err)
		assert.Equal(t, orgB.ID, again.ID)
	})

	t.Run("concurrent enqueue with one key", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		ids := make([]string, 16)

		var wg sync.WaitGroup
		for i := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job, err := engine.Enqueue(context.Background(), queue.EnqueueParams{
					OrganizationID: "org-1",
					Type:           "parse",
					DedupeKey:      "same",
				})
				if err == nil {
					ids[i] = job.ID
				}
			}()
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})
}

func TestEngine_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("start and complete", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")

		running, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)
		assert.Equal(t, queue.StatusRunning, running.Status)
		assert.Equal(t, 1, running.Attempts)
		assert.Equal(t, "w1", running.WorkerID)
		require.NotNil(t, running.StartedAt)

		done, err := engine.Complete(ctx, job.ID, "w1", json.RawMessage(`{"ok":true}`))
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCompleted, done.Status)
		assert.JSONEq(t, `{"ok":true}`, string(done.Result))
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, float64(1), sink.Counter(queue.MetricCompleted, metrics.Labels{"type": "parse"}))
	})

	t.Run("start requires QUEUED", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)

		_, err = engine.Start(ctx, job.ID, "w2")
		assert.ErrorIs(t, err, queue.ErrInvalidState)

		var stateErr *queue.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, queue.StatusRunning, stateErr.Status)
	})

	t.Run("complete and fail require RUNNING", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")

		_, err := engine.Complete(ctx, job.ID, "w1", nil)
		assert.ErrorIs(t, err, queue.ErrInvalidState)
		_, err = engine.Fail(ctx, job.ID, "w1", "boom", true)
		assert.ErrorIs(t, err, queue.ErrInvalidState)
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		_, err := engine.Start(ctx, "missing", "w1")
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
		_, err = engine.Get(ctx, "missing")
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
		_, err = engine.Cancel(ctx, "", "x")
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
	})

	t.Run("retry ceiling ends in DEAD_LETTER", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")

		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			job, err = engine.Start(ctx, job.ID, "w1")
			require.NoError(t, err)
			require.Equal(t, attempt, job.Attempts)

			job, err = engine.Fail(ctx, job.ID, "w1", "timeout", true)
			require.NoError(t, err)
		}

		assert.Equal(t, queue.StatusDeadLetter, job.Status)
		assert.Equal(t, 3, job.Attempts)
		assert.Equal(t, "timeout", job.LastError)
		require.Len(t, job.ErrorHistory, 3)
		for i, entry := range job.ErrorHistory {
			assert.Equal(t, i+1, entry.Attempt)
		}
		assert.Equal(t, float64(2), sink.Counter(queue.MetricFailed, metrics.Labels{"type": "parse", "outcome": queue.OutcomeRequeued}))
		assert.Equal(t, float64(1), sink.Counter(queue.MetricFailed, metrics.Labels{"type": "parse", "outcome": queue.OutcomeDeadLetter}))
	})

	t.Run("requeue clears run timestamps", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)

		job, err = engine.Fail(ctx, job.ID, "w1", "flaky", true)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, job.Status)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
	})

	t.Run("non retryable failure", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)

		job, err = engine.Fail(ctx, job.ID, "w1", "bad input", false)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusFailed, job.Status)
		assert.Equal(t, 1, job.Attempts)
		require.Len(t, job.ErrorHistory, 1)
	})

	t.Run("requeue blocked by a queued dedupe key dead-letters", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		first := enqueue(t, engine, "parse", "k")
		_, err := engine.Start(ctx, first.ID, "w1")
		require.NoError(t, err)
		second := enqueue(t, engine, "parse", "k")
		require.NotEqual(t, first.ID, second.ID)

		job, err := engine.Fail(ctx, first.ID, "w1", "timeout", true)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDeadLetter, job.Status)
		assert.Equal(t, "timeout", job.LastError)
		require.Len(t, job.ErrorHistory, 1)
		assert.Equal(t, 1, job.ErrorHistory[0].Attempt)
		assert.NotNil(t, job.CompletedAt)
		assert.Equal(t, float64(1), sink.Counter(queue.MetricFailed,
			metrics.Labels{"type": "parse", "outcome": queue.OutcomeDeadLetter}))

		stored, err := engine.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, stored.Status)
	})

	t.Run("retry gives a fresh budget and keeps history", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)
		_, err = engine.Fail(ctx, job.ID, "w1", "bad input", false)
		require.NoError(t, err)

		job, err = engine.Retry(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, job.Status)
		assert.Zero(t, job.Attempts)
		assert.Len(t, job.ErrorHistory, 1)

		_, err = engine.Retry(ctx, job.ID)
		assert.ErrorIs(t, err, queue.ErrInvalidState)
	})

	t.Run("retry conflicting with a queued dedupe key", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		first := enqueue(t, engine, "parse", "k")
		_, err := engine.Cancel(ctx, first.ID, "superseded")
		require.NoError(t, err)
		second := enqueue(t, engine, "parse", "k")
		require.NotEqual(t, first.ID, second.ID)

		_, err = engine.Retry(ctx, first.ID)
		assert.ErrorIs(t, err, queue.ErrInvalidState)

		stored, err := engine.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCancelled, stored.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		t.Parallel()

		engine, sink := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")

		cancelled, err := engine.Cancel(ctx, job.ID, "user request")
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCancelled, cancelled.Status)
		assert.Equal(t, "user request", cancelled.CancelReason)
		require.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, float64(1), sink.Counter(queue.MetricCancelled, metrics.Labels{"type": "parse"}))

		_, err = engine.Cancel(ctx, job.ID, "again")
		assert.ErrorIs(t, err, queue.ErrInvalidState)
	})

	t.Run("cancel after completion is rejected", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)
		_, err = engine.Complete(ctx, job.ID, "w1", nil)
		require.NoError(t, err)

		_, err = engine.Cancel(ctx, job.ID, "late")
		assert.ErrorIs(t, err, queue.ErrInvalidState)
	})

	t.Run("cancel running job", func(t *testing.T) {
		t.Parallel()

		engine, _ := newTestEngine(t)
		job := enqueue(t, engine, "parse", "")
		_, err := engine.Start(ctx, job.ID, "w1")
		require.NoError(t, err)

		job, err = engine.Cancel(ctx, job.ID, "stop")
		require.NoError(t, err)
		assert.Equal(t, queue.StatusCancelled, job.Status)
	})
}

func TestEngine_Backlog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, sink := newTestEngine(t)
	labels := metrics.Labels{"type": "parse"}

	first := enqueue(t, engine, "parse", "")
	second := enqueue(t, engine, "parse", "")

	v, ok := sink.Gauge(queue.MetricBacklog, labels)
	require.True(t, ok)
	assert.Equal(t, float64(2), v)

	_, err := engine.Cancel(ctx, first.ID, "")
	require.NoError(t, err)
	v, _ = sink.Gauge(queue.MetricBacklog, labels)
	assert.Equal(t, float64(1), v)

	_, err = engine.Cancel(ctx, second.ID, "")
	require.NoError(t, err)
	v, ok = sink.Gauge(queue.MetricBacklog, labels)
	require.True(t, ok, "gauge must be reported as zero, not dropped")
	assert.Equal(t, float64(0), v)
}

func TestEngine_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, queue.WithClock(func() time.Time { return now }))

	a := enqueue(t, engine, "parse", "")
	b := enqueue(t, engine, "render", "")
	c := enqueue(t, engine, "parse", "")
	_, err := engine.Start(ctx, c.ID, "w1")
	require.NoError(t, err)

	jobs, err := engine.List(ctx, queue.ListOptions{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})

	jobs, err = engine.List(ctx, queue.ListOptions{Type: "parse", Statuses: []queue.Status{queue.StatusQueued}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, a.ID, jobs[0].ID)

	jobs, err = engine.List(ctx, queue.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = engine.List(ctx, queue.ListOptions{OrganizationID: "org-2"})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	_, err = engine.List(ctx, queue.ListOptions{Statuses: []queue.Status{"BOGUS"}})
	assert.ErrorIs(t, err, queue.ErrInvalidArgument)
	_, err = engine.List(ctx, queue.ListOptions{Limit: -1})
	assert.ErrorIs(t, err, queue.ErrInvalidArgument)
}

type mockStorage struct {
	mock.Mock
	queue.Storage
}

func (m *mockStorage) UpdateJob(ctx context.Context, id string, fn func(*queue.Job) error) (*queue.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*queue.Job)
	return job, args.Error(1)
}

func (m *mockStorage) CountQueuedByType(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

func TestEngine_StorageFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := &mockStorage{}
	storage.On("UpdateJob", mock.Anything, "job-1").Return(nil, errors.New("connection reset"))
	storage.On("UpdateJob", mock.Anything, "job-2").Return(&queue.Job{ID: "job-2", Type: "parse", Status: queue.StatusCancelled}, nil)
	storage.On("CountQueuedByType", mock.Anything).Return(nil, errors.New("timeout"))

	engine, err := queue.NewEngine(storage, queue.WithLogger(logger.Discard()))
	require.NoError(t, err)

	_, err = engine.Cancel(ctx, "job-1", "x")
	assert.ErrorIs(t, err, queue.ErrFailedToUpdateJob)

	// backlog refresh failures are not returned
	job, err := engine.Cancel(ctx, "job-2", "x")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCancelled, job.Status)

	storage.AssertExpectations(t)
}
