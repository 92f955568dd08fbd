package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a unit of deferred work. The context is cancelled when the dispatcher
// is forced to stop.
type Task func(ctx context.Context) error

type submission struct {
	key    string
	task   Task
	future *Future[struct{}]
}

// Dispatcher runs keyed tasks on a fixed pool of workers fed by a bounded queue.
// A key that is queued or running is not scheduled twice: Submit returns the
// future of the existing task instead.
type Dispatcher struct {
	queue  chan submission
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*Future[struct{}]
	closed  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	workers   int
	queueSize int
	logger    *slog.Logger
}

// WithWorkers sets the number of worker goroutines (default 1).
func WithWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity; a full queue rejects Submit with ErrQueueFull.
func WithQueueSize(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the logger used for task failures and panics.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	o := &dispatcherOptions{
		workers:   1,
		queueSize: 256,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:   make(chan submission, o.queueSize),
		logger:  o.logger,
		pending: make(map[string]*Future[struct{}]),
		ctx:     ctx,
		cancel:  cancel,
	}

	for range o.workers {
		d.wg.Add(1)
		go d.work()
	}

	return d
}

// Submit schedules task under key. It returns the task future and true when the
// task was accepted, or the future of the already scheduled task and false.
func (d *Dispatcher) Submit(key string, task Task) (*Future[struct{}], bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, ErrDispatcherClosed
	}
	if f, ok := d.pending[key]; ok {
		return f, false, nil
	}

	s := submission{key: key, task: task, future: newFuture[struct{}]()}
	select {
	case d.queue <- s:
	default:
		return nil, false, ErrQueueFull
	}
	d.pending[key] = s.future

	return s.future, true, nil
}

// Pending reports whether a task with key is queued or running.
func (d *Dispatcher) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When ctx
// is done first, running tasks get their context cancelled and the remaining
// queue is dropped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for s := range d.queue {
		if err := d.ctx.Err(); err != nil {
			d.finish(s, err)
			continue
		}
		d.finish(s, d.run(s))
	}
}

func (d *Dispatcher) run(s submission) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("async: task %s panicked: %v", s.key, r)
			d.logger.Error("dispatched task panicked", slog.String("key", s.key), slog.Any("panic", r))
		}
	}()
	return s.task(d.ctx)
}

func (d *Dispatcher) finish(s submission, err error) {
	d.mu.Lock()
	delete(d.pending, s.key)
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("dispatched task failed", slog.String("key", s.key), slog.Any("error", err))
	}
	s.future.resolve(struct{}{}, err)
}
