// Package async provides deferred execution primitives.
//
// Dispatcher is a bounded work queue served by a fixed worker pool. Tasks are
// submitted under a key and a key that is already queued or running is never
// scheduled twice, which makes "process this record once" submissions
// idempotent. A full queue rejects work with ErrQueueFull so callers can apply
// backpressure, and Shutdown drains or cancels outstanding work. Submit returns
// a Future that resolves with the task error.
//
// KeyedGuard is a per-key in-flight marker for code paths that can be entered
// from several places (a dispatcher worker and a direct call, for example).
//
//	d := async.NewDispatcher(async.WithWorkers(4), async.WithQueueSize(128))
//	defer d.Shutdown(ctx)
//
//	f, accepted, err := d.Submit(suggestionID, func(ctx context.Context) error {
//	    return engine.Process(ctx, suggestionID)
//	})
package async
