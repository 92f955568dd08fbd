// Package queue is an organization-scoped, at-least-once job store with explicit
// lifecycle states, dedupe keys, attempt counting and a per-type backlog gauge.
//
// The Engine owns every state change; persistence sits behind the small Storage
// interface with two implementations: MemoryStorage for tests and single-process
// use, and PostgresStorage for production (schema in internal/db/migrations).
//
// # Lifecycle
//
//	QUEUED --start--> RUNNING --complete--> COMPLETED
//	                  RUNNING --fail(retryable, attempts left)--> QUEUED
//	                  RUNNING --fail(retryable, exhausted)--> DEAD_LETTER
//	                  RUNNING --fail(not retryable)--> FAILED
//	FAILED | DEAD_LETTER | CANCELLED --retry--> QUEUED
//	any state except COMPLETED and CANCELLED --cancel--> CANCELLED
//
// Start increments Attempts. Retry resets Attempts so the job gets its full
// budget again; ErrorHistory is append-only and survives retries.
//
// # Dedupe
//
// At most one QUEUED job exists per organization and dedupe key. Enqueue with a
// key already held by a QUEUED job of the organization returns that job
// unchanged. Retry fails with ErrInvalidState when another QUEUED job holds the
// key, and a retryable Fail that cannot requeue for the same reason
// dead-letters the job.
//
// # Usage
//
//	engine, err := queue.NewEngine(queue.NewMemoryStorage(),
//		queue.WithLogger(log),
//		queue.WithMetrics(sink),
//	)
//	if err != nil {
//		return err
//	}
//
//	job, err := engine.Enqueue(ctx, queue.EnqueueParams{
//		OrganizationID: orgID,
//		Type:           "report.render",
//		Payload:        json.RawMessage(`{"reportId":"r1"}`),
//		DedupeKey:      "report:r1",
//	})
//
//	job, err = engine.Start(ctx, job.ID, "worker-1")
//	job, err = engine.Fail(ctx, job.ID, "worker-1", "upstream timeout", true)
//
// # Metrics
//
// queue_backlog{type} is refreshed after every mutation, and types that no
// longer have queued jobs are reported as 0. Counters: queue_jobs_enqueued_total,
// queue_jobs_completed_total, queue_jobs_failed_total{outcome} and
// queue_jobs_cancelled_total. Metric failures never fail a queue operation.
package queue
