// Package scheduling turns "find a time for these people" requests into
// suggestions and commits accepted suggestions as calendar events.
//
// RunJob validates a Request, stores a PENDING Suggestion and hands processing
// to an async.Dispatcher; it never waits for the solver. Processing asks a
// WindowFinder (normally availability.Engine) for windows free for every user
// and picks the earliest one that fits the requested duration. The suggestion
// then moves to READY with a Plan or to FAILED with a coded SuggestionError.
//
// # Lifecycle
//
//	PENDING --processed--> READY --commit--> COMMITTED
//	PENDING --processed--> FAILED
//
// Process is idempotent: concurrent calls for one suggestion run the solver
// once, and a suggestion that already left PENDING is never touched again.
//
// # Queue correlation
//
// With WithQueue every suggestion gets a queue job of type JobType keyed by the
// suggestion id. The job is started, completed or failed alongside processing.
// A job cancelled before processing fails the suggestion with
// CodeQueueJobCancelled. Queue errors after the suggestion has been stored are
// logged only; the suggestion record is authoritative.
//
// # Commit
//
// Commit creates the plan's events in order through a calendar.Creator, each
// tagged with the suggestion id in its metadata. Overrides may replace fields
// of individual draft events. When event creation fails part way, the events
// created so far stay in place and the suggestion stays READY.
//
// # Storage
//
// MemoryStorage serves tests and single-process use. MongoStorage keeps one
// document per suggestion and guards updates with a version counter.
package scheduling
