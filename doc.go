// Package schedkit wires the queue, availability and scheduling engines into a
// single service.
//
// Open builds the production stack: PostgreSQL for queue jobs (schema applied
// with goose), Redis for the busy cache and MongoDB for suggestions.
// NewInMemory builds the same engines over in-memory stores for tests,
// examples and single-process tools.
//
//	var cfg schedkit.Config
//	config.MustLoad(&cfg)
//	var stores schedkit.StoresConfig
//	config.MustLoad(&stores)
//
//	svc, err := schedkit.Open(ctx, cfg, stores, schedkit.WithCalendar(events))
//	if err != nil {
//		return err
//	}
//	defer svc.Close(context.Background())
//
//	s, err := svc.Scheduling.RunJob(ctx, scheduling.Request{...}, actorID)
//
// Calendar events live outside schedkit. Pass the event store with
// WithCalendar; without it an in-memory store is used.
package schedkit
