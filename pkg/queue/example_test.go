package queue_test

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/queue"
)

func ExampleEngine() {
	ctx := context.Background()

	engine, err := queue.NewEngine(queue.NewMemoryStorage(), queue.WithLogger(logger.Discard()))
	if err != nil {
		panic(err)
	}

	job, _ := engine.Enqueue(ctx, queue.EnqueueParams{
		OrganizationID: "org-1",
		Type:           "report.render",
		Payload:        json.RawMessage(`{"reportId":"r1"}`),
		DedupeKey:      "report:r1",
	})

	dup, _ := engine.Enqueue(ctx, queue.EnqueueParams{
		OrganizationID: "org-1",
		Type:           "report.render",
		DedupeKey:      "report:r1",
	})
	fmt.Println("deduplicated:", dup.ID == job.ID)

	job, _ = engine.Start(ctx, job.ID, "worker-1")
	job, _ = engine.Fail(ctx, job.ID, "worker-1", "upstream timeout", true)
	fmt.Println(job.Status, job.Attempts)

	job, _ = engine.Start(ctx, job.ID, "worker-1")
	job, _ = engine.Complete(ctx, job.ID, "worker-1", json.RawMessage(`{"pages":3}`))
	fmt.Println(job.Status, job.Attempts)

	// Output:
	// deduplicated: true
	// QUEUED 1
	// COMPLETED 2
}
