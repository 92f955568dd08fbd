package queue

import "github.com/dmitrymomot/schedkit/pkg/statemachine"

type event string

const (
	eventStart    event = "start"
	eventComplete event = "complete"
	eventRequeue  event = "requeue"
	eventFail     event = "fail"
	eventExhaust  event = "exhaust"
	eventRetry    event = "retry"
	eventCancel   event = "cancel"
)

type transition = statemachine.Transition[Status, event]

var lifecycle = statemachine.MustNew(
	transition{From: []Status{StatusQueued}, To: StatusRunning, Event: eventStart},
	transition{From: []Status{StatusRunning}, To: StatusCompleted, Event: eventComplete},
	transition{From: []Status{StatusRunning}, To: StatusQueued, Event: eventRequeue},
	transition{From: []Status{StatusRunning}, To: StatusFailed, Event: eventFail},
	transition{From: []Status{StatusRunning}, To: StatusDeadLetter, Event: eventExhaust},
	transition{From: []Status{StatusFailed, StatusDeadLetter, StatusCancelled}, To: StatusQueued, Event: eventRetry},
	// COMPLETED and CANCELLED are the only states a job cannot be cancelled from.
	transition{From: []Status{StatusQueued, StatusRunning, StatusFailed, StatusDeadLetter}, To: StatusCancelled, Event: eventCancel},
)

// advance moves the job to the state reached by e or returns ErrInvalidState.
func advance(job *Job, e event) error {
	next, err := lifecycle.Next(job.Status, e)
	if err != nil {
		return &StateError{JobID: job.ID, Status: job.Status, Operation: string(e), cause: err}
	}
	job.Status = next
	return nil
}

// StateError reports an operation attempted from a status that does not allow it.
// It matches ErrInvalidState with errors.Is.
type StateError struct {
	JobID     string
	Status    Status
	Operation string
	cause     error
}

func (e *StateError) Error() string {
	return "queue job " + e.JobID + ": cannot " + e.Operation + " from " + string(e.Status)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

func (e *StateError) Unwrap() error { return e.cause }
