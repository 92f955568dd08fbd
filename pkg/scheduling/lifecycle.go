package scheduling

import (
	"fmt"

	"github.com/dmitrymomot/schedkit/pkg/statemachine"
)

type event string

const (
	eventReady  event = "ready"
	eventFail   event = "fail"
	eventCommit event = "commit"
)

type transition = statemachine.Transition[Status, event]

var lifecycle = statemachine.MustNew(
	transition{From: []Status{StatusPending}, To: StatusReady, Event: eventReady},
	transition{From: []Status{StatusPending}, To: StatusFailed, Event: eventFail},
	transition{From: []Status{StatusReady}, To: StatusCommitted, Event: eventCommit},
)

func advance(s *Suggestion, e event) error {
	next, err := lifecycle.Next(s.Status, e)
	if err != nil {
		return fmt.Errorf("%w: suggestion %s: cannot %s from %s: %w", ErrInvalidState, s.ID, e, s.Status, err)
	}
	s.Status = next
	return nil
}
