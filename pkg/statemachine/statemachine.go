package statemachine

import (
	"fmt"
	"slices"
)

// Transition moves a record from any of From to To when Event fires.
type Transition[S, E ~string] struct {
	From  []S
	To    S
	Event E
}

// Table is an immutable transition table for records whose current state is
// persisted elsewhere. It never stores a current state itself, so one Table is
// shared by every record of a type.
type Table[S, E ~string] struct {
	transitions map[E]map[S]S
}

// New builds a Table. A (from, event) pair may be declared only once.
func New[S, E ~string](transitions ...Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{
		transitions: make(map[E]map[S]S),
	}

	for i, tr := range transitions {
		if tr.Event == "" || tr.To == "" || len(tr.From) == 0 {
			return nil, fmt.Errorf("transition[%d]: %w", i, ErrInvalidTransition)
		}
		byFrom, ok := t.transitions[tr.Event]
		if !ok {
			byFrom = make(map[S]S)
			t.transitions[tr.Event] = byFrom
		}
		for _, from := range tr.From {
			if from == "" {
				return nil, fmt.Errorf("transition[%d]: %w", i, ErrInvalidTransition)
			}
			if _, dup := byFrom[from]; dup {
				return nil, fmt.Errorf("transition[%d] %s on %s: %w", i, from, tr.Event, ErrDuplicateTransition)
			}
			byFrom[from] = tr.To
		}
	}

	return t, nil
}

// MustNew is like New but panics on an invalid table. Used for package-level tables.
func MustNew[S, E ~string](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := New(transitions...)
	if err != nil {
		panic(fmt.Sprintf("failed to build state table: %v", err))
	}
	return t
}

// Next returns the state reached from `from` when event fires.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	if to, ok := t.transitions[event][from]; ok {
		return to, nil
	}
	var zero S
	return zero, NewErrNoTransitionAvailable(string(from), string(event))
}

// Can reports whether event may fire from `from`.
func (t *Table[S, E]) Can(from S, event E) bool {
	_, ok := t.transitions[event][from]
	return ok
}

// Events lists the events accepted from the given state, sorted by name.
func (t *Table[S, E]) Events(from S) []E {
	var events []E
	for event, byFrom := range t.transitions {
		if _, ok := byFrom[from]; ok {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// IsTerminal reports whether no event leaves the given state.
func (t *Table[S, E]) IsTerminal(state S) bool {
	return len(t.Events(state)) == 0
}
