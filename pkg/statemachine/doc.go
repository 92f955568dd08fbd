// Package statemachine validates lifecycle transitions of persisted records.
//
// A Table maps (state, event) pairs to the next state. It holds no current
// state: callers load a record, ask the table for the next state and write the
// record back under their own lock. This keeps one shared table per record
// type (queue jobs, scheduling suggestions) safe for concurrent use.
//
//	var lifecycle = statemachine.MustNew(
//	    statemachine.Transition[Status, Event]{From: []Status{Pending}, To: Ready, Event: Resolve},
//	)
//
//	next, err := lifecycle.Next(s.Status, Resolve)
//	if statemachine.IsNoTransitionAvailableError(err) {
//	    // operation not allowed from the current state
//	}
package statemachine
