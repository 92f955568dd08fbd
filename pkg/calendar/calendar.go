package calendar

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"
)

var (
	ErrEventNotFound = errors.New("calendar event not found")
	ErrInvalidEvent  = errors.New("invalid calendar event")
)

// Event is the calendar event shape exchanged with the external event store.
type Event struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Color          string         `json:"color,omitempty"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	AssigneeIDs    []string       `json:"assigneeIds"`
	Cancelled      bool           `json:"cancelled,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Clone returns a copy that shares no slices or maps with e.
func (e Event) Clone() Event {
	e.AssigneeIDs = slices.Clone(e.AssigneeIDs)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// Overlaps reports whether the event intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// Source lists organization events. Nil bounds mean unbounded.
type Source interface {
	ListEvents(ctx context.Context, organizationID string, start, end *time.Time) ([]Event, error)
}

// Creator persists a new event and returns it with its assigned id.
type Creator interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
}
