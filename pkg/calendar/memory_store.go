package calendar

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory event store implementing Source and Creator.
// Suitable for development and testing.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event // organizationID -> events
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]Event)}
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if event.OrganizationID == "" {
		return Event{}, fmt.Errorf("%w: organization id is required", ErrInvalidEvent)
	}
	if !event.End.After(event.Start) {
		return Event{}, fmt.Errorf("%w: end must be after start", ErrInvalidEvent)
	}

	event = event.Clone()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OrganizationID] = append(s.events[event.OrganizationID], event)

	return event.Clone(), nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, organizationID string, start, end *time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events[organizationID] {
		if start != nil && !e.End.After(*start) {
			continue
		}
		if end != nil && !e.Start.Before(*end) {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b Event) int { return a.Start.Compare(b.Start) })
	return out, nil
}

// GetEvent returns a single event by id.
func (s *MemoryStore) GetEvent(ctx context.Context, organizationID, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events[organizationID] {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return Event{}, ErrEventNotFound
}
