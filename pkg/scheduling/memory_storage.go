package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

type memoryRecord struct {
	s   *Suggestion
	seq uint64
}

// MemoryStorage implements Storage in memory with whole-record replacement.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	seq     uint64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*memoryRecord)}
}

func (m *MemoryStorage) CreateSuggestion(ctx context.Context, s *Suggestion) error {
	if s == nil {
		return errors.New("suggestion cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[s.ID]; ok {
		return fmt.Errorf("suggestion with ID %s already exists", s.ID)
	}
	m.seq++
	m.records[s.ID] = &memoryRecord{s: s.Clone(), seq: m.seq}
	return nil
}

func (m *MemoryStorage) GetSuggestion(ctx context.Context, id string) (*Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.s.Clone(), nil
}

func (m *MemoryStorage) UpdateSuggestion(ctx context.Context, id string, fn func(*Suggestion) error) (*Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := rec.s.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	rec.s = next
	return next.Clone(), nil
}

func (m *MemoryStorage) ListSuggestions(ctx context.Context, organizationID string, opts ListOptions) ([]*Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*memoryRecord
	for _, rec := range m.records {
		if rec.s.OrganizationID != organizationID {
			continue
		}
		if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, rec.s.Status) {
			continue
		}
		matched = append(matched, rec)
	}

	slices.SortFunc(matched, func(a, b *memoryRecord) int {
		if c := b.s.CreatedAt.Compare(a.s.CreatedAt); c != 0 {
			return c
		}
		if a.seq > b.seq {
			return -1
		}
		return 1
	})
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*Suggestion, 0, len(matched))
	for _, rec := range matched {
		out = append(out, rec.s.Clone())
	}
	return out, nil
}
