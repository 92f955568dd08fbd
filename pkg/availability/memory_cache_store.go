package availability

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryCacheStore implements CacheStore in memory.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*CacheRecord // org -> user -> record
}

func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{records: make(map[string]map[string]*CacheRecord)}
}

func (s *MemoryCacheStore) GetCacheRecord(ctx context.Context, organizationID, userID string) (*CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[organizationID][userID]
	if !ok {
		return nil, ErrCacheRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryCacheStore) ListCacheRecords(ctx context.Context, organizationID string, userIDs []string) ([]*CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := s.records[organizationID]
	var out []*CacheRecord
	if len(userIDs) == 0 {
		for _, rec := range byUser {
			out = append(out, rec.Clone())
		}
		slices.SortFunc(out, func(a, b *CacheRecord) int { return strings.Compare(a.UserID, b.UserID) })
		return out, nil
	}

	for _, id := range userIDs {
		if rec, ok := byUser[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *MemoryCacheStore) UpsertCacheRecord(ctx context.Context, record *CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.records[record.OrganizationID]
	if !ok {
		byUser = make(map[string]*CacheRecord)
		s.records[record.OrganizationID] = byUser
	}
	byUser[record.UserID] = record.Clone()
	return nil
}

func (s *MemoryCacheStore) DeleteCacheRecords(ctx context.Context, organizationID string, userIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := s.records[organizationID]
	if len(userIDs) == 0 {
		n := len(byUser)
		delete(s.records, organizationID)
		return n, nil
	}

	n := 0
	for _, id := range userIDs {
		if _, ok := byUser[id]; ok {
			delete(byUser, id)
			n++
		}
	}
	return n, nil
}
