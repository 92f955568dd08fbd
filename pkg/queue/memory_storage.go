package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

type dedupeIndexKey struct {
	org string
	key string
}

func dedupeKeyOf(job *Job) (dedupeIndexKey, bool) {
	if job.DedupeKey == nil || job.Status != StatusQueued {
		return dedupeIndexKey{}, false
	}
	return dedupeIndexKey{org: job.OrganizationID, key: *job.DedupeKey}, true
}

type memoryRecord struct {
	job *Job
	seq uint64
}

// MemoryStorage implements Storage for tests and single-process deployments.
// Records are replaced as a whole under one lock.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[string]*memoryRecord
	seq  uint64

	// (organization, dedupe key) of a QUEUED job -> job id
	queuedByKey map[dedupeIndexKey]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:        make(map[string]*memoryRecord),
		queuedByKey: make(map[dedupeIndexKey]string),
	}
}

func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) (*Job, bool, error) {
	if job == nil {
		return nil, false, errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return nil, false, fmt.Errorf("job with ID %s already exists", job.ID)
	}

	if k, ok := dedupeKeyOf(job); ok {
		if id, ok := ms.queuedByKey[k]; ok {
			return ms.jobs[id].job.Clone(), false, nil
		}
	}

	ms.seq++
	ms.jobs[job.ID] = &memoryRecord{job: job.Clone(), seq: ms.seq}
	ms.index(nil, job)

	return job.Clone(), true, nil
}

func (ms *MemoryStorage) GetJob(ctx context.Context, id string) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return rec.job.Clone(), nil
}

func (ms *MemoryStorage) UpdateJob(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	next := rec.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if k, ok := dedupeKeyOf(next); ok {
		if holder, ok := ms.queuedByKey[k]; ok && holder != id {
			return nil, ErrDuplicateJob
		}
	}

	ms.index(rec.job, next)
	rec.job = next

	return next.Clone(), nil
}

func (ms *MemoryStorage) ListJobs(ctx context.Context, opts ListOptions) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	matched := make([]*memoryRecord, 0, len(ms.jobs))
	for _, rec := range ms.jobs {
		if matches(rec.job, opts) {
			matched = append(matched, rec)
		}
	}

	slices.SortFunc(matched, func(a, b *memoryRecord) int {
		if c := b.job.CreatedAt.Compare(a.job.CreatedAt); c != 0 {
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

	out := make([]*Job, 0, len(matched))
	for _, rec := range matched {
		out = append(out, rec.job.Clone())
	}
	return out, nil
}

func (ms *MemoryStorage) CountQueuedByType(ctx context.Context) (map[string]int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range ms.jobs {
		if rec.job.Status == StatusQueued {
			counts[rec.job.Type]++
		}
	}
	return counts, nil
}

// index keeps queuedByKey in sync. prev is nil for new jobs. Caller holds mu.
func (ms *MemoryStorage) index(prev, next *Job) {
	if prev != nil {
		if k, ok := dedupeKeyOf(prev); ok && ms.queuedByKey[k] == prev.ID {
			delete(ms.queuedByKey, k)
		}
	}
	if k, ok := dedupeKeyOf(next); ok {
		ms.queuedByKey[k] = next.ID
	}
}

func matches(job *Job, opts ListOptions) bool {
	if opts.OrganizationID != "" && job.OrganizationID != opts.OrganizationID {
		return false
	}
	if opts.Type != "" && job.Type != opts.Type {
		return false
	}
	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, job.Status) {
		return false
	}
	return true
}
