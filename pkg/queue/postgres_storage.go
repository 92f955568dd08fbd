package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/schedkit/pkg/pg"
)

const jobColumns = `id, organization_id, type, payload, priority, status, attempts, max_attempts,
	dedupe_key, worker_id, result, last_error, error_history, cancel_reason, created_by,
	created_at, updated_at, started_at, completed_at, cancelled_at`

// PostgresStorage implements Storage on the queue_jobs table.
// Mutations run as SELECT ... FOR UPDATE read-modify-write transactions and the
// dedupe invariant is backed by a partial unique index on queued rows.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a storage on an open pool. The schema comes from
// internal/db/migrations.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) CreateJob(ctx context.Context, job *Job) (*Job, bool, error) {
	if job == nil {
		return nil, false, errors.New("job cannot be nil")
	}

	history, err := json.Marshal(nonNilHistory(job.ErrorHistory))
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode error history: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO queue_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		job.ID, job.OrganizationID, job.Type, nullJSON(job.Payload), job.Priority, string(job.Status),
		job.Attempts, job.MaxAttempts, job.DedupeKey, job.WorkerID, nullJSON(job.Result), job.LastError,
		history, job.CancelReason, job.CreatedBy, job.CreatedAt, job.UpdatedAt,
		job.StartedAt, job.CompletedAt, job.CancelledAt,
	)
	if err == nil {
		return job.Clone(), true, nil
	}
	if !pg.IsDuplicateKeyError(err) || job.DedupeKey == nil {
		return nil, false, err
	}

	existing, err := s.queuedByDedupeKey(ctx, job.OrganizationID, *job.DedupeKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStorage) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM queue_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (s *PostgresStorage) UpdateJob(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM queue_jobs WHERE id = $1 FOR UPDATE`, id))
	if pg.IsNotFoundError(err) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := fn(job); err != nil {
		return nil, err
	}

	history, err := json.Marshal(nonNilHistory(job.ErrorHistory))
	if err != nil {
		return nil, fmt.Errorf("failed to encode error history: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE queue_jobs SET
			status = $2, attempts = $3, max_attempts = $4, dedupe_key = $5, worker_id = $6,
			result = $7, last_error = $8, error_history = $9, cancel_reason = $10,
			updated_at = $11, started_at = $12, completed_at = $13, cancelled_at = $14, priority = $15
		WHERE id = $1`,
		job.ID, string(job.Status), job.Attempts, job.MaxAttempts, job.DedupeKey, job.WorkerID,
		nullJSON(job.Result), job.LastError, history, job.CancelReason,
		job.UpdatedAt, job.StartedAt, job.CompletedAt, job.CancelledAt, job.Priority,
	)
	if pg.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateJob
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStorage) ListJobs(ctx context.Context, opts ListOptions) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if opts.OrganizationID != "" {
		args = append(args, opts.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if opts.Type != "" {
		args = append(args, opts.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM queue_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStorage) CountQueuedByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT type, count(*) FROM queue_jobs WHERE status = 'QUEUED' GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStorage) queuedByDedupeKey(ctx context.Context, org, key string) (*Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queue_jobs
		WHERE organization_id = $1 AND dedupe_key = $2 AND status = 'QUEUED'`, org, key)
	job, err := scanJob(row)
	if pg.IsNotFoundError(err) {
		// the holder left QUEUED between the insert and this read
		return nil, ErrDuplicateJob
	}
	return job, err
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job                    Job
		status                 string
		payload, result, hist  []byte
		started, done, stopped *time.Time
	)
	err := row.Scan(
		&job.ID, &job.OrganizationID, &job.Type, &payload, &job.Priority, &status,
		&job.Attempts, &job.MaxAttempts, &job.DedupeKey, &job.WorkerID, &result, &job.LastError,
		&hist, &job.CancelReason, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt,
		&started, &done, &stopped,
	)
	if err != nil {
		return nil, err
	}

	job.Status = Status(status)
	job.Payload = payload
	job.Result = result
	job.StartedAt, job.CompletedAt, job.CancelledAt = started, done, stopped
	if err := json.Unmarshal(hist, &job.ErrorHistory); err != nil {
		return nil, fmt.Errorf("failed to decode error history of job %s: %w", job.ID, err)
	}
	job.ErrorHistory = nonNilHistory(job.ErrorHistory)
	return &job, nil
}

func nullJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}

func nonNilHistory(h []ErrorEntry) []ErrorEntry {
	if h == nil {
		return []ErrorEntry{}
	}
	return h
}
