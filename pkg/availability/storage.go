package availability

import "context"

// CacheStore persists busy cache records keyed by (organization, user).
// Writes replace the whole record.
type CacheStore interface {
	// GetCacheRecord returns ErrCacheRecordNotFound when no record exists.
	GetCacheRecord(ctx context.Context, organizationID, userID string) (*CacheRecord, error)

	// ListCacheRecords returns the records of the given users, or of the whole
	// organization when userIDs is empty. Missing users are skipped.
	ListCacheRecords(ctx context.Context, organizationID string, userIDs []string) ([]*CacheRecord, error)

	UpsertCacheRecord(ctx context.Context, record *CacheRecord) error

	// DeleteCacheRecords removes the records of the given users, or every record
	// of the organization when userIDs is empty. It returns the number removed.
	DeleteCacheRecords(ctx context.Context, organizationID string, userIDs []string) (int, error)
}
