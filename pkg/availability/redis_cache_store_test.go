package availability_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/availability"
	"github.com/dmitrymomot/schedkit/pkg/redis"
)

// Runs against a live server when SCHEDKIT_TEST_REDIS_URL is set.
func TestRedisCacheStore(t *testing.T) {
	url := os.Getenv("SCHEDKIT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SCHEDKIT_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := availability.NewRedisCacheStore(client, "schedkit-test")
	org := uuid.NewString()
	t.Cleanup(func() { _, _ = store.DeleteCacheRecords(context.Background(), org, nil) })

	_, err = store.GetCacheRecord(ctx, org, "alice")
	assert.ErrorIs(t, err, availability.ErrCacheRecordNotFound)

	for _, user := range []string{"bob", "alice"} {
		require.NoError(t, store.UpsertCacheRecord(ctx, &availability.CacheRecord{
			OrganizationID: org,
			UserID:         user,
			RangeStart:     at(0, 0),
			RangeEnd:       at(23, 0),
			Busy:           []availability.BusySpan{{Start: at(9, 0), End: at(10, 0), Label: user}},
			UpdatedAt:      at(8, 0),
		}))
	}

	rec, err := store.GetCacheRecord(ctx, org, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Busy[0].Label)
	assert.True(t, at(9, 0).Equal(rec.Busy[0].Start))

	all, err := store.ListCacheRecords(ctx, org, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].UserID)

	some, err := store.ListCacheRecords(ctx, org, []string{"bob", "nobody"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "bob", some[0].UserID)

	n, err := store.DeleteCacheRecords(ctx, org, []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.DeleteCacheRecords(ctx, org, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
