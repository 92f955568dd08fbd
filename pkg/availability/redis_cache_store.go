package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/redis/go-redis/v9"

	rdb "github.com/dmitrymomot/schedkit/pkg/redis"
)

// RedisCacheStore keeps one hash per organization, "{prefix}:busy:{org}",
// whose fields are user ids and values JSON encoded CacheRecords.
// A single HSET replaces a record, so writes never interleave.
type RedisCacheStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCacheStore creates a store. An empty prefix stores keys as "busy:{org}".
func NewRedisCacheStore(client redis.UniversalClient, prefix string) *RedisCacheStore {
	return &RedisCacheStore{client: client, prefix: prefix}
}

func (s *RedisCacheStore) key(organizationID string) string {
	return rdb.Key(s.prefix, "busy", organizationID)
}

func (s *RedisCacheStore) GetCacheRecord(ctx context.Context, organizationID, userID string) (*CacheRecord, error) {
	raw, err := s.client.HGet(ctx, s.key(organizationID), userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func (s *RedisCacheStore) ListCacheRecords(ctx context.Context, organizationID string, userIDs []string) ([]*CacheRecord, error) {
	var values []string
	if len(userIDs) == 0 {
		all, err := s.client.HGetAll(ctx, s.key(organizationID)).Result()
		if err != nil {
			return nil, err
		}
		for _, u := range slices.Sorted(maps.Keys(all)) {
			values = append(values, all[u])
		}
	} else {
		res, err := s.client.HMGet(ctx, s.key(organizationID), userIDs...).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range res {
			if str, ok := v.(string); ok {
				values = append(values, str)
			}
		}
	}

	out := make([]*CacheRecord, 0, len(values))
	for _, v := range values {
		rec, err := decodeRecord([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisCacheStore) UpsertCacheRecord(ctx context.Context, record *CacheRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode busy cache record: %w", err)
	}
	return s.client.HSet(ctx, s.key(record.OrganizationID), record.UserID, raw).Err()
}

func (s *RedisCacheStore) DeleteCacheRecords(ctx context.Context, organizationID string, userIDs []string) (int, error) {
	key := s.key(organizationID)
	if len(userIDs) == 0 {
		var n *redis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			n = p.HLen(ctx, key)
			p.Del(ctx, key)
			return nil
		})
		if err != nil {
			return 0, err
		}
		return int(n.Val()), nil
	}

	n, err := s.client.HDel(ctx, key, userIDs...).Result()
	return int(n), err
}

func decodeRecord(raw []byte) (*CacheRecord, error) {
	var rec CacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		if errors.Is(err, ErrInvalidDate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to decode busy cache record: %w", err)
	}
	return &rec, nil
}
