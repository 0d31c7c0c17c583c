package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/authguard/internal/models"
)

const (
	defaultRedisKeyPrefix = "authguard:lockout:"
	redisUpdateMaxRetries = 50
	redisScanCount        = 100
)

// RedisLockoutStore keeps lockout records in Redis as JSON values that expire with the record.
// Updates use WATCH/MULTI so concurrent failures against the same key are never lost.
type RedisLockoutStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLockoutStore creates a store; an empty prefix uses "authguard:lockout:"
func NewRedisLockoutStore(client redis.UniversalClient, prefix string) *RedisLockoutStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisLockoutStore{client: client, prefix: prefix}
}

// Get returns the record for key, or nil
func (s *RedisLockoutStore) Get(ctx context.Context, key string) (*models.LockoutRecord, error) {
	return s.load(ctx, s.client, s.prefix+key)
}

// Update applies fn inside an optimistic transaction, retrying when the key changed underneath it
func (s *RedisLockoutStore) Update(ctx context.Context, key string, fn models.LockoutUpdateFunc) (*models.LockoutRecord, error) {
	redisKey := s.prefix + key

	var result *models.LockoutRecord
	var fnErr error
	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, redisKey)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		var data []byte
		if next != nil {
			next.Key = key
			if data, err = json.Marshal(next); err != nil {
				return fmt.Errorf("failed to encode lockout record: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, redisKey)
				return nil
			}
			pipe.Set(ctx, redisKey, data, 0)
			if !next.ExpiresAt.IsZero() {
				pipe.PExpireAt(ctx, redisKey, next.ExpiresAt)
			}
			return nil
		})
		if err != nil {
			return err
		}

		result = next
		return nil
	}

	for attempt := 0; attempt < redisUpdateMaxRetries; attempt++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return result, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, wrapRedisError(err)
		}
	}

	return nil, fmt.Errorf("%w: %s", models.ErrStoreConflict, key)
}

// Delete removes the record for key
func (s *RedisLockoutStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return wrapRedisError(err)
	}
	return nil
}

// DeletePrefix removes every record whose key starts with prefix using SCAN.
// On a cluster every master is scanned, since SCAN only walks the node it is sent to.
func (s *RedisLockoutStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeRedisGlob(s.prefix+prefix) + "*"

	cluster, ok := s.client.(*redis.ClusterClient)
	if !ok {
		return deleteMatching(ctx, s.client, pattern)
	}

	var removed atomic.Int64
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		n, err := deleteMatching(ctx, node, pattern)
		removed.Add(int64(n))
		return err
	})
	return int(removed.Load()), err
}

// deleteMatching scans one node for pattern and deletes the matches in pipelined batches.
// Each DEL names a single key so batches never span hash slots.
func deleteMatching(ctx context.Context, client redis.Cmdable, pattern string) (int, error) {
	var keys []string
	iter := client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, wrapRedisError(err)
	}

	removed := 0
	for start := 0; start < len(keys); start += redisScanCount {
		end := min(start+redisScanCount, len(keys))
		cmds, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range keys[start:end] {
				pipe.Del(ctx, key)
			}
			return nil
		})
		if err != nil {
			return removed, wrapRedisError(err)
		}
		for _, cmd := range cmds {
			if del, ok := cmd.(*redis.IntCmd); ok {
				removed += int(del.Val())
			}
		}
	}
	return removed, nil
}

// DeleteExpired is a no-op; Redis expires keys at ExpiresAt
func (s *RedisLockoutStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// HealthCheck pings Redis
func (s *RedisLockoutStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapRedisError(err)
	}
	return nil
}

// redisGetter is satisfied by clients and by *redis.Tx
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisLockoutStore) load(ctx context.Context, c redisGetter, redisKey string) (*models.LockoutRecord, error) {
	data, err := c.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapRedisError(err)
	}

	var record models.LockoutRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode lockout record %q: %w", redisKey, err)
	}
	return &record, nil
}

func wrapRedisError(err error) error {
	return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
}

// escapeRedisGlob escapes the SCAN MATCH metacharacters in s
func escapeRedisGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
