package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authguard/internal/models"
)

// lockoutStore is the behaviour every backend must provide
type lockoutStore interface {
	Get(ctx context.Context, key string) (*models.LockoutRecord, error)
	Update(ctx context.Context, key string, fn models.LockoutUpdateFunc) (*models.LockoutRecord, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Records must expire in the future for TTL-based stores
var suiteNow = time.Now().UTC().Truncate(time.Second)

func increment(now time.Time) models.LockoutUpdateFunc {
	return func(current *models.LockoutRecord) (*models.LockoutRecord, error) {
		if current == nil {
			current = &models.LockoutRecord{FirstAttempt: now, ExpiresAt: now.Add(time.Hour)}
		}
		current.Count++
		return current, nil
	}
}

// runLockoutStoreSuite exercises a store implementation; expiresAt-based purge
// is checked only when checkPurge is set since Redis relies on key TTLs
func runLockoutStoreSuite(t *testing.T, newStore func(t *testing.T) lockoutStore, checkPurge bool) {
	t.Run("get missing returns nil", func(t *testing.T) {
		store := newStore(t)

		record, err := store.Get(context.Background(), "nobody@example.com:1.2.3.4")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("update creates and mutates", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		key := "u@example.com:1.2.3.4"

		record, err := store.Update(ctx, key, increment(suiteNow))
		require.NoError(t, err)
		assert.Equal(t, 1, record.Count)

		record, err = store.Update(ctx, key, increment(suiteNow))
		require.NoError(t, err)
		assert.Equal(t, 2, record.Count)

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, key, stored.Key)
		assert.Equal(t, 2, stored.Count)
		assert.True(t, suiteNow.Equal(stored.FirstAttempt))
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("update round trips lock fields", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		key := "locked@example.com:1.2.3.4"
		until := suiteNow.Add(30 * time.Minute)

		_, err := store.Update(ctx, key, func(current *models.LockoutRecord) (*models.LockoutRecord, error) {
			return &models.LockoutRecord{
				Count:        5,
				FirstAttempt: suiteNow,
				LockedUntil:  &until,
				LockCount:    2,
				LastLockedAt: &suiteNow,
				ExpiresAt:    until.Add(24 * time.Hour),
			}, nil
		})
		require.NoError(t, err)

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, stored)
		require.NotNil(t, stored.LockedUntil)
		require.NotNil(t, stored.LastLockedAt)
		assert.True(t, until.Equal(*stored.LockedUntil))
		assert.True(t, suiteNow.Equal(*stored.LastLockedAt))
		assert.Equal(t, 2, stored.LockCount)
		assert.True(t, stored.IsLockedAt(suiteNow))
	})

	t.Run("update returning nil deletes", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		key := "gone@example.com:1.2.3.4"

		_, err := store.Update(ctx, key, increment(suiteNow))
		require.NoError(t, err)

		record, err := store.Update(ctx, key, func(*models.LockoutRecord) (*models.LockoutRecord, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, record)

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("update error leaves record untouched", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		key := "err@example.com:1.2.3.4"
		boom := errors.New("boom")

		_, err := store.Update(ctx, key, increment(suiteNow))
		require.NoError(t, err)

		_, err = store.Update(ctx, key, func(current *models.LockoutRecord) (*models.LockoutRecord, error) {
			current.Count = 99
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 1, stored.Count)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		key := "race@example.com:1.2.3.4"

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, key, increment(suiteNow))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 20, stored.Count)
	})

	t.Run("delete and delete prefix", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		keys := []string{
			"a@example.com:1.1.1.1",
			"a@example.com:2.2.2.2",
			"a@example.community:1.1.1.1",
			"a_b@example.com:1.1.1.1",
			"b@example.com:1.1.1.1",
		}
		for _, key := range keys {
			_, err := store.Update(ctx, key, increment(suiteNow))
			require.NoError(t, err)
		}

		require.NoError(t, store.Delete(ctx, "b@example.com:1.1.1.1"))
		require.NoError(t, store.Delete(ctx, "missing:key"))

		removed, err := store.DeletePrefix(ctx, "a@example.com:")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		// Wildcard characters in the prefix are literal
		removed, err = store.DeletePrefix(ctx, "a_")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		for key, present := range map[string]bool{
			"a@example.com:1.1.1.1":       false,
			"a@example.community:1.1.1.1": true,
			"a_b@example.com:1.1.1.1":     false,
			"b@example.com:1.1.1.1":       false,
		} {
			stored, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, present, stored != nil, key)
		}
	})

	if !checkPurge {
		return
	}

	t.Run("delete expired", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for key, expires := range map[string]time.Time{
			"old@example.com:1.1.1.1": suiteNow.Add(-time.Minute),
			"new@example.com:1.1.1.1": suiteNow.Add(time.Minute),
		} {
			expires := expires
			_, err := store.Update(ctx, key, func(*models.LockoutRecord) (*models.LockoutRecord, error) {
				return &models.LockoutRecord{Count: 1, FirstAttempt: suiteNow, ExpiresAt: expires}, nil
			})
			require.NoError(t, err)
		}

		removed, err := store.DeleteExpired(ctx, suiteNow)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		stored, err := store.Get(ctx, "new@example.com:1.1.1.1")
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})
}
