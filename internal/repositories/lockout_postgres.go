package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/authguard/internal/database"
	"github.com/BradenHooton/authguard/internal/models"
)

const lockoutColumns = `key, count, first_attempt, locked_until, lock_count, last_locked_at, expires_at`

// PostgresLockoutStore keeps lockout records in the login_lockouts table
type PostgresLockoutStore struct {
	db *database.DB
}

// NewPostgresLockoutStore creates a new PostgresLockoutStore
func NewPostgresLockoutStore(db *database.DB) *PostgresLockoutStore {
	return &PostgresLockoutStore{db: db}
}

// Get returns the record for key, or nil
func (r *PostgresLockoutStore) Get(ctx context.Context, key string) (*models.LockoutRecord, error) {
	query := `SELECT ` + lockoutColumns + ` FROM login_lockouts WHERE key = $1`

	record, err := scanLockoutRecord(r.db.Pool.QueryRow(ctx, query, key))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return record, nil
}

// Update runs fn in a transaction holding a per-key advisory lock, so concurrent
// updates serialize even when the row does not exist yet
func (r *PostgresLockoutStore) Update(ctx context.Context, key string, fn models.LockoutUpdateFunc) (*models.LockoutRecord, error) {
	var result *models.LockoutRecord

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}

		query := `SELECT ` + lockoutColumns + ` FROM login_lockouts WHERE key = $1 FOR UPDATE`
		current, err := scanLockoutRecord(tx.QueryRow(ctx, query, key))
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			if current != nil {
				_, err = tx.Exec(ctx, `DELETE FROM login_lockouts WHERE key = $1`, key)
			}
			return err
		}

		next.Key = key
		upsert := `
			INSERT INTO login_lockouts (` + lockoutColumns + `, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
			ON CONFLICT (key) DO UPDATE SET
				count = EXCLUDED.count,
				first_attempt = EXCLUDED.first_attempt,
				locked_until = EXCLUDED.locked_until,
				lock_count = EXCLUDED.lock_count,
				last_locked_at = EXCLUDED.last_locked_at,
				expires_at = EXCLUDED.expires_at,
				updated_at = CURRENT_TIMESTAMP
		`
		if _, err := tx.Exec(ctx, upsert,
			next.Key,
			next.Count,
			next.FirstAttempt,
			next.LockedUntil,
			next.LockCount,
			next.LastLockedAt,
			next.ExpiresAt,
		); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return result, nil
}

// Delete removes the record for key
func (r *PostgresLockoutStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM login_lockouts WHERE key = $1`, key)
	return database.MapPostgresError(err)
}

// DeletePrefix removes every record whose key starts with prefix
func (r *PostgresLockoutStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	query := `DELETE FROM login_lockouts WHERE key LIKE $1 ESCAPE '\'`

	tag, err := r.db.Pool.Exec(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes records whose retention ended before now
func (r *PostgresLockoutStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_lockouts WHERE expires_at < $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return int(tag.RowsAffected()), nil
}

// HealthCheck pings the database
func (r *PostgresLockoutStore) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// scanLockoutRecord returns nil without error when the row does not exist
func scanLockoutRecord(row pgx.Row) (*models.LockoutRecord, error) {
	var record models.LockoutRecord
	err := row.Scan(
		&record.Key,
		&record.Count,
		&record.FirstAttempt,
		&record.LockedUntil,
		&record.LockCount,
		&record.LastLockedAt,
		&record.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record.FirstAttempt = record.FirstAttempt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	if record.LockedUntil != nil {
		t := record.LockedUntil.UTC()
		record.LockedUntil = &t
	}
	if record.LastLockedAt != nil {
		t := record.LastLockedAt.UTC()
		record.LastLockedAt = &t
	}
	return &record, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
