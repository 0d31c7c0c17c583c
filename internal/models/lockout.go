package models

import "time"

// LockoutRecord is the failed-login state kept per identity key (lower(identity) + ":" + origin).
// A record whose LockedUntil is in the past is logically unlocked.
type LockoutRecord struct {
	Key          string     `json:"key" db:"key"`
	Count        int        `json:"count" db:"count"`                 // Failed attempts in the current window
	FirstAttempt time.Time  `json:"first_attempt" db:"first_attempt"` // Start of the current window
	LockedUntil  *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	LockCount    int        `json:"lock_count" db:"lock_count"` // Locks applied while the record was retained
	LastLockedAt *time.Time `json:"last_locked_at,omitempty" db:"last_locked_at"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"` // After this the record is treated as absent
}

// LockoutUpdateFunc mutates a record inside a store transaction.
// current is nil when no record exists. Returning nil deletes the record.
type LockoutUpdateFunc func(current *LockoutRecord) (*LockoutRecord, error)

// IsLockedAt reports whether the record carries a lock that is still active at now
func (r *LockoutRecord) IsLockedAt(now time.Time) bool {
	return r != nil && r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// RemainingAt returns how long the lock lasts past now, or 0 when not locked
func (r *LockoutRecord) RemainingAt(now time.Time) time.Duration {
	if !r.IsLockedAt(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// IsExpiredAt reports whether the record has outlived its retention
func (r *LockoutRecord) IsExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Clone returns a deep copy of r
func (r *LockoutRecord) Clone() *LockoutRecord {
	if r == nil {
		return nil
	}

	c := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		c.LockedUntil = &t
	}
	if r.LastLockedAt != nil {
		t := *r.LastLockedAt
		c.LastLockedAt = &t
	}
	return &c
}

// LockStatus is the answer to "may this identity attempt a login right now"
type LockStatus struct {
	Locked            bool          `json:"locked"`
	Remaining         time.Duration `json:"-"`
	RemainingMs       int64         `json:"remaining_ms,omitempty"`
	AttemptsRemaining int           `json:"attempts_remaining"`
}

// FailureResult is returned after recording a failed login
type FailureResult struct {
	Locked            bool          `json:"locked"`
	RemainingAttempts int           `json:"remaining_attempts"`
	LockoutDuration   time.Duration `json:"-"`
	LockoutMs         int64         `json:"lockout_ms,omitempty"`
}
