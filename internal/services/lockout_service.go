package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// LockoutStore persists lockout records keyed by identity key.
// Update must run fn atomically with respect to other calls for the same key.
type LockoutStore interface {
	Get(ctx context.Context, key string) (*models.LockoutRecord, error)
	Update(ctx context.Context, key string, fn models.LockoutUpdateFunc) (*models.LockoutRecord, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// LockoutConfig holds the thresholds for progressive lockout
type LockoutConfig struct {
	MaxAttempts        int           // Failures within Window that trigger a lock
	Window             time.Duration // Counting window, measured from the first failure
	LockoutDuration    time.Duration // Base lock duration
	ProgressiveLockout bool          // Double the duration for each earlier lock still on record
	MaxLockoutDuration time.Duration // Cap on progressive lock duration
	HistoryRetention   time.Duration // How long lock history outlives the lock itself
}

// DefaultLockoutConfig returns 5 attempts per 15 minutes, 30 minute base lock, doubling up to 24h
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:        5,
		Window:             15 * time.Minute,
		LockoutDuration:    30 * time.Minute,
		ProgressiveLockout: true,
		MaxLockoutDuration: 24 * time.Hour,
		HistoryRetention:   24 * time.Hour,
	}
}

func (c LockoutConfig) withDefaults() LockoutConfig {
	d := DefaultLockoutConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.MaxLockoutDuration <= 0 {
		c.MaxLockoutDuration = d.MaxLockoutDuration
	}
	if c.HistoryRetention < 0 {
		c.HistoryRetention = 0
	}
	return c
}

// LockoutNotifier is told when a lock is applied. Notification failures never fail the login path.
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, identity, origin string, duration time.Duration, until time.Time) error
}

// LockoutService tracks failed logins per identity and origin and applies progressive lockouts
type LockoutService struct {
	store    LockoutStore
	config   LockoutConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	notifier LockoutNotifier
	now      func() time.Time
}

// NewLockoutService creates a new LockoutService. Zero config fields take their defaults.
func NewLockoutService(store LockoutStore, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
		audit:  pkglogger.NewAuditLogger(logger),
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (s *LockoutService) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier registers a notifier for newly applied locks
func (s *LockoutService) SetNotifier(n LockoutNotifier) {
	s.notifier = n
}

// Config returns the effective configuration
func (s *LockoutService) Config() LockoutConfig {
	return s.config
}

// AttemptKey builds the record key for identity and origin.
// The identity is trimmed and lower-cased so unlock can match on it regardless of origin.
func AttemptKey(identity, origin string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" {
		return "", models.ErrInvalidIdentity
	}
	return id + ":" + strings.TrimSpace(origin), nil
}

// IsLocked reports whether identity may attempt a login from origin.
// Expired windows and locks are reset as a side effect.
func (s *LockoutService) IsLocked(ctx context.Context, identity, origin string) (models.LockStatus, error) {
	key, err := AttemptKey(identity, origin)
	if err != nil {
		return models.LockStatus{}, err
	}

	now := s.now()
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return models.LockStatus{}, fmt.Errorf("failed to load lockout record: %w", err)
	}

	if _, stale := s.normalize(record, now); stale {
		record, err = s.store.Update(ctx, key, func(current *models.LockoutRecord) (*models.LockoutRecord, error) {
			next, _ := s.normalize(current, now)
			return next, nil
		})
		if err != nil {
			return models.LockStatus{}, fmt.Errorf("failed to reset lockout record: %w", err)
		}
	}

	return s.status(record, now), nil
}

// RecordFailedLogin counts a failed login and locks the identity once MaxAttempts is reached.
// A call while a lock is active changes nothing and reports the remaining lock time.
func (s *LockoutService) RecordFailedLogin(ctx context.Context, identity, origin string) (models.FailureResult, error) {
	key, err := AttemptKey(identity, origin)
	if err != nil {
		return models.FailureResult{}, err
	}

	now := s.now()
	var result models.FailureResult
	var lockedNow bool

	record, err := s.store.Update(ctx, key, func(current *models.LockoutRecord) (*models.LockoutRecord, error) {
		lockedNow = false
		record, _ := s.normalize(current, now)

		if record.IsLockedAt(now) {
			result = lockedResult(record.RemainingAt(now))
			return record, nil
		}

		if record == nil {
			record = &models.LockoutRecord{Key: key}
		}
		if record.Count == 0 {
			record.FirstAttempt = now
		}
		record.Count++

		if record.Count >= s.config.MaxAttempts {
			duration := s.lockoutDuration(record.LockCount)
			until := now.Add(duration)
			lockedAt := now

			record.LockedUntil = &until
			record.LastLockedAt = &lockedAt
			record.LockCount++

			result = lockedResult(duration)
			lockedNow = true
		} else {
			result = models.FailureResult{RemainingAttempts: s.config.MaxAttempts - record.Count}
		}

		record.ExpiresAt = s.expiresAt(record)
		return record, nil
	})
	if err != nil {
		return models.FailureResult{}, fmt.Errorf("failed to record failed login: %w", err)
	}

	if lockedNow {
		s.onLockApplied(ctx, identity, origin, record, result.LockoutDuration)
	}

	return result, nil
}

// ClearLoginAttempts removes the record for identity and origin after a successful login
func (s *LockoutService) ClearLoginAttempts(ctx context.Context, identity, origin string) error {
	key, err := AttemptKey(identity, origin)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear login attempts: %w", err)
	}

	s.audit.LogLockoutCleared(ctx, identity, origin)
	return nil
}

// UnlockAccount removes every record for identity regardless of origin and returns how many were removed
func (s *LockoutService) UnlockAccount(ctx context.Context, identity, actor string) (int, error) {
	prefix, err := AttemptKey(identity, "")
	if err != nil {
		return 0, err
	}

	removed, err := s.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to unlock account: %w", err)
	}

	s.audit.LogAccountUnlocked(ctx, identity, actor, removed)
	return removed, nil
}

// PurgeExpired deletes records whose retention has passed
func (s *LockoutService) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired lockout records: %w", err)
	}
	return removed, nil
}

// normalize applies lazy expiry to record at now. It returns the record as it should be stored
// (nil for absent) and whether that differs from what was loaded.
func (s *LockoutService) normalize(record *models.LockoutRecord, now time.Time) (*models.LockoutRecord, bool) {
	if record == nil {
		return nil, false
	}
	if record.IsExpiredAt(now) {
		return nil, true
	}
	if record.IsLockedAt(now) {
		return record, false
	}

	lockExpired := record.LockedUntil != nil
	windowElapsed := record.Count > 0 && now.Sub(record.FirstAttempt) > s.config.Window
	if !lockExpired && !windowElapsed {
		return record, false
	}

	if !s.keepsHistory(record) {
		return nil, true
	}

	// Drop the counters, keep the lock history for progressive lockout
	reset := record.Clone()
	reset.Count = 0
	reset.FirstAttempt = time.Time{}
	reset.LockedUntil = nil
	return reset, true
}

func (s *LockoutService) keepsHistory(record *models.LockoutRecord) bool {
	return s.config.ProgressiveLockout && record.LockCount > 0 && s.config.HistoryRetention > 0
}

// expiresAt is the end of the window or lock, extended by the history retention when
// there is lock history. An existing history expiry is never shortened.
func (s *LockoutService) expiresAt(record *models.LockoutRecord) time.Time {
	expires := record.FirstAttempt.Add(s.config.Window)
	if record.LockedUntil != nil && record.LockedUntil.After(expires) {
		expires = *record.LockedUntil
	}

	if s.keepsHistory(record) {
		expires = expires.Add(s.config.HistoryRetention)
		if record.ExpiresAt.After(expires) {
			expires = record.ExpiresAt
		}
	}
	return expires
}

// lockoutDuration doubles the base once for any repeat lock, capped at MaxLockoutDuration
func (s *LockoutService) lockoutDuration(priorLocks int) time.Duration {
	duration := s.config.LockoutDuration
	if s.config.ProgressiveLockout && priorLocks > 0 {
		duration *= 2
	}
	if duration > s.config.MaxLockoutDuration {
		duration = s.config.MaxLockoutDuration
	}
	return duration
}

func (s *LockoutService) status(record *models.LockoutRecord, now time.Time) models.LockStatus {
	if record.IsLockedAt(now) {
		remaining := record.RemainingAt(now)
		return models.LockStatus{
			Locked:      true,
			Remaining:   remaining,
			RemainingMs: remaining.Milliseconds(),
		}
	}

	count := 0
	if record != nil {
		count = record.Count
	}
	attempts := s.config.MaxAttempts - count
	if attempts < 0 {
		attempts = 0
	}
	return models.LockStatus{AttemptsRemaining: attempts}
}

func lockedResult(duration time.Duration) models.FailureResult {
	return models.FailureResult{
		Locked:          true,
		LockoutDuration: duration,
		LockoutMs:       duration.Milliseconds(),
	}
}

func (s *LockoutService) onLockApplied(ctx context.Context, identity, origin string, record *models.LockoutRecord, duration time.Duration) {
	lockCount := 0
	var until time.Time
	if record != nil {
		lockCount = record.LockCount
		if record.LockedUntil != nil {
			until = *record.LockedUntil
		}
	}

	s.logger.Warn("account locked",
		slog.String("identity", pkglogger.SanitizedIdentity(identity)),
		slog.String("origin", origin),
		slog.Int("lock_count", lockCount),
		slog.Duration("lockout_duration", duration))
	s.audit.LogLockoutApplied(ctx, identity, origin, lockCount, duration)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLockout(ctx, identity, origin, duration, until); err != nil {
		s.logger.Error("failed to send lockout notification",
			slog.String("identity", pkglogger.SanitizedIdentity(identity)),
			slog.Any("error", err))
	}
}
