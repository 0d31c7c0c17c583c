package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Audit event types
const (
	EventLockoutApplied    = "lockout_applied"
	EventLockoutCleared    = "lockout_cleared"
	EventAccountUnlocked   = "account_unlocked"
	EventTOTPVerification  = "totp_verification"
	EventTOTPEnrollment    = "totp_enrollment"
	EventPasswordEvaluated = "password_evaluated"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Identity      string // Masked before logging
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// Log writes event at info level on success and warn level otherwise
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_id", uuid.NewString()),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Identity != "" {
		attrs = append(attrs, slog.String("identity", SanitizedIdentity(event.Identity)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLockoutApplied records that an identity crossed the failure threshold
func (al *AuditLogger) LogLockoutApplied(ctx context.Context, identity, origin string, lockCount int, duration time.Duration) {
	al.Log(ctx, AuditEvent{
		EventType:     EventLockoutApplied,
		Identity:      identity,
		IPAddress:     origin,
		Success:       false,
		FailureReason: "too many failed login attempts",
		Metadata: map[string]string{
			"lock_count":       strconv.Itoa(lockCount),
			"lockout_duration": duration.String(),
		},
	})
}

// LogLockoutCleared records a successful login wiping the attempt record
func (al *AuditLogger) LogLockoutCleared(ctx context.Context, identity, origin string) {
	al.Log(ctx, AuditEvent{
		EventType: EventLockoutCleared,
		Identity:  identity,
		IPAddress: origin,
		Success:   true,
	})
}

// LogAccountUnlocked records an administrative unlock
func (al *AuditLogger) LogAccountUnlocked(ctx context.Context, identity, actor string, removed int) {
	al.Log(ctx, AuditEvent{
		EventType: EventAccountUnlocked,
		Identity:  identity,
		Success:   true,
		Metadata: map[string]string{
			"actor":           actor,
			"records_removed": strconv.Itoa(removed),
		},
	})
}

// LogTOTPVerification records the outcome of a second-factor check
func (al *AuditLogger) LogTOTPVerification(ctx context.Context, ipAddress string, success bool, reason string) {
	al.Log(ctx, AuditEvent{
		EventType:     EventTOTPVerification,
		IPAddress:     ipAddress,
		Success:       success,
		FailureReason: reason,
	})
}

// LogTOTPEnrollment records a new authenticator enrollment
func (al *AuditLogger) LogTOTPEnrollment(ctx context.Context, accountLabel, enrollmentID, ipAddress string) {
	al.Log(ctx, AuditEvent{
		EventType: EventTOTPEnrollment,
		Identity:  accountLabel,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  map[string]string{"enrollment_id": enrollmentID},
	})
}

// LogPasswordEvaluated records a policy evaluation without the password itself
func (al *AuditLogger) LogPasswordEvaluated(ctx context.Context, ipAddress string, valid bool, strength string) {
	al.Log(ctx, AuditEvent{
		EventType: EventPasswordEvaluated,
		IPAddress: ipAddress,
		Success:   valid,
		Metadata:  map[string]string{"strength": strength},
	})
}
