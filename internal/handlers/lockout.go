package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// LockoutTracker is the login attempt tracker the handlers drive
type LockoutTracker interface {
	IsLocked(ctx context.Context, identity, origin string) (models.LockStatus, error)
	RecordFailedLogin(ctx context.Context, identity, origin string) (models.FailureResult, error)
	ClearLoginAttempts(ctx context.Context, identity, origin string) error
	UnlockAccount(ctx context.Context, identity, actor string) (int, error)
}

// LockoutHandler exposes the login attempt tracker over HTTP
type LockoutHandler struct {
	tracker  LockoutTracker
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewLockoutHandler creates a new lockout handler
func NewLockoutHandler(tracker LockoutTracker, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *LockoutHandler {
	return &LockoutHandler{
		tracker:  tracker,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// decodeLockoutRequest parses the body and fills Origin with the client IP when absent
func (h *LockoutHandler) decodeLockoutRequest(w http.ResponseWriter, r *http.Request) (LockoutRequest, bool) {
	var req LockoutRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return req, false
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return req, false
	}
	if req.Origin == "" {
		req.Origin = pkghttp.ExtractClientIP(r, h.ipConfig)
	}
	return req, true
}

// Status handles POST /v1/lockout/status
func (h *LockoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLockoutRequest(w, r)
	if !ok {
		return
	}

	status, err := h.tracker.IsLocked(r.Context(), req.Identity, req.Origin)
	if err != nil {
		h.writeTrackerError(w, "lockout status check failed", req.Identity, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// RecordFailure handles POST /v1/lockout/failures
func (h *LockoutHandler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLockoutRequest(w, r)
	if !ok {
		return
	}

	result, err := h.tracker.RecordFailedLogin(r.Context(), req.Identity, req.Origin)
	if err != nil {
		h.writeTrackerError(w, "failed to record login failure", req.Identity, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Clear handles POST /v1/lockout/clear
func (h *LockoutHandler) Clear(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLockoutRequest(w, r)
	if !ok {
		return
	}

	if err := h.tracker.ClearLoginAttempts(r.Context(), req.Identity, req.Origin); err != nil {
		h.writeTrackerError(w, "failed to clear login attempts", req.Identity, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /v1/admin/unlock. Requires RequireAdmin in front of it.
func (h *LockoutHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	admin := auth.GetAdminFromContext(r)
	if admin == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	removed, err := h.tracker.UnlockAccount(r.Context(), req.Identity, admin.Subject)
	if err != nil {
		h.writeTrackerError(w, "failed to unlock account", req.Identity, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UnlockResponse{Identity: req.Identity, Removed: removed})
}

func (h *LockoutHandler) writeTrackerError(w http.ResponseWriter, msg, identity string, err error) {
	if errors.Is(err, models.ErrInvalidIdentity) {
		pkghttp.WriteValidationError(w, "identity must not be blank")
		return
	}

	h.logger.Error(msg,
		slog.String("identity", pkglogger.SanitizedIdentity(identity)),
		slog.Any("error", err))
	pkghttp.WriteServiceUnavailable(w, "Lockout store unavailable")
}
