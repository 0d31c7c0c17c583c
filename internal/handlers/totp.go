package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/authguard/internal/auth"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// TOTPHandler serves TOTP enrollment and verification plus backup codes
type TOTPHandler struct {
	totp            *auth.TOTPManager
	tracker         LockoutTracker // optional; nil disables attempt tracking
	timing          *auth.TimingDelay
	audit           *pkglogger.AuditLogger
	ipConfig        *pkghttp.IPConfig
	backupCodeCount int
	logger          *slog.Logger
}

// TOTPHandlerConfig groups the collaborators of TOTPHandler
type TOTPHandlerConfig struct {
	TOTP            *auth.TOTPManager
	Tracker         LockoutTracker
	Timing          *auth.TimingDelay
	Audit           *pkglogger.AuditLogger
	IPConfig        *pkghttp.IPConfig
	BackupCodeCount int
	Logger          *slog.Logger
}

// NewTOTPHandler creates a new TOTP handler
func NewTOTPHandler(cfg TOTPHandlerConfig) *TOTPHandler {
	timing := cfg.Timing
	if timing == nil {
		timing = auth.NewTimingDelay(auth.TimingConfig{})
	}

	return &TOTPHandler{
		totp:            cfg.TOTP,
		tracker:         cfg.Tracker,
		timing:          timing,
		audit:           cfg.Audit,
		ipConfig:        cfg.IPConfig,
		backupCodeCount: cfg.BackupCodeCount,
		logger:          cfg.Logger,
	}
}

// Enroll handles POST /v1/totp/enroll
func (h *TOTPHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollTOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	enrollment, err := h.totp.Enroll(req.AccountLabel, h.backupCodeCount)
	if err != nil {
		h.logger.Error("failed to enroll TOTP", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Enrollment failed")
		return
	}

	h.audit.LogTOTPEnrollment(r.Context(), req.AccountLabel, enrollment.ID, pkghttp.ExtractClientIP(r, h.ipConfig))

	pkghttp.WriteJSON(w, http.StatusOK, EnrollTOTPResponse{
		EnrollmentID: enrollment.ID,
		Secret:       enrollment.Secret,
		URI:          enrollment.URI,
		QRCode:       enrollment.QRCode,
		BackupCodes:  enrollment.BackupCodes,
	})
}

// Verify handles POST /v1/totp/verify.
// Failures are padded by the timing delay and, when an identity is given, counted towards its lockout.
func (h *TOTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req VerifyTOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	var (
		step  uint64
		valid bool
		err   error
	)
	if req.LastStep != nil {
		step, valid, err = h.totp.VerifyWithReplayGuard(req.Secret, req.Code, req.LastStep)
	} else {
		valid = h.totp.Verify(req.Secret, req.Code)
	}

	if !valid {
		reason := "invalid_code"
		if errors.Is(err, auth.ErrCodeReplayed) {
			reason = "code_replayed"
		}
		h.audit.LogTOTPVerification(ctx, clientIP, false, reason)

		resp := VerifyTOTPResponse{Valid: false}
		if h.tracker != nil && req.Identity != "" {
			result, err := h.tracker.RecordFailedLogin(ctx, req.Identity, clientIP)
			if err != nil {
				h.logger.Error("failed to record TOTP failure",
					slog.String("identity", pkglogger.SanitizedIdentity(req.Identity)),
					slog.Any("error", err))
			} else if result.Locked {
				h.timing.WaitFrom(ctx, start, false)
				pkghttp.WriteLocked(w, result.LockoutDuration)
				return
			} else {
				resp.RemainingAttempts = &result.RemainingAttempts
			}
		}

		h.timing.WaitFrom(ctx, start, false)
		pkghttp.WriteJSON(w, http.StatusUnauthorized, resp)
		return
	}

	h.audit.LogTOTPVerification(ctx, clientIP, true, "")
	if h.tracker != nil && req.Identity != "" {
		if err := h.tracker.ClearLoginAttempts(ctx, req.Identity, clientIP); err != nil {
			h.logger.Error("failed to clear login attempts",
				slog.String("identity", pkglogger.SanitizedIdentity(req.Identity)),
				slog.Any("error", err))
		}
	}

	resp := VerifyTOTPResponse{Valid: true}
	if req.LastStep != nil {
		resp.TimeStep = &step
	}

	h.timing.WaitFrom(ctx, start, true)
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GenerateBackupCodes handles POST /v1/backup-codes
func (h *TOTPHandler) GenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	// An empty body asks for the default count
	var req GenerateBackupCodesRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	count := req.Count
	if count == 0 {
		count = h.backupCodeCount
	}

	codes, err := auth.GenerateBackupCodes(count)
	if err != nil {
		h.logger.Error("failed to generate backup codes", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Backup code generation failed")
		return
	}

	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = auth.HashBackupCode(code)
	}

	pkghttp.WriteJSON(w, http.StatusOK, GenerateBackupCodesResponse{Codes: codes, Hashes: hashes})
}

// VerifyBackupCode handles POST /v1/backup-codes/verify
func (h *TOTPHandler) VerifyBackupCode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req VerifyBackupCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	valid := auth.VerifyBackupCode(req.Code, req.Hash)
	h.timing.WaitFrom(r.Context(), start, valid)

	status := http.StatusOK
	if !valid {
		status = http.StatusUnauthorized
	}
	pkghttp.WriteJSON(w, status, VerifyBackupCodeResponse{Valid: valid})
}
