package handlers

import (
	"log/slog"
	"net/http"

	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// PasswordHandler serves password policy evaluation
type PasswordHandler struct {
	requirements pkgauth.PasswordRequirements
	ipConfig     *pkghttp.IPConfig
	audit        *pkglogger.AuditLogger
	logger       *slog.Logger
}

// NewPasswordHandler creates a new password handler using reqs as the default policy
func NewPasswordHandler(reqs pkgauth.PasswordRequirements, ipConfig *pkghttp.IPConfig, audit *pkglogger.AuditLogger, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{
		requirements: reqs,
		ipConfig:     ipConfig,
		audit:        audit,
		logger:       logger,
	}
}

// Evaluate handles POST /v1/password/evaluate
func (h *PasswordHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	reqs := req.Requirements.Apply(h.requirements)

	result := pkgauth.EvaluatePassword(req.Password, reqs)
	h.audit.LogPasswordEvaluated(r.Context(), pkghttp.ExtractClientIP(r, h.ipConfig), result.Valid, string(result.Strength))

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
