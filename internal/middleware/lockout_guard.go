package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

const maxGuardBodyBytes = 1 << 20

// LockoutChecker answers whether an identity is currently locked from an origin
type LockoutChecker interface {
	IsLocked(ctx context.Context, identity, origin string) (models.LockStatus, error)
}

// IdentityExtractor returns the identity a request authenticates as.
// An empty identity skips the lockout check.
type IdentityExtractor func(r *http.Request) (string, error)

// Decision is the outcome of a lockout check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LockoutGuard checks lockout state before a login-style handler runs.
// Check is transport independent; Middleware adapts it to net/http.
type LockoutGuard struct {
	checker  LockoutChecker
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewLockoutGuard creates a new LockoutGuard
func NewLockoutGuard(checker LockoutChecker, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *LockoutGuard {
	return &LockoutGuard{checker: checker, ipConfig: ipConfig, logger: logger}
}

// Check decides whether identity may proceed from origin.
// Store failures allow the request so an outage does not block every login.
func (g *LockoutGuard) Check(ctx context.Context, identity, origin string) Decision {
	status, err := g.checker.IsLocked(ctx, identity, origin)
	if err != nil {
		g.logger.Error("lockout check failed, allowing request",
			slog.String("identity", pkglogger.SanitizedIdentity(identity)),
			slog.Any("error", err))
		return Decision{Allowed: true}
	}

	if status.Locked {
		return Decision{RetryAfter: status.Remaining}
	}
	return Decision{Allowed: true}
}

// Middleware rejects requests from locked identities with 429 and Retry-After
func (g *LockoutGuard) Middleware(extract IdentityExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := extract(r)
			if err != nil {
				pkghttp.WriteBadRequest(w, "Invalid request body")
				return
			}
			if identity == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision := g.Check(r.Context(), identity, pkghttp.ExtractClientIP(r, g.ipConfig))
			if !decision.Allowed {
				pkghttp.WriteLocked(w, decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromJSONField reads a string field from a JSON body and restores the body for the next handler
func IdentityFromJSONField(field string) IdentityExtractor {
	return func(r *http.Request) (string, error) {
		if r.Body == nil {
			return "", nil
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxGuardBodyBytes+1))
		if err != nil {
			return "", err
		}
		if len(body) > maxGuardBodyBytes {
			return "", errors.New("request body too large")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if len(bytes.TrimSpace(body)) == 0 {
			return "", nil
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return "", err
		}

		raw, ok := fields[field]
		if !ok {
			return "", nil
		}
		var identity string
		if err := json.Unmarshal(raw, &identity); err != nil {
			return "", err
		}
		return strings.TrimSpace(identity), nil
	}
}

// IdentityFromHeader reads the identity from a request header
func IdentityFromHeader(name string) IdentityExtractor {
	return func(r *http.Request) (string, error) {
		return strings.TrimSpace(r.Header.Get(name)), nil
	}
}
