package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/handlers"
	"github.com/BradenHooton/authguard/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Password *handlers.PasswordHandler
	Lockout  *handlers.LockoutHandler
	TOTP     *handlers.TOTPHandler
	Health   *handlers.HealthHandler
}

// RegisterRoutes registers all application routes.
// Admin routes are only mounted when admin is non-nil.
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	guard *middleware.LockoutGuard,
	rateLimit middleware.RateLimitConfig,
	admin *auth.AdminAuthenticator,
) {
	router.Get("/health", h.Health.Health)

	router.Route("/v1", func(r chi.Router) {
		r.Post("/password/evaluate", h.Password.Evaluate)

		// Verification endpoints are rate limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimit))

			r.Post("/lockout/status", h.Lockout.Status)
			r.Post("/lockout/failures", h.Lockout.RecordFailure)
			r.Post("/lockout/clear", h.Lockout.Clear)

			r.Post("/totp/enroll", h.TOTP.Enroll)
			r.With(guard.Middleware(middleware.IdentityFromJSONField("identity"))).Post("/totp/verify", h.TOTP.Verify)

			r.Post("/backup-codes", h.TOTP.GenerateBackupCodes)
			r.Post("/backup-codes/verify", h.TOTP.VerifyBackupCode)
		})

		if admin != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(admin))
				r.Post("/admin/unlock", h.Lockout.Unlock)
			})
		}
	})
}
