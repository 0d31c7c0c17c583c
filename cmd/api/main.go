package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/background"
	"github.com/BradenHooton/authguard/internal/config"
	"github.com/BradenHooton/authguard/internal/database"
	"github.com/BradenHooton/authguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authguard/internal/middleware"
	"github.com/BradenHooton/authguard/internal/repositories"
	"github.com/BradenHooton/authguard/internal/routes"
	"github.com/BradenHooton/authguard/internal/services"
	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// lockoutBackend is a lockout store together with its health check and shutdown hook
type lockoutBackend struct {
	store  services.LockoutStore
	health handlers.HealthCheckFunc
	close  func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("lockout_store", cfg.Lockout.Store))

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize lockout store
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	backend, err := openLockoutBackend(startupCtx, cfg, logger)
	cancelStartup()
	if err != nil {
		logger.Error("failed to initialize lockout store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.close()

	// Initialize services
	lockoutService := services.NewLockoutService(backend.store, services.LockoutConfig{
		MaxAttempts:        cfg.Lockout.MaxAttempts,
		Window:             cfg.Lockout.Window,
		LockoutDuration:    cfg.Lockout.Duration,
		ProgressiveLockout: cfg.Lockout.Progressive,
		MaxLockoutDuration: cfg.Lockout.MaxDuration,
		HistoryRetention:   cfg.Lockout.HistoryRetention,
	}, logger)

	if cfg.Email.NotifyOnLockout {
		notifier, err := services.NewSESLockoutNotifier(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		lockoutService.SetNotifier(notifier)
	}

	totpManager, err := auth.NewTOTPManager(auth.TOTPConfig{
		Issuer:        cfg.TOTP.Issuer,
		Skew:          cfg.TOTP.Window,
		EncryptionKey: cfg.TOTP.EncryptionKey,
	})
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for failed verifications
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Server.FailureDelay,
		RandomDelay: cfg.Server.FailureJitter,
	})

	auditLogger := pkglogger.NewAuditLogger(logger)

	passwordReqs := pkgauth.DefaultPasswordRequirements()
	passwordReqs.MinLength = cfg.Password.MinLength
	passwordReqs.MaxLength = cfg.Password.MaxLength

	// Initialize handlers
	h := routes.Handlers{
		Password: handlers.NewPasswordHandler(passwordReqs, ipConfig, auditLogger, logger),
		Lockout:  handlers.NewLockoutHandler(lockoutService, ipConfig, logger),
		TOTP: handlers.NewTOTPHandler(handlers.TOTPHandlerConfig{
			TOTP:            totpManager,
			Tracker:         lockoutService,
			Timing:          timingDelay,
			Audit:           auditLogger,
			IPConfig:        ipConfig,
			BackupCodeCount: cfg.TOTP.BackupCodeCount,
			Logger:          logger,
		}),
		Health: handlers.NewHealthHandler(cfg.Lockout.Store, backend.health, logger),
	}

	var adminAuth *auth.AdminAuthenticator
	if cfg.Admin.JWTSecret != "" {
		adminAuth = auth.NewAdminAuthenticator(cfg.Admin.JWTSecret)
	} else {
		logger.Info("no ADMIN_JWT_SECRET set, admin routes disabled")
	}

	// Setup router. Client addresses come from ExtractClientIP with the trusted proxy list,
	// so chi's RealIP is not used.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	rateLimit := middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.VerifyRequestsPerMinute,
		IPConfig:          ipConfig,
	}
	guard := middlewareCustom.NewLockoutGuard(lockoutService, ipConfig, logger)
	routes.RegisterRoutes(router, h, guard, rateLimit, adminAuth)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(lockoutService, logger, cfg.Lockout.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// openLockoutBackend connects the store selected by LOCKOUT_STORE
func openLockoutBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*lockoutBackend, error) {
	switch cfg.Lockout.Store {
	case config.StoreRedis:
		client, err := database.ConnectRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		store := repositories.NewRedisLockoutStore(client, cfg.Redis.KeyPrefix)
		return &lockoutBackend{
			store:  store,
			health: store.HealthCheck,
			close: func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close redis client", slog.Any("error", err))
				}
			},
		}, nil

	case config.StorePostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db.Pool, logger); err != nil {
			db.Close()
			return nil, err
		}
		store := repositories.NewPostgresLockoutStore(db)
		return &lockoutBackend{store: store, health: store.HealthCheck, close: db.Close}, nil

	case config.StoreMemory:
		if cfg.Server.Env == "production" {
			logger.Warn("using in-memory lockout store; lockout state is lost on restart and not shared between instances")
		}
		store := repositories.NewMemoryLockoutStore()
		return &lockoutBackend{store: store, health: store.HealthCheck, close: func() {}}, nil
	}

	return nil, fmt.Errorf("unknown lockout store %q", cfg.Lockout.Store)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
