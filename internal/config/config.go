package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lockout store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Lockout   LockoutConfig
	TOTP      TOTPConfig
	Password  PasswordConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Admin     AdminConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string // CIDR ranges allowed to set X-Forwarded-For
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// Failed verifications are padded to at least this long
	FailureDelay  time.Duration
	FailureJitter time.Duration
}

type LockoutConfig struct {
	MaxAttempts      int
	Window           time.Duration
	Duration         time.Duration
	Progressive      bool
	MaxDuration      time.Duration
	HistoryRetention time.Duration
	Store            string
	CleanupInterval  time.Duration
}

type TOTPConfig struct {
	Issuer          string
	Window          int
	EncryptionKey   string
	BackupCodeCount int
}

type PasswordConfig struct {
	MinLength int
	MaxLength int
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	URL            string
	KeyPrefix      string
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

type AdminConfig struct {
	JWTSecret string
}

type EmailConfig struct {
	NotifyOnLockout bool
	AWSRegion       string
	FromAddress     string
}

type RateLimitConfig struct {
	VerifyRequestsPerMinute int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			FailureDelay:   getEnvAsDuration("VERIFY_FAILURE_DELAY", 250*time.Millisecond),
			FailureJitter:  getEnvAsDuration("VERIFY_FAILURE_JITTER", 100*time.Millisecond),
		},
		Lockout: LockoutConfig{
			MaxAttempts:      getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:           getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			Duration:         getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			Progressive:      getEnvAsBool("LOCKOUT_PROGRESSIVE", true),
			MaxDuration:      getEnvAsDuration("LOCKOUT_MAX_DURATION", 24*time.Hour),
			HistoryRetention: getEnvAsDuration("LOCKOUT_HISTORY_RETENTION", 24*time.Hour),
			Store:            strings.ToLower(getEnv("LOCKOUT_STORE", StoreMemory)),
			CleanupInterval:  getEnvAsDuration("LOCKOUT_CLEANUP_INTERVAL", 10*time.Minute),
		},
		TOTP: TOTPConfig{
			Issuer:          getEnv("TOTP_ISSUER", "Authguard"),
			Window:          getEnvAsInt("TOTP_WINDOW", 1),
			EncryptionKey:   getEnv("TOTP_ENCRYPTION_KEY", ""),
			BackupCodeCount: getEnvAsInt("BACKUP_CODE_COUNT", 10),
		},
		Password: PasswordConfig{
			MinLength: getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			MaxLength: getEnvAsInt("PASSWORD_MAX_LENGTH", 128),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			KeyPrefix:      getEnv("REDIS_KEY_PREFIX", "authguard:lockout:"),
			RetryAttempts:  getEnvAsInt("REDIS_RETRY_ATTEMPTS", 3),
			RetryInterval:  getEnvAsDuration("REDIS_RETRY_INTERVAL", 5*time.Second),
			ConnectTimeout: getEnvAsDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Email: EmailConfig{
			NotifyOnLockout: getEnvAsBool("LOCKOUT_NOTIFY", false),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			FromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		RateLimit: RateLimitConfig{
			VerifyRequestsPerMinute: getEnvAsInt("VERIFY_RATE_LIMIT_PER_MINUTE", 30),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Lockout.MaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1 (got %d)", c.Lockout.MaxAttempts)
	}
	if c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 || c.Lockout.MaxDuration <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW, LOCKOUT_DURATION and LOCKOUT_MAX_DURATION must be positive")
	}
	if c.Lockout.MaxDuration < c.Lockout.Duration {
		return fmt.Errorf("LOCKOUT_MAX_DURATION must not be shorter than LOCKOUT_DURATION")
	}
	if c.TOTP.Window < 0 {
		return fmt.Errorf("TOTP_WINDOW must not be negative (got %d)", c.TOTP.Window)
	}
	if c.Password.MinLength < 1 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 1 (got %d)", c.Password.MinLength)
	}
	if c.Password.MaxLength > 0 && c.Password.MaxLength < c.Password.MinLength {
		return fmt.Errorf("PASSWORD_MAX_LENGTH must not be less than PASSWORD_MIN_LENGTH")
	}

	switch c.Lockout.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when LOCKOUT_STORE=redis")
		}
	case StorePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when LOCKOUT_STORE=postgres")
		}
	default:
		return fmt.Errorf("LOCKOUT_STORE must be one of memory, redis, postgres (got %q)", c.Lockout.Store)
	}

	if c.Email.NotifyOnLockout && c.Email.FromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when LOCKOUT_NOTIFY is enabled")
	}

	if c.Admin.JWTSecret != "" {
		if err := validateJWTSecret(c.Admin.JWTSecret, c.Server.Env); err != nil {
			return err
		}
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for the admin token secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("ADMIN_JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		origins := getEnvAsList("ALLOWED_ORIGINS")
		if origins == nil {
			return []string{} // Default to no origins in production
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
