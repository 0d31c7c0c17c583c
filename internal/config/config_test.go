package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	durations := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"LockoutWindow", cfg.Lockout.Window, 15 * time.Minute},
		{"LockoutDuration", cfg.Lockout.Duration, 30 * time.Minute},
		{"LockoutMaxDuration", cfg.Lockout.MaxDuration, 24 * time.Hour},
		{"HistoryRetention", cfg.Lockout.HistoryRetention, 24 * time.Hour},
	}

	for _, tt := range durations {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Lockout.MaxAttempts != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", cfg.Lockout.MaxAttempts)
	}
	if !cfg.Lockout.Progressive {
		t.Error("Progressive: got false, want true")
	}
	if cfg.Lockout.Store != StoreMemory {
		t.Errorf("Store: got %q, want %q", cfg.Lockout.Store, StoreMemory)
	}
	if cfg.TOTP.Window != 1 || cfg.TOTP.Issuer != "Authguard" {
		t.Errorf("TOTP: got window=%d issuer=%q", cfg.TOTP.Window, cfg.TOTP.Issuer)
	}
	if cfg.Password.MinLength != 8 || cfg.Password.MaxLength != 128 {
		t.Errorf("Password: got %d..%d, want 8..128", cfg.Password.MinLength, cfg.Password.MaxLength)
	}
}

func TestLoad_CustomLockout(t *testing.T) {
	t.Setenv("LOCKOUT_MAX_ATTEMPTS", "3")
	t.Setenv("LOCKOUT_WINDOW", "5m")
	t.Setenv("LOCKOUT_DURATION", "10m")
	t.Setenv("LOCKOUT_PROGRESSIVE", "false")
	t.Setenv("LOCKOUT_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.MaxAttempts != 3 {
		t.Errorf("MaxAttempts: got %d, want 3", cfg.Lockout.MaxAttempts)
	}
	if cfg.Lockout.Window != 5*time.Minute || cfg.Lockout.Duration != 10*time.Minute {
		t.Errorf("got window=%v duration=%v", cfg.Lockout.Window, cfg.Lockout.Duration)
	}
	if cfg.Lockout.Progressive {
		t.Error("Progressive: got true, want false")
	}
	if cfg.Lockout.Store != StoreRedis {
		t.Errorf("Store: got %q, want %q", cfg.Lockout.Store, StoreRedis)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	t.Setenv("LOCKOUT_MAX_ATTEMPTS", "five")
	t.Setenv("LOCKOUT_PROGRESSIVE", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
	if cfg.Lockout.MaxAttempts != 5 {
		t.Errorf("MaxAttempts with invalid value: got %d, want 5", cfg.Lockout.MaxAttempts)
	}
	if !cfg.Lockout.Progressive {
		t.Error("Progressive with invalid value: got false, want true")
	}
}

func TestLoad_ZeroTimeoutHonored(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Explicitly setting 0s should be honored (no timeout)
	if cfg.Server.ReadTimeout != 0 {
		t.Errorf("ReadTimeout with 0s: got %v, want 0", cfg.Server.ReadTimeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"zero max attempts", map[string]string{"LOCKOUT_MAX_ATTEMPTS": "0"}, "LOCKOUT_MAX_ATTEMPTS"},
		{"negative window", map[string]string{"LOCKOUT_WINDOW": "-1m"}, "must be positive"},
		{"max shorter than base", map[string]string{"LOCKOUT_MAX_DURATION": "1m"}, "LOCKOUT_MAX_DURATION"},
		{"negative totp window", map[string]string{"TOTP_WINDOW": "-1"}, "TOTP_WINDOW"},
		{"max below min length", map[string]string{"PASSWORD_MIN_LENGTH": "12", "PASSWORD_MAX_LENGTH": "10"}, "PASSWORD_MAX_LENGTH"},
		{"unknown store", map[string]string{"LOCKOUT_STORE": "etcd"}, "LOCKOUT_STORE"},
		{"redis without url", map[string]string{"LOCKOUT_STORE": "redis"}, "REDIS_URL"},
		{"postgres without password", map[string]string{"LOCKOUT_STORE": "postgres"}, "DB_PASSWORD"},
		{"notify without sender", map[string]string{"LOCKOUT_NOTIFY": "true"}, "EMAIL_FROM_ADDRESS"},
		{"short admin secret", map[string]string{"ADMIN_JWT_SECRET": "short"}, "ADMIN_JWT_SECRET"},
		{"weak production secret", map[string]string{"ENV": "production", "ADMIN_JWT_SECRET": "only-twenty-chars-xx"}, "at least 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseAllowedOrigins_Production(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	origins := parseAllowedOrigins("production")
	if len(origins) != 2 || origins[1] != "https://b.example.com" {
		t.Errorf("parseAllowedOrigins() = %v", origins)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "authguard", SSLMode: "disable"}

	want := "host=db port=5432 user=u password=p dbname=authguard sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,127.0.0.1/32 ")

	got := getEnvAsList("TRUSTED_PROXIES")
	if len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "127.0.0.1/32" {
		t.Errorf("getEnvAsList() = %v", got)
	}

	if got := getEnvAsList("UNSET_LIST_VARIABLE"); got != nil {
		t.Errorf("getEnvAsList(unset) = %v, want nil", got)
	}
}
