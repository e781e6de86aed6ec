package config

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"GO_ENV", "PORT", "DATABASE_URL", "LOG_LEVEL", "JWT_SECRET", "JWT_EXPIRY",
	"PASSWORD_SCHEME", "PBKDF2_ITERATIONS", "HASH_CONCURRENCY", "CORS_ALLOWED_ORIGINS",
	"EMAIL_PROVIDER", "EMAIL_FROM_ADDRESS", "EMAIL_FROM_NAME", "AWS_REGION",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "SES_INSECURE_SKIP_VERIFY", "RUN_MIGRATIONS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultDBUrl, cfg.DBUrl)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, defaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Empty(t, cfg.PasswordScheme)
	assert.Equal(t, 10000, cfg.PBKDF2Iterations)
	assert.Equal(t, runtime.NumCPU(), cfg.HashConcurrency)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "noop", cfg.Email.Provider)
	assert.Equal(t, defaultEmailFromName, cfg.Email.FromName)
	assert.False(t, cfg.Email.SESInsecureSkipVerify)
}

func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRY", "90m")
	t.Setenv("PASSWORD_SCHEME", "argon2id")
	t.Setenv("PBKDF2_ITERATIONS", "600000")
	t.Setenv("HASH_CONCURRENCY", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("EMAIL_PROVIDER", "SES")
	t.Setenv("EMAIL_FROM_ADDRESS", "no-reply@example.com")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("SES_INSECURE_SKIP_VERIFY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.DBUrl)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, "argon2id", cfg.PasswordScheme)
	assert.Equal(t, 600000, cfg.PBKDF2Iterations)
	assert.Equal(t, 3, cfg.HashConcurrency)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "ses", cfg.Email.Provider)
	assert.Equal(t, "no-reply@example.com", cfg.Email.FromAddress)
	assert.Equal(t, "eu-west-1", cfg.Email.AWSRegion)
	assert.True(t, cfg.Email.SESInsecureSkipVerify)
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad iterations", map[string]string{"PBKDF2_ITERATIONS": "many"}, "PBKDF2_ITERATIONS"},
		{"zero iterations", map[string]string{"PBKDF2_ITERATIONS": "0"}, "PBKDF2_ITERATIONS must be positive"},
		{"negative concurrency", map[string]string{"HASH_CONCURRENCY": "-2"}, "HASH_CONCURRENCY must be positive"},
		{"bad expiry", map[string]string{"JWT_EXPIRY": "tomorrow"}, "JWT_EXPIRY"},
		{"negative expiry", map[string]string{"JWT_EXPIRY": "-1h"}, "JWT_EXPIRY must be positive"},
		{"bad bool", map[string]string{"RUN_MIGRATIONS": "perhaps"}, "RUN_MIGRATIONS"},
		{"production without secret", map[string]string{"GO_ENV": "production"}, "JWT_SECRET is required"},
		{"ses without sender", map[string]string{"EMAIL_PROVIDER": "ses", "AWS_REGION": "us-east-1"}, "EMAIL_FROM_ADDRESS is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_production_defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.RunMigrations)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "warn")

	logger.Info("hidden")
	logger.Warn("shown", "request_id", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "abc", record["request_id"])

	buf.Reset()
	NewLogger(&buf, "development", "bogus").Info("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
	assert.Contains(t, buf.String(), "level=INFO")
}
