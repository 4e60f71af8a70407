package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/events")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	require.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	require.Equal(t, 3, cfg.Roster.MaxAttempts)
	require.Equal(t, "development", cfg.Environment)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_ACCESS_TTL", "1m")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROSTER_MAX_ATTEMPTS", "5")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.Equal(t, 5, cfg.Roster.MaxAttempts)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()

	require.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Auth:     AuthConfig{JWTSecret: "s"},
		Roster:   RosterConfig{MaxAttempts: 1},
		Tracing:  TracingConfig{SampleRate: 1},
	}
	require.NoError(t, valid.Validate())

	noDB := valid
	noDB.Database.URL = ""
	require.ErrorContains(t, noDB.Validate(), "DATABASE_URL")

	noSecret := valid
	noSecret.Auth.JWTSecret = ""
	require.ErrorContains(t, noSecret.Validate(), "JWT_SECRET")

	noAttempts := valid
	noAttempts.Roster.MaxAttempts = 0
	require.ErrorContains(t, noAttempts.Validate(), "ROSTER_MAX_ATTEMPTS")

	badRate := valid
	badRate.Tracing.SampleRate = 2
	require.ErrorContains(t, badRate.Validate(), "TRACING_SAMPLE_RATE")
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn"}, &buf)

	require.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	require.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := newLogger(LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
