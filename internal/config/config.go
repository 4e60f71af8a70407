// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Roster      RosterConfig
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

type ServerConfig struct {
	Host               string   `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port               int      `env:"PORT" envDefault:"8080"`
	CORSOrigins        []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LoginRatePerMinute int      `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"event-manager"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"5m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"24h"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type TracingConfig struct {
	Enabled     bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Exporter    string  `env:"TRACING_EXPORTER" envDefault:"stdout"`
	Endpoint    string  `env:"TRACING_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName string  `env:"TRACING_SERVICE_NAME" envDefault:"event-manager"`
	SampleRate  float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// RosterConfig bounds the retries around a contended roster write.
type RosterConfig struct {
	MaxAttempts int           `env:"ROSTER_MAX_ATTEMPTS" envDefault:"3"`
	Backoff     time.Duration `env:"ROSTER_RETRY_BACKOFF" envDefault:"20ms"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Roster.MaxAttempts < 1 {
		return fmt.Errorf("ROSTER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
