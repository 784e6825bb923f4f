package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is read from the process environment. Every field has a default
// except the database URL.
type Config struct {
	Environment string `env:"APP_ENV" env-default:"development"`
	Port        string `env:"PORT" env-default:"4000"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"dev"`
	ServiceName string `env:"SERVICE_NAME" env-default:"CGL Backend"`
	SentryDSN   string `env:"SENTRY_DSN"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	CORS struct {
		Origins []string `env:"CORS_ORIGINS" env-default:"*" env-separator:","`
		Methods []string `env:"CORS_METHODS" env-default:"GET,POST,PUT,PATCH,DELETE,OPTIONS" env-separator:","`
		Headers []string `env:"CORS_HEADERS" env-default:"Content-Type,Authorization" env-separator:","`
	}

	Body struct {
		// MaxBytes bounds decoded JSON and form bodies.
		MaxBytes int64 `env:"BODY_LIMIT_BYTES" env-default:"1048576"`
	}

	Database struct {
		URL             string        `env:"DATABASE_URL"`
		MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
		MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
		ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
		ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"10m"`
		ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" env-default:"10s"`
		RunMigrations   bool          `env:"RUN_MIGRATIONS_ON_CONNECT" env-default:"true"`
	}
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	if c.Database.URL == "" {
		return fmt.Errorf("missing required env: DATABASE_URL")
	}
	if c.Body.MaxBytes <= 0 {
		return fmt.Errorf("BODY_LIMIT_BYTES must be positive")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive")
	}
	c.CORS.Origins = trimAll(c.CORS.Origins)
	c.CORS.Methods = trimAll(c.CORS.Methods)
	c.CORS.Headers = trimAll(c.CORS.Headers)
	return nil
}

// Addr is the listen address for the standalone server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
