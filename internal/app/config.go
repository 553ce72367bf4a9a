package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/profitboard/internal/platform/db"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	DBSchema            string        `envconfig:"DB_SCHEMA" default:"mirakl"`
	DBMaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	DBKeepAliveIdle     time.Duration `envconfig:"DB_KEEPALIVE_IDLE" default:"30s"`
	DBKeepAliveInterval time.Duration `envconfig:"DB_KEEPALIVE_INTERVAL" default:"10s"`
	DBKeepAliveCount    int           `envconfig:"DB_KEEPALIVE_COUNT" default:"5"`
	DBMaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	DBMaxConnIdleTime   time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	DBHealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"30s"`
	DBStatementTimeout  time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"20s"`
	ReportTimezone      string        `envconfig:"REPORT_TIMEZONE" default:"UTC"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	CacheBackend string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"300s"`

	AuthCredentialsFile  string `envconfig:"AUTH_CREDENTIALS_FILE"`
	AuthCookieName       string `envconfig:"AUTH_COOKIE_NAME" default:"mirakl_auth"`
	AuthCookieKey        string `envconfig:"AUTH_COOKIE_KEY"`
	AuthCookieExpiryDays int    `envconfig:"AUTH_COOKIE_EXPIRY_DAYS" default:"30"`

	CSRFSecret string `envconfig:"CSRF_SECRET"`

	TopSKULimit       int `envconfig:"DASHBOARD_TOP_SKU_LIMIT" default:"25"`
	PageSize          int `envconfig:"DASHBOARD_PAGE_SIZE" default:"50"`
	DefaultWindowDays int `envconfig:"DASHBOARD_DEFAULT_WINDOW_DAYS" default:"30"`

	WarmupCron           string `envconfig:"WARMUP_CRON" default:"15 * * * *"`
	WarmupPerMarketplace bool   `envconfig:"WARMUP_PER_MARKETPLACE" default:"false"`
	WorkerMetricsAddr    string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	WorkerConcurrency    int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
}

// ConfigError reports configuration that prevents the process from starting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LoadConfig reads configuration for the HTTP server from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWorkerConfig reads configuration for the background worker, which needs
// neither the credential store nor the cookie secrets.
func LoadWorkerConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := errors.Join(cfg.validateStore()...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configuration the process cannot start with.
func (c *Config) Validate() error {
	errs := c.validateStore()
	if strings.TrimSpace(c.AuthCredentialsFile) == "" {
		errs = append(errs, &ConfigError{Field: "AUTH_CREDENTIALS_FILE", Reason: "must be provided"})
	}
	if len(c.AuthCookieKey) < 16 {
		errs = append(errs, &ConfigError{Field: "AUTH_COOKIE_KEY", Reason: "must be at least 16 characters"})
	}
	if c.AuthCookieExpiryDays <= 0 {
		errs = append(errs, &ConfigError{Field: "AUTH_COOKIE_EXPIRY_DAYS", Reason: "must be positive"})
	}
	if c.CSRFSecret == "" {
		errs = append(errs, &ConfigError{Field: "CSRF_SECRET", Reason: "must be provided"})
	}
	return errors.Join(errs...)
}

func (c *Config) validateStore() []error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, &ConfigError{Field: "DATABASE_URL", Reason: "must be provided"})
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		errs = append(errs, &ConfigError{Field: "CACHE_BACKEND", Reason: "must be memory or redis"})
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, &ConfigError{Field: "CACHE_TTL", Reason: "must be positive"})
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		errs = append(errs, &ConfigError{Field: "REPORT_TIMEZONE", Reason: err.Error()})
	}
	return errs
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// SessionTTL converts the cookie expiry from days to a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.AuthCookieExpiryDays) * 24 * time.Hour
}

// DB maps the connection settings onto the platform/db configuration.
func (c *Config) DB() db.Config {
	return db.Config{
		DSN:               c.DatabaseURL,
		MaxConns:          c.DBMaxConns,
		MinConns:          c.DBMinConns,
		KeepAliveIdle:     c.DBKeepAliveIdle,
		KeepAliveInterval: c.DBKeepAliveInterval,
		KeepAliveCount:    c.DBKeepAliveCount,
		MaxConnLifetime:   c.DBMaxConnLifetime,
		MaxConnIdleTime:   c.DBMaxConnIdleTime,
		HealthCheckPeriod: c.DBHealthCheckPeriod,
		StatementTimeout:  c.DBStatementTimeout,
		Timezone:          c.ReportTimezone,
	}
}
