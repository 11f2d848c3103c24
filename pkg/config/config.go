// Package config loads jobsd configuration from an optional YAML file and
// JOBS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdziat/service-jobs/pkg/schedule"
	"github.com/jdziat/service-jobs/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. JOBS_HTTP_ADDR.
const EnvPrefix = "JOBS"

// DriverMemory keeps jobs in memory only.
const DriverMemory = "memory"

// Config is the full jobsd configuration.
type Config struct {
	HTTP     HTTP
	Database Database
	Metrics  Metrics
	Watchdog Watchdog
	Persist  Persist
	Log      Log
}

// HTTP configures the API listener.
type HTTP struct {
	Addr            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Database configures job persistence.
type Database struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool
	Path    string
}

// Watchdog configures the stale session scan.
type Watchdog struct {
	Enabled   bool
	Schedule  string
	Threshold time.Duration
}

// Persist configures snapshot save retries.
type Persist struct {
	MaxAttempts int
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.cors_origins", []string{})

	pool := storage.DefaultPoolConfig()
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.dsn", "service-jobs.db")
	v.SetDefault("database.max_open_conns", pool.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", pool.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", pool.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", pool.ConnMaxIdleTime)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.schedule", "*/15 * * * *")
	v.SetDefault("watchdog.threshold", 24*time.Hour)

	v.SetDefault("persist.max_attempts", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads configPath when it is not empty, otherwise looks for
// jobsd.yaml in the working directory and /etc/service-jobs. A missing
// search-path file is not an error. Environment variables override both.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("jobsd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/service-jobs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTP{
			Addr:            v.GetString("http.addr"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			CORSOrigins:     v.GetStringSlice("http.cors_origins"),
		},
		Database: Database{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
		Watchdog: Watchdog{
			Enabled:   v.GetBool("watchdog.enabled"),
			Schedule:  v.GetString("watchdog.schedule"),
			Threshold: v.GetDuration("watchdog.threshold"),
		},
		Persist: Persist{
			MaxAttempts: v.GetInt("persist.max_attempts"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{field}, args...)...))
	}

	if c.HTTP.Addr == "" {
		add("http.addr", "required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		add("http.shutdown_timeout", "must be positive")
	}

	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
		if c.Database.DSN == "" {
			add("database.dsn", "required for driver %s", c.Database.Driver)
		}
	case DriverMemory:
	default:
		add("database.driver", "must be one of sqlite, postgres, memory (got %q)", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 {
		add("database.max_open_conns", "must not be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		add("database.max_idle_conns", "must not exceed database.max_open_conns")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path", "must start with /")
	}

	if c.Watchdog.Enabled {
		if _, err := schedule.ParseCron(c.Watchdog.Schedule); err != nil {
			add("watchdog.schedule", "%v", err)
		}
		if c.Watchdog.Threshold <= 0 {
			add("watchdog.threshold", "must be positive")
		}
	}

	if c.Persist.MaxAttempts < 1 {
		add("persist.max_attempts", "must be at least 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		add("log.format", "must be json or text (got %q)", c.Log.Format)
	}

	return errors.Join(errs...)
}

// PoolConfig returns the database pool settings.
func (d Database) PoolConfig() storage.PoolConfig {
	return storage.PoolConfig{
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}
