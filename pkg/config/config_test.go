package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "*/15 * * * *", cfg.Watchdog.Schedule)
	assert.Equal(t, 24*time.Hour, cfg.Watchdog.Threshold)
	assert.Equal(t, 5, cfg.Persist.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
  shutdown_timeout: 3s
  cors_origins:
    - https://shop.example.com
database:
  driver: postgres
  dsn: postgres://jobs@localhost/jobs
  max_open_conns: 40
watchdog:
  schedule: "@hourly"
  threshold: 12h
log:
  level: DEBUG
  format: text
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10, cfg.Database.MaxIdleConns, "unset keys keep defaults")
	assert.Equal(t, 12*time.Hour, cfg.Watchdog.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \":9090\"\n")
	t.Setenv("JOBS_HTTP_ADDR", ":7070")
	t.Setenv("JOBS_DATABASE_DRIVER", "memory")
	t.Setenv("JOBS_WATCHDOG_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.False(t, cfg.Watchdog.Enabled)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.HTTP.Addr = ""
	cfg.Database.Driver = "oracle"
	cfg.Watchdog.Schedule = "not a cron"
	cfg.Persist.MaxAttempts = 0
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, field := range []string{"http.addr", "database.driver", "watchdog.schedule", "persist.max_attempts", "log.format"} {
		assert.Contains(t, msg, field)
	}
}

func TestValidate_DSNRequired(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = ""
	assert.ErrorContains(t, cfg.Validate(), "database.dsn")

	cfg.Database.Driver = DriverMemory
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DisabledWatchdogSkipsSchedule(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Watchdog.Enabled = false
	cfg.Watchdog.Schedule = "garbage"
	assert.NoError(t, cfg.Validate())
}

func TestDatabase_PoolConfig(t *testing.T) {
	d := Database{MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}
	pool := d.PoolConfig()
	assert.Equal(t, 5, pool.MaxOpenConns)
	assert.Equal(t, 2, pool.MaxIdleConns)
	assert.Equal(t, time.Minute, pool.ConnMaxLifetime)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Log{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "job_id", "j1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"job_id":"j1"`)

	assert.Equal(t, slog.LevelDebug, Log{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Log{Level: "loud"}.SlogLevel())
}
