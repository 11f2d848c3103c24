package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/storage"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "jobs.db")
	t.Setenv("JOBS_DATABASE_DRIVER", "sqlite")
	t.Setenv("JOBS_DATABASE_DSN", dsn)
	return dsn
}

func TestVersion(t *testing.T) {
	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "jobsd dev\n", out)
}

func TestMigrateAndStats(t *testing.T) {
	dsn := sqliteEnv(t)
	ctx := context.Background()

	_, err := run(t, ctx, "migrate")
	require.NoError(t, err)

	st, err := storage.Open(storage.DriverSQLite, dsn)
	require.NoError(t, err)
	job := aggregate.New("job-1", core.Metadata{}, t0)
	snap := job.Snapshot(t0)
	require.NoError(t, st.SaveSnapshot(ctx, &snap))
	require.NoError(t, st.Close())

	out, err := run(t, ctx, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "pending      1")
	assert.Contains(t, out, "in_progress  0")
}

func TestPurge(t *testing.T) {
	sqliteEnv(t)
	ctx := context.Background()
	_, err := run(t, ctx, "migrate")
	require.NoError(t, err)

	out, err := run(t, ctx, "purge", "--older-than", "1h")
	require.NoError(t, err)
	assert.Equal(t, "purged 0 jobs\n", out)

	_, err = run(t, ctx, "purge", "--older-than", "0s")
	assert.ErrorContains(t, err, "must be positive")
}

func TestStatsNeedsDatabase(t *testing.T) {
	t.Setenv("JOBS_DATABASE_DRIVER", "memory")
	_, err := run(t, context.Background(), "stats")
	assert.ErrorContains(t, err, "needs sqlite or postgres")
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("JOBS_LOG_FORMAT", "xml")
	_, err := run(t, context.Background(), "migrate")
	assert.ErrorContains(t, err, "log.format")
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("JOBS_DATABASE_DRIVER", "memory")
	t.Setenv("JOBS_HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("JOBS_HTTP_CORS_ORIGINS", "https://shop.example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := run(t, ctx, "serve")
	assert.NoError(t, err)
}
