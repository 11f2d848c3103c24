// Package watchdog reports work sessions that have stayed open suspiciously
// long, usually a technician who forgot to clock out.
//
// The watchdog only reads. Labor past the per-session cap is not counted
// anyway, so closing sessions is left to people.
package watchdog

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/schedule"
)

// Source provides the jobs to scan.
type Source interface {
	Snapshots(now time.Time) []core.JobSnapshot
}

// Config holds watchdog configuration.
type Config struct {
	// Schedule decides when scans run. Default: every 15 minutes.
	Schedule schedule.Schedule

	// Threshold is the age after which an open session is reported.
	// Default: 24 hours.
	Threshold time.Duration
}

// DefaultConfig returns the default watchdog configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:  schedule.Cron("*/15 * * * *"),
		Threshold: 24 * time.Hour,
	}
}

// StaleSession is one open session older than the threshold.
type StaleSession struct {
	JobID        string
	TechnicianID string
	Since        time.Time
	Open         time.Duration
}

// Watchdog scans a Source for stale sessions.
type Watchdog struct {
	config Config
	source Source
	logger *slog.Logger
	sink   metrics.Sink
	clock  func() time.Time
}

// New creates a Watchdog. A nil logger or sink falls back to slog.Default()
// and metrics.NoopSink.
func New(config Config, source Source, logger *slog.Logger, sink metrics.Sink) *Watchdog {
	def := DefaultConfig()
	if config.Schedule == nil {
		config.Schedule = def.Schedule
	}
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Watchdog{
		config: config,
		source: source,
		logger: logger,
		sink:   sink,
		clock:  time.Now,
	}
}

// Run scans once immediately and then on the schedule. It blocks until ctx
// is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("watchdog started", "threshold", w.config.Threshold)
	w.Scan()
	err := schedule.Run(ctx, w.config.Schedule, func(context.Context) { w.Scan() })
	w.logger.Info("watchdog stopped")
	return err
}

// Scan reports every open session older than the threshold, oldest first.
func (w *Watchdog) Scan() []StaleSession {
	now := w.clock()
	cutoff := now.Add(-w.config.Threshold)

	var stale []StaleSession
	for _, snap := range w.source.Snapshots(now) {
		if !snap.HasOpenSessions() {
			continue
		}
		for _, s := range snap.Sessions {
			if !s.Open() || s.StartTime.After(cutoff) {
				continue
			}
			stale = append(stale, StaleSession{
				JobID:        snap.ID,
				TechnicianID: s.TechnicianID,
				Since:        s.StartTime,
				Open:         now.Sub(s.StartTime),
			})
		}
	}
	slices.SortFunc(stale, func(a, b StaleSession) int {
		if c := a.Since.Compare(b.Since); c != 0 {
			return c
		}
		if c := strings.Compare(a.JobID, b.JobID); c != 0 {
			return c
		}
		return strings.Compare(a.TechnicianID, b.TechnicianID)
	})

	for _, s := range stale {
		w.logger.Warn("session open past threshold",
			"job_id", s.JobID,
			"technician_id", s.TechnicianID,
			"since", s.Since,
			"open_for", s.Open.Round(time.Minute),
		)
	}
	w.sink.StaleSessionsUpdate(len(stale))
	return stale
}
