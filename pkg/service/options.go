package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/retry"
)

// Option configures a Service.
type Option interface {
	applyService(*Service)
}

type optionFunc func(*Service)

func (f optionFunc) applyService(s *Service) { f(s) }

// WithStorage persists every snapshot to st and loads unknown jobs from it.
func WithStorage(st core.Storage) Option {
	return optionFunc(func(s *Service) {
		s.storage = st
	})
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Service) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithMetrics sets the metrics sink. Default: metrics.NoopSink.
func WithMetrics(sink metrics.Sink) Option {
	return optionFunc(func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	})
}

// WithClock sets the clock used for job creation times and for measuring
// open sessions in reads. Operation timestamps always come from the caller.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(s *Service) {
		if now != nil {
			s.now = now
		}
	})
}

// WithPersistRetry sets the backoff used when saving snapshots.
func WithPersistRetry(cfg retry.Config) Option {
	return optionFunc(func(s *Service) {
		s.persistRetry = cfg
	})
}

// WithIDGenerator sets the job id generator. Default: random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return optionFunc(func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	})
}

// WithEventBuffer sets the channel capacity of each Events subscriber.
// Default: 100.
func WithEventBuffer(n int) Option {
	return optionFunc(func(s *Service) {
		if n > 0 {
			s.eventBuffer = n
		}
	})
}

func defaultID() string {
	return uuid.New().String()
}
