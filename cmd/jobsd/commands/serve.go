package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/service-jobs/pkg/config"
	"github.com/jdziat/service-jobs/pkg/httpapi"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/retry"
	"github.com/jdziat/service-jobs/pkg/schedule"
	"github.com/jdziat/service-jobs/pkg/service"
	"github.com/jdziat/service-jobs/pkg/watchdog"
)

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())

	opts := []service.Option{service.WithLogger(logger)}

	st, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		opts = append(opts, service.WithStorage(st))
	}

	persist := retry.DefaultConfig()
	persist.MaxAttempts = cfg.Persist.MaxAttempts
	opts = append(opts, service.WithPersistRetry(persist))

	var sink metrics.Sink = metrics.NewNoopSink()
	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sink = metrics.NewPrometheusSink(reg)
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	opts = append(opts, service.WithMetrics(sink))

	svc := service.New(opts...)
	mux.Handle("/", httpapi.NewHandler(svc, httpapi.WithLogger(logger)))

	var handler http.Handler = mux
	if len(cfg.HTTP.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.HTTP.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", httpapi.ActorHeader},
		}).Handler(mux)
	}

	var wd *watchdog.Watchdog
	if cfg.Watchdog.Enabled {
		sched, err := schedule.ParseCron(cfg.Watchdog.Schedule)
		if err != nil {
			return err
		}
		wd = watchdog.New(watchdog.Config{Schedule: sched, Threshold: cfg.Watchdog.Threshold}, svc, logger, sink)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if wd != nil {
		g.Go(func() error {
			if err := wd.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
