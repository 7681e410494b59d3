// monitor keeps live telemetry connections to every configured target,
// feeds the reference widgets and optionally records the stream to
// TimescaleDB. Widget state and connection health are served over HTTP.
// Usage: go run ./cmd/monitor --config configs/monitor.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/sitewatch/internal/backoff"
	"github.com/rickgao/sitewatch/internal/bus"
	"github.com/rickgao/sitewatch/internal/config"
	"github.com/rickgao/sitewatch/internal/connection"
	"github.com/rickgao/sitewatch/internal/database"
	"github.com/rickgao/sitewatch/internal/registry"
	"github.com/rickgao/sitewatch/internal/version"
	"github.com/rickgao/sitewatch/internal/widget"
	"github.com/rickgao/sitewatch/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/monitor.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	jsonLogs := flag.Bool("json", false, "log as JSON")
	flag.Parse()

	logger, err := newLogger(*logLevel, *jsonLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting monitor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"dashboard", cfg.Dashboard.WSURL,
		"targets", len(cfg.Targets),
		"recorder", cfg.Recorder.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("monitor failed", "error", err)
		os.Exit(1)
	}

	logger.Info("monitor stopped")
}

func newLogger(level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

func run(ctx context.Context, cfg *config.MonitorConfig, logger *slog.Logger) error {
	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("registry close error", "error", err)
		}
	}()

	// Widgets for every target
	panels := make(map[string]*targetWidgets, len(cfg.Targets))
	for _, target := range cfg.Targets {
		tw := newTargetWidgets(target, cfg.Widgets.LogRetention)
		if err := tw.subscribe(reg); err != nil {
			return fmt.Errorf("subscribe widgets for %s: %w", target, err)
		}
		panels[target] = tw
	}

	// Optional recorder
	var (
		pool     *pgxpool.Pool
		recorder *writer.Recorder
	)
	if cfg.Recorder.Enabled {
		pool, recorder, err = startRecorder(ctx, cfg, reg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := recorder.Stop(stopCtx); err != nil {
				logger.Warn("recorder stop error", "error", err)
			}
		}()
	}

	var ping func(context.Context) error
	if pool != nil {
		ping = pool.Ping
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           createHandler(reg, panels, recorder, ping, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("monitor running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	return g.Wait()
}

func newRegistry(cfg *config.MonitorConfig, logger *slog.Logger) (*registry.Registry, error) {
	cc := cfg.Connections

	policy, err := backoff.New(cc.BackoffSchedule)
	if err != nil {
		return nil, fmt.Errorf("backoff schedule: %w", err)
	}
	if cc.Jitter > 0 {
		if policy, err = policy.WithJitter(cc.Jitter); err != nil {
			return nil, fmt.Errorf("backoff jitter: %w", err)
		}
	}

	dialer := connection.NewWebSocketDialer(connection.ClientConfig{
		HandshakeTimeout: cc.ConnectTimeout,
		PingInterval:     cc.PingInterval,
		PingTimeout:      cc.PingTimeout,
		WriteTimeout:     cc.WriteTimeout,
		ReadLimit:        cc.ReadLimit,
		Header:           http.Header{"User-Agent": []string{version.UserAgent()}},
	}, logger)

	return registry.New(registry.Config{
		BaseURL:        cfg.Dashboard.WSURL,
		Policy:         policy,
		ConnectTimeout: cc.ConnectTimeout,
		ReleaseGrace:   cc.ReleaseGrace,
	}, dialer, logger)
}

func startRecorder(ctx context.Context, cfg *config.MonitorConfig, reg *registry.Registry, logger *slog.Logger) (*pgxpool.Pool, *writer.Recorder, error) {
	db := cfg.Recorder.Database
	logger.Info("connecting to database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return nil, nil, fmt.Errorf("connect recorder database: %w", err)
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	recorder := writer.NewRecorder(writer.RecorderConfig{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
	}, pool, logger)

	if err := recorder.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("start recorder: %w", err)
	}

	for _, target := range cfg.Targets {
		if _, err := reg.Subscribe(target, recorder.Handle); err != nil {
			recorder.Stop(context.Background())
			pool.Close()
			return nil, nil, fmt.Errorf("subscribe recorder to %s: %w", target, err)
		}
	}

	logger.Info("recorder attached", "targets", len(cfg.Targets))
	return pool, recorder, nil
}

// targetWidgets groups the reference widgets for one target.
type targetWidgets struct {
	target   string
	metrics  *widget.MetricsPanel
	services *widget.ServiceTable
	logs     *widget.LogTail
}

func newTargetWidgets(target string, retention int) *targetWidgets {
	return &targetWidgets{
		target:   target,
		metrics:  widget.NewMetricsPanel(target),
		services: widget.NewServiceTable(target),
		logs:     widget.NewLogTail(target, retention),
	}
}

func (tw *targetWidgets) subscribe(reg *registry.Registry) error {
	for _, h := range []bus.Handler{tw.metrics.Handle, tw.services.Handle, tw.logs.Handle} {
		if _, err := reg.Subscribe(tw.target, h); err != nil {
			return err
		}
	}
	return nil
}
