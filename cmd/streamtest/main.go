// streamtest subscribes to one target and streams decoded messages to the console.
// Usage: go run ./cmd/streamtest --url ws://localhost:8000 --target 1
//
// With --config, the dashboard URL and connection settings come from the
// monitor config file and --url is ignored.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/sitewatch/internal/backoff"
	"github.com/rickgao/sitewatch/internal/config"
	"github.com/rickgao/sitewatch/internal/connection"
	"github.com/rickgao/sitewatch/internal/registry"
	"github.com/rickgao/sitewatch/internal/router"
	"github.com/rickgao/sitewatch/internal/version"
)

func main() {
	configPath := flag.String("config", "", "optional monitor config file")
	baseURL := flag.String("url", config.DefaultWSURL, "dashboard base URL")
	target := flag.String("target", "1", "target id to stream")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	clientCfg := connection.DefaultClientConfig()
	regCfg := registry.DefaultConfig()
	regCfg.BaseURL = *baseURL

	if *configPath != "" {
		cfg, err := config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cc := cfg.Connections
		policy, err := backoff.New(cc.BackoffSchedule)
		if err != nil {
			logger.Error("invalid backoff schedule", "error", err)
			os.Exit(1)
		}

		clientCfg = connection.ClientConfig{
			HandshakeTimeout: cc.ConnectTimeout,
			PingInterval:     cc.PingInterval,
			PingTimeout:      cc.PingTimeout,
			WriteTimeout:     cc.WriteTimeout,
			ReadLimit:        cc.ReadLimit,
		}
		regCfg = registry.Config{
			BaseURL:        cfg.Dashboard.WSURL,
			Policy:         policy,
			ConnectTimeout: cc.ConnectTimeout,
			ReleaseGrace:   cc.ReleaseGrace,
		}
	}
	clientCfg.Header = http.Header{"User-Agent": []string{version.UserAgent()}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	dialer := connection.NewWebSocketDialer(clientCfg, logger)
	reg, err := registry.New(regCfg, dialer, logger)
	if err != nil {
		logger.Error("failed to create registry", "error", err)
		os.Exit(1)
	}

	sub, err := reg.Subscribe(*target, func(msg router.Message) error {
		printMessage(msg, *verbose)
		return nil
	})
	if err != nil {
		logger.Error("failed to subscribe", "target", *target, "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, st := range reg.Status() {
					logger.Info("stats",
						"target", st.Target,
						"state", st.Connection.State,
						"retry_attempt", st.Connection.RetryAttempt,
						"opens", st.Connection.Opens,
						"frames", st.Connection.FramesReceived,
						"decode_errors", st.Connection.DecodeErrors,
						"delivered", st.Connection.MessagesDelivered,
						"handler_errors", st.Bus.HandlerErrors,
					)
				}
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop",
		"dashboard", regCfg.BaseURL,
		"target", *target,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	reg.Unsubscribe(sub)
	if err := reg.Close(); err != nil {
		logger.Warn("close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func printMessage(msg router.Message, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg.Payload, "", "  ")
		fmt.Printf("[%s] target=%s %s\n", kindLabel(msg.Kind), msg.Target, data)
		return
	}

	switch p := msg.Payload.(type) {
	case router.MetricsPayload:
		m := p.Metrics
		fmt.Printf("[METRICS] target=%s cpu=%.1f%% mem=%.1f%% disk=%.1f%% load=%s\n",
			msg.Target, m.CPUUsage, m.MemoryUsage, m.DiskUsage, m.LoadAverage)
	case router.ServicesPayload:
		running := 0
		for _, s := range p.Services {
			if s.Running() {
				running++
			}
		}
		fmt.Printf("[SERVICES] target=%s total=%d running=%d\n", msg.Target, len(p.Services), running)
	case router.LogsPayload:
		for _, r := range p.Logs {
			fmt.Printf("[LOG] target=%s %s %s/%s %s\n", msg.Target, r.CreatedAt, r.LogType, r.Severity, r.Message)
		}
	case router.UnknownPayload:
		fmt.Printf("[UNKNOWN] target=%s type=%q bytes=%d\n", msg.Target, p.Type, len(p.Raw))
	}
}

func kindLabel(k router.Kind) string {
	switch k {
	case router.KindMetrics:
		return "METRICS"
	case router.KindServices:
		return "SERVICES"
	case router.KindLogs:
		return "LOGS"
	default:
		return "UNKNOWN"
	}
}
