package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/sitewatch/internal/registry"
	"github.com/rickgao/sitewatch/internal/version"
	"github.com/rickgao/sitewatch/internal/writer"
)

// controller is the part of the registry the HTTP API uses.
type controller interface {
	Status() []registry.TargetStatus
	ForceDisconnect(target string)
	Connect(target string) error
}

// createHandler creates the HTTP handler for health checks and widget state.
func createHandler(
	ctl controller,
	panels map[string]*targetWidgets,
	recorder *writer.Recorder,
	ping func(context.Context) error,
	logger *slog.Logger,
) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                  `json:"status"`
			Targets    []registry.TargetStatus `json:"targets"`
			Components map[string]any          `json:"components"`
		}{
			Status:     "healthy",
			Targets:    ctl.Status(),
			Components: make(map[string]any),
		}

		connected := 0
		for _, t := range health.Targets {
			if t.Connected {
				connected++
			}
		}
		health.Components["connections"] = map[string]int{
			"targets":   len(health.Targets),
			"connected": connected,
		}
		if connected < len(health.Targets) {
			health.Status = "degraded"
		}

		if ping != nil {
			if err := ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}
		if recorder != nil {
			health.Components["recorder"] = recorder.Stats()
		}

		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Get())
	})

	mux.HandleFunc("GET /targets/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		if tw := lookup(w, r, panels); tw != nil {
			writeJSON(w, http.StatusOK, tw.metrics.Snapshot())
		}
	})

	mux.HandleFunc("GET /targets/{id}/services", func(w http.ResponseWriter, r *http.Request) {
		if tw := lookup(w, r, panels); tw != nil {
			writeJSON(w, http.StatusOK, tw.services.Snapshot())
		}
	})

	mux.HandleFunc("GET /targets/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		tw := lookup(w, r, panels)
		if tw == nil {
			return
		}

		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		records := tw.logs.Records(r.URL.Query().Get("severity"), limit)
		writeJSON(w, http.StatusOK, map[string]any{
			"target": tw.target,
			"count":  len(records),
			"stats":  tw.logs.Stats(),
			"logs":   records,
		})
	})

	mux.HandleFunc("POST /targets/{id}/reconnect", func(w http.ResponseWriter, r *http.Request) {
		tw := lookup(w, r, panels)
		if tw == nil {
			return
		}

		ctl.ForceDisconnect(tw.target)
		if err := ctl.Connect(tw.target); err != nil {
			logger.Warn("reconnect failed", "target", tw.target, "error", err)
			status := http.StatusInternalServerError
			if errors.Is(err, registry.ErrClosed) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, err.Error())
			return
		}

		logger.Info("reconnect requested", "target", tw.target, "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusAccepted)
	})

	return mux
}

func lookup(w http.ResponseWriter, r *http.Request, panels map[string]*targetWidgets) *targetWidgets {
	tw, ok := panels[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown target")
		return nil
	}
	return tw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
