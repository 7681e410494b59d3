package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/sitewatch/internal/router"
)

// Recorder consumes decoded messages and writes them to TimescaleDB in
// batches. Its Handle method is a bus handler; it only enqueues, so a
// slow database never blocks a connection's read loop.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger

	// Input from the listener buses
	input *Queue[router.Message]

	// Database
	db batchSender

	// Batching
	batch       rowBatch
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	consumeDone chan struct{}
	wg          sync.WaitGroup

	// Metrics
	metrics RecorderMetrics
}

// NewRecorder creates a new Recorder. db is usually a *pgxpool.Pool.
func NewRecorder(cfg RecorderConfig, db batchSender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultRecorderConfig().BatchSize
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultRecorderConfig().BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultRecorderConfig().FlushInterval
	}

	return &Recorder{
		cfg:    cfg,
		logger: logger,
		input:  NewQueue[router.Message](min(1024, cfg.BufferSize), cfg.BufferSize),
		db:     db,
	}
}

// Handle enqueues a message for recording. Unknown message kinds are
// ignored. When the buffer is full the message is dropped and counted.
func (w *Recorder) Handle(msg router.Message) error {
	if msg.Kind == router.KindUnknown {
		return nil
	}
	if !w.input.Send(msg) {
		w.logger.Debug("recorder buffer full, dropping message",
			"target", msg.Target,
			"kind", msg.Kind,
		)
	}
	return nil
}

// Start begins consuming messages and writing to the database.
func (w *Recorder) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)
	w.consumeDone = make(chan struct{})

	// Consumer goroutine
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("recorder started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop drains the buffer, stops the loops and flushes what is left. ctx
// bounds the drain and the final flush.
func (w *Recorder) Stop(ctx context.Context) error {
	w.logger.Info("stopping recorder")

	w.input.Close()

	if w.consumeDone != nil {
		select {
		case <-w.consumeDone:
		case <-ctx.Done():
			left := w.input.DrainTo(0)
			w.batchMu.Lock()
			w.metrics.Discarded += int64(len(left))
			w.batchMu.Unlock()
			w.logger.Warn("recorder drain timed out", "discarded", len(left))
		}
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}
	w.wg.Wait()

	// Final flush
	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	w.logger.Info("recorder stopped")
	return nil
}

// Stats returns current metrics.
func (w *Recorder) Stats() RecorderMetrics {
	qs := w.input.Stats()

	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	m := w.metrics
	m.Received = qs.TotalReceived
	m.Dropped = qs.Dropped
	return m
}

// consumeLoop reads from the input queue until it is closed and drained.
func (w *Recorder) consumeLoop() {
	defer close(w.consumeDone)

	for {
		msg, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleMessage(msg)
	}
}

// flushLoop periodically flushes the batch.
func (w *Recorder) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (w *Recorder) handleMessage(msg router.Message) {
	w.batchMu.Lock()
	w.transform(msg, &w.batch)
	shouldFlush := w.batch.len() >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a message to rows and appends them to b.
func (w *Recorder) transform(msg router.Message, b *rowBatch) {
	at := msg.SentAt
	if at.IsZero() {
		at = msg.ReceivedAt
	}

	switch p := msg.Payload.(type) {
	case router.MetricsPayload:
		m := p.Metrics
		b.metrics = append(b.metrics, metricsRow{
			Time:        at,
			ReceivedAt:  msg.ReceivedAt,
			Target:      msg.Target,
			CPUUsage:    m.CPUUsage,
			MemoryUsage: m.MemoryUsage,
			DiskUsage:   m.DiskUsage,
			Load1:       m.LoadAverage[0],
			Load5:       m.LoadAverage[1],
			Load15:      m.LoadAverage[2],
		})

	case router.ServicesPayload:
		for _, s := range p.Services {
			b.services = append(b.services, serviceRow{
				Time:        at,
				ReceivedAt:  msg.ReceivedAt,
				Target:      msg.Target,
				Name:        s.Name,
				Port:        s.Port,
				PID:         s.PID,
				Status:      s.Status,
				CPUUsage:    s.CPUUsage,
				MemoryUsage: s.MemoryUsage,
			})
		}

	case router.LogsPayload:
		for _, r := range p.Logs {
			t, ok := r.Time()
			if !ok {
				t = at
			}
			b.logs = append(b.logs, logRow{
				Time:       t,
				ReceivedAt: msg.ReceivedAt,
				Target:     msg.Target,
				CreatedAt:  r.CreatedAt,
				LogType:    r.LogType,
				Severity:   r.Severity,
				Message:    r.Message,
			})
		}
	}
}

// flush writes the current batch to the database.
func (w *Recorder) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if w.batch.len() == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = rowBatch{}
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", batch.len())
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.MetricsRows += int64(len(batch.metrics))
	w.metrics.ServiceRows += int64(len(batch.services))
	w.metrics.LogRows += int64(len(batch.logs))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed telemetry",
		"metrics", len(batch.metrics),
		"services", len(batch.services),
		"logs", len(batch.logs),
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert queues every row on one pgx.Batch and checks each result.
func (w *Recorder) batchInsert(ctx context.Context, rows rowBatch) error {
	if w.db == nil {
		return fmt.Errorf("no database configured")
	}

	batch := &pgx.Batch{}
	for _, r := range rows.metrics {
		batch.Queue(`
			INSERT INTO server_metrics (time, received_at, target, cpu_usage, memory_usage, disk_usage, load_1, load_5, load_15)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.Time, r.ReceivedAt, r.Target, r.CPUUsage, r.MemoryUsage, r.DiskUsage, r.Load1, r.Load5, r.Load15)
	}
	for _, r := range rows.services {
		batch.Queue(`
			INSERT INTO service_status (time, received_at, target, name, port, pid, status, cpu_usage, memory_usage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.Time, r.ReceivedAt, r.Target, r.Name, r.Port, r.PID, r.Status, r.CPUUsage, r.MemoryUsage)
	}
	for _, r := range rows.logs {
		batch.Queue(`
			INSERT INTO system_logs (time, received_at, target, created_at, log_type, severity, message)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.Time, r.ReceivedAt, r.Target, r.CreatedAt, r.LogType, r.Severity, r.Message)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
