package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// RecorderConfig holds batching settings for the Recorder.
type RecorderConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize bounds the messages waiting to be batched. Messages
	// arriving while it is full are dropped.
	BufferSize int
}

// DefaultRecorderConfig returns sensible defaults.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    10000,
	}
}

// RecorderMetrics holds counters for a Recorder.
type RecorderMetrics struct {
	Received    int64 // Messages accepted into the buffer
	Dropped     int64 // Messages dropped because the buffer was full
	Discarded   int64 // Messages still buffered when Stop gave up draining
	MetricsRows int64
	ServiceRows int64
	LogRows     int64
	Errors      int64
	Flushes     int64
}

// batchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// metricsRow represents a row for the server_metrics table.
type metricsRow struct {
	Time        time.Time
	ReceivedAt  time.Time
	Target      string
	CPUUsage    float64
	MemoryUsage float64
	DiskUsage   float64
	Load1       float64
	Load5       float64
	Load15      float64
}

// serviceRow represents a row for the service_status table.
type serviceRow struct {
	Time        time.Time
	ReceivedAt  time.Time
	Target      string
	Name        string
	Port        int
	PID         int
	Status      string
	CPUUsage    float64
	MemoryUsage float64
}

// logRow represents a row for the system_logs table.
type logRow struct {
	Time       time.Time // Parsed created_at, or the message time if unparseable
	ReceivedAt time.Time
	Target     string
	CreatedAt  string // As sent by the agent
	LogType    string
	Severity   string
	Message    string
}

// rowBatch accumulates rows for all three tables.
type rowBatch struct {
	metrics  []metricsRow
	services []serviceRow
	logs     []logRow
}

func (b *rowBatch) len() int {
	return len(b.metrics) + len(b.services) + len(b.logs)
}
