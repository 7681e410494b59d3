package database

// Table names written by the recorder.
const (
	MetricsTable  = "server_metrics"
	ServicesTable = "service_status"
	LogsTable     = "system_logs"
)

// schema is applied in order by EnsureSchema. The hypertable calls are
// no-ops on a database that already has them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS server_metrics (
		time         TIMESTAMPTZ      NOT NULL,
		received_at  TIMESTAMPTZ      NOT NULL,
		target       TEXT             NOT NULL,
		cpu_usage    DOUBLE PRECISION NOT NULL,
		memory_usage DOUBLE PRECISION NOT NULL,
		disk_usage   DOUBLE PRECISION NOT NULL,
		load_1       DOUBLE PRECISION NOT NULL,
		load_5       DOUBLE PRECISION NOT NULL,
		load_15      DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS service_status (
		time         TIMESTAMPTZ      NOT NULL,
		received_at  TIMESTAMPTZ      NOT NULL,
		target       TEXT             NOT NULL,
		name         TEXT             NOT NULL,
		port         INTEGER          NOT NULL,
		pid          INTEGER          NOT NULL,
		status       TEXT             NOT NULL,
		cpu_usage    DOUBLE PRECISION NOT NULL,
		memory_usage DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		time        TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		target      TEXT        NOT NULL,
		created_at  TEXT        NOT NULL,
		log_type    TEXT        NOT NULL,
		severity    TEXT        NOT NULL,
		message     TEXT        NOT NULL
	)`,
	`SELECT create_hypertable('server_metrics', 'time', if_not_exists => TRUE)`,
	`SELECT create_hypertable('service_status', 'time', if_not_exists => TRUE)`,
	`SELECT create_hypertable('system_logs', 'time', if_not_exists => TRUE)`,
	`CREATE INDEX IF NOT EXISTS server_metrics_target_time ON server_metrics (target, time DESC)`,
	`CREATE INDEX IF NOT EXISTS service_status_target_time ON service_status (target, time DESC)`,
	`CREATE INDEX IF NOT EXISTS system_logs_target_time ON system_logs (target, time DESC)`,
}
