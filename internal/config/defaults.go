package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID     = "monitor"
	DefaultWSURL          = "ws://localhost:8000"
	DefaultConnectTimeout = 15 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultPingTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadLimit      = 10 * 1024 * 1024
	DefaultReleaseGrace   = 2 * time.Second
	DefaultLogRetention   = 1000
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultBatchSize      = 500
	DefaultFlushInterval  = 1 * time.Second
	DefaultBufferSize     = 10000
	DefaultHTTPPort       = 8080
)

// DefaultBackoffSchedule mirrors backoff.DefaultSchedule.
var DefaultBackoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

func (c *MonitorConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}
	if c.Dashboard.WSURL == "" {
		c.Dashboard.WSURL = DefaultWSURL
	}

	// Connections defaults
	if len(c.Connections.BackoffSchedule) == 0 {
		c.Connections.BackoffSchedule = append([]time.Duration(nil), DefaultBackoffSchedule...)
	}
	if c.Connections.ConnectTimeout == 0 {
		c.Connections.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.PingTimeout == 0 {
		c.Connections.PingTimeout = DefaultPingTimeout
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.ReadLimit == 0 {
		c.Connections.ReadLimit = DefaultReadLimit
	}
	if c.Connections.ReleaseGrace == 0 {
		c.Connections.ReleaseGrace = DefaultReleaseGrace
	}

	if c.Widgets.LogRetention == 0 {
		c.Widgets.LogRetention = DefaultLogRetention
	}

	// Recorder defaults
	applyDBDefaults(&c.Recorder.Database)
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
