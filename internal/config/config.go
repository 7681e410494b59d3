package config

import "time"

// MonitorConfig is the root configuration for a monitor instance.
type MonitorConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Connections ConnectionsConfig `yaml:"connections"`
	Targets     []string          `yaml:"targets"`
	Widgets     WidgetsConfig     `yaml:"widgets"`
	Recorder    RecorderConfig    `yaml:"recorder"`
	HTTP        HTTPConfig        `yaml:"http"`
}

// InstanceConfig identifies this monitor.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// DashboardConfig locates the dashboard backend.
type DashboardConfig struct {
	WSURL string `yaml:"ws_url"` // Base URL; endpoints are {ws_url}/ws/{target}
}

// ConnectionsConfig holds per-target connection settings.
type ConnectionsConfig struct {
	BackoffSchedule []time.Duration `yaml:"backoff_schedule"`
	Jitter          float64         `yaml:"jitter"` // Fraction of each step, 0 disables
	ConnectTimeout  time.Duration   `yaml:"connect_timeout"`
	PingInterval    time.Duration   `yaml:"ping_interval"`
	PingTimeout     time.Duration   `yaml:"ping_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ReadLimit       int64           `yaml:"read_limit"`
	ReleaseGrace    time.Duration   `yaml:"release_grace"`
}

// WidgetsConfig holds reference widget settings.
type WidgetsConfig struct {
	LogRetention int `yaml:"log_retention"`
}

// RecorderConfig holds settings for the optional TimescaleDB recorder.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HTTPConfig holds the health and API server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}
