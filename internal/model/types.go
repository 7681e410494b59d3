package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

// Metrics is one host utilization sample.
type Metrics struct {
	CPUUsage    float64     `json:"cpu_usage"`    // Percent
	MemoryUsage float64     `json:"memory_usage"` // Percent
	DiskUsage   float64     `json:"disk_usage"`   // Percent
	LoadAverage LoadAverage `json:"load_average"` // 1, 5, 15 minute load
}

// LoadAverage holds the 1, 5 and 15 minute load averages.
//
// Agents send it either as a JSON array of up to three numbers or as a
// comma separated string ("0.52, 0.58, 0.59").
type LoadAverage [3]float64

// UnmarshalJSON accepts both the array and the string form.
func (l *LoadAverage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var nums []float64
	if err := json.Unmarshal(data, &nums); err == nil {
		if len(nums) > 3 {
			return fmt.Errorf("load_average: expected at most 3 values, got %d", len(nums))
		}
		*l = LoadAverage{}
		copy(l[:], nums)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("load_average: expected array or string: %w", err)
	}

	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return fmt.Errorf("load_average: expected at most 3 values, got %d", len(parts))
	}
	var out LoadAverage
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("load_average: parse %q: %w", p, err)
		}
		out[i] = v
	}
	*l = out
	return nil
}

// String formats the load the way the dashboard shows it.
func (l LoadAverage) String() string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", l[0], l[1], l[2])
}

// -----------------------------------------------------------------------------
// Services
// -----------------------------------------------------------------------------

// ServiceStatusRunning is the status reported for a healthy service.
const ServiceStatusRunning = "running"

// ServiceStatus is the state of one service on a monitored server.
type ServiceStatus struct {
	Name        string  `json:"name"`
	Port        int     `json:"port"`
	PID         int     `json:"pid"`
	Status      string  `json:"status"`       // "running", "stopped", ...
	CPUUsage    float64 `json:"cpu_usage"`    // Percent
	MemoryUsage float64 `json:"memory_usage"` // Percent
}

// Running reports whether the service is up.
func (s ServiceStatus) Running() bool {
	return s.Status == ServiceStatusRunning
}

// -----------------------------------------------------------------------------
// Logs
// -----------------------------------------------------------------------------

// LogRecord is one system log line collected by the agent.
type LogRecord struct {
	CreatedAt string `json:"created_at"` // Agent timestamp, usually ISO 8601 without zone
	LogType   string `json:"log_type"`   // Category, e.g. "system", "nginx"
	Severity  string `json:"severity"`   // "info", "warning", "error", ...
	Message   string `json:"message"`
}

// logTimeLayouts are tried in order by LogRecord.Time.
var logTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time parses CreatedAt. Timestamps without a zone are read as UTC.
func (r LogRecord) Time() (time.Time, bool) {
	return ParseTimestamp(r.CreatedAt)
}

// ParseTimestamp parses the timestamp formats agents are known to send.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range logTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
