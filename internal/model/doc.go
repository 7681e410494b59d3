// Package model defines the telemetry records reported by monitored servers.
//
// Records mirror the JSON the monitoring agent sends inside a frame's
// "data" field.
//
// Conventions:
//   - Utilization values are percentages (0-100) as float64
//   - Log timestamps are kept as the agent sent them; use LogRecord.Time to parse
//   - Service status "running" is the only healthy status
package model
