// Package database provides the TimescaleDB connection pool used by the
// telemetry recorder, along with the schema the recorder writes to.
package database
