// Package writer records the telemetry stream to TimescaleDB.
//
// A Recorder is subscribed to targets like any other consumer. Its handler
// only enqueues into a bounded Queue; a consumer goroutine turns messages
// into rows and a flush loop writes them with pgx.Batch when the batch is
// full or the flush interval elapses:
//   - metrics messages become one server_metrics row
//   - services messages become one service_status row per service
//   - logs messages become one system_logs row per record
//
// Only messages delivered while a connection is open are recorded. Frames
// missed during a disconnect are not recovered.
package writer
