// Package connection implements the per-target Connection.
//
// A Connection:
//   - Owns exactly one transport socket to one target at a time
//   - Runs an explicit state machine (idle, connecting, open, closing,
//     waiting_to_retry, failed) driven by a closed set of transport events
//   - Reconnects on its own using the backoff schedule; nothing outside
//     the Connection polls its health
//   - Decodes frames with the Message Router and hands messages to a
//     delivery callback in frame order
//
// The transport is abstracted behind Dialer and Socket. WebSocketDialer is
// the gorilla/websocket implementation used in production.
package connection
