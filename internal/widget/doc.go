// Package widget holds reference consumers of the telemetry stream.
//
// Each widget keeps the view state one dashboard panel needs and exposes a
// Handle method with the bus.Handler signature, so it can be passed
// directly to registry.Subscribe:
//   - MetricsPanel keeps the latest metrics sample
//   - ServiceTable keeps the latest service list
//   - LogTail keeps the most recent log records, newest batch first
//
// Widgets ignore message kinds they do not display.
package widget
