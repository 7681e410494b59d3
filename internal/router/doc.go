// Package router decodes raw WebSocket frames into typed telemetry messages.
//
// Every inbound frame is a JSON object with a "type" discriminator and a
// type-specific "data" field:
//   - metrics:  host utilization sample
//   - services: data.services, list of service status records
//   - logs:     data.logs, list of log records
//
// Frames with a missing or unrecognized type decode to KindUnknown and are
// still delivered. Frames that are not JSON objects, or whose data does
// not match their type, produce a *DecodeError.
package router
