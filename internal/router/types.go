package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rickgao/sitewatch/internal/model"
)

// Kind identifies the payload carried by a Message.
type Kind int

const (
	KindUnknown Kind = iota
	KindMetrics
	KindServices
	KindLogs
)

// Wire values of the frame "type" field.
const (
	TypeMetrics  = "metrics"
	TypeServices = "services"
	TypeLogs     = "logs"
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMetrics:
		return TypeMetrics
	case KindServices:
		return TypeServices
	case KindLogs:
		return TypeLogs
	default:
		return "unknown"
	}
}

// ParseKind maps a wire type to its Kind. Unrecognized values map to KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case TypeMetrics:
		return KindMetrics
	case TypeServices:
		return KindServices
	case TypeLogs:
		return KindLogs
	default:
		return KindUnknown
	}
}

// Message is one decoded frame, handed to subscribers and never retained.
type Message struct {
	Kind       Kind
	Target     string    // Target the frame arrived on
	Payload    Payload   // Concrete type matches Kind
	SentAt     time.Time // Agent timestamp; zero if absent or unparseable
	ReceivedAt time.Time // Local time the frame was read
}

// Metrics returns the metrics sample if the message carries one.
func (m Message) Metrics() (model.Metrics, bool) {
	p, ok := m.Payload.(MetricsPayload)
	return p.Metrics, ok
}

// Services returns the service list if the message carries one.
func (m Message) Services() ([]model.ServiceStatus, bool) {
	p, ok := m.Payload.(ServicesPayload)
	return p.Services, ok
}

// Logs returns the log records if the message carries them.
func (m Message) Logs() ([]model.LogRecord, bool) {
	p, ok := m.Payload.(LogsPayload)
	return p.Logs, ok
}

// Payload is the closed set of message bodies. Only the types in this
// package implement it.
type Payload interface {
	Kind() Kind
	payload()
}

// MetricsPayload carries a "metrics" frame.
type MetricsPayload struct {
	Metrics model.Metrics
}

// ServicesPayload carries a "services" frame.
type ServicesPayload struct {
	Services []model.ServiceStatus
}

// LogsPayload carries a "logs" frame.
type LogsPayload struct {
	Logs []model.LogRecord
}

// UnknownPayload carries a frame whose type was missing or unrecognized.
type UnknownPayload struct {
	Type string          // Raw type value, empty if missing or not a string
	Raw  json.RawMessage // Entire frame
}

func (MetricsPayload) Kind() Kind  { return KindMetrics }
func (ServicesPayload) Kind() Kind { return KindServices }
func (LogsPayload) Kind() Kind     { return KindLogs }
func (UnknownPayload) Kind() Kind  { return KindUnknown }

func (MetricsPayload) payload()  {}
func (ServicesPayload) payload() {}
func (LogsPayload) payload()     {}
func (UnknownPayload) payload()  {}

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Type string // Frame type, if it could be read
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("decode %s frame: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Wire types for JSON parsing

// frameEnvelope is the outer frame object.
type frameEnvelope struct {
	Type      json.RawMessage `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// servicesWire is the data field of a services frame.
type servicesWire struct {
	Services []model.ServiceStatus `json:"services"`
}

// logsWire is the data field of a logs frame.
type logsWire struct {
	Logs []model.LogRecord `json:"logs"`
}
