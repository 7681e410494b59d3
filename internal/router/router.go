package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/sitewatch/internal/model"
)

var (
	errNotObject = errors.New("frame is not a JSON object")
	errNoData    = errors.New("missing data field")
)

// Router decodes frames for one or more connections and keeps counters.
type Router struct {
	logger *slog.Logger

	mu          sync.RWMutex
	received    int64
	decoded     int64
	parseErrors int64
	unknown     int64
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	FramesReceived  int64
	MessagesDecoded int64
	ParseErrors     int64
	UnknownMessages int64
}

// NewRouter creates a new Message Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Route decodes a frame and updates counters. Malformed frames are logged
// and reported with ok=false; callers should drop them and keep reading.
func (r *Router) Route(target string, frame []byte, receivedAt time.Time) (Message, bool) {
	msg, err := Decode(target, frame, receivedAt)

	r.mu.Lock()
	r.received++
	switch {
	case err != nil:
		r.parseErrors++
	case msg.Kind == KindUnknown:
		r.unknown++
		r.decoded++
	default:
		r.decoded++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("dropping malformed frame",
			"target", target,
			"bytes", len(frame),
			"error", err,
		)
		return Message{}, false
	}

	if msg.Kind == KindUnknown {
		r.logger.Debug("unknown message type",
			"target", target,
			"type", msg.Payload.(UnknownPayload).Type,
		)
	}

	return msg, true
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		FramesReceived:  r.received,
		MessagesDecoded: r.decoded,
		ParseErrors:     r.parseErrors,
		UnknownMessages: r.unknown,
	}
}

// Decode parses one frame into a Message.
func Decode(target string, frame []byte, receivedAt time.Time) (Message, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(frame), []byte("{")) {
		return Message{}, &DecodeError{Err: errNotObject}
	}

	var env frameEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, &DecodeError{Err: err}
	}

	msgType := extractType(env.Type)
	msg := Message{
		Kind:       ParseKind(msgType),
		Target:     target,
		SentAt:     extractTimestamp(env.Timestamp),
		ReceivedAt: receivedAt,
	}

	var err error
	switch msg.Kind {
	case KindMetrics:
		msg.Payload, err = parseMetrics(env.Data)
	case KindServices:
		msg.Payload, err = parseServices(env.Data)
	case KindLogs:
		msg.Payload, err = parseLogs(env.Data)
	default:
		raw := make(json.RawMessage, len(frame))
		copy(raw, frame)
		msg.Payload = UnknownPayload{Type: msgType, Raw: raw}
	}
	if err != nil {
		return Message{}, &DecodeError{Type: msgType, Err: err}
	}

	return msg, nil
}

// extractType returns the type string, or "" when missing or not a string.
func extractType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// extractTimestamp parses the optional agent timestamp, best effort.
func extractTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	t, _ := model.ParseTimestamp(s)
	return t
}

func hasData(data json.RawMessage) bool {
	return len(data) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// parseMetrics parses the data field of a metrics frame.
func parseMetrics(data json.RawMessage) (Payload, error) {
	if !hasData(data) {
		return nil, errNoData
	}
	var m model.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return MetricsPayload{Metrics: m}, nil
}

// parseServices parses the data field of a services frame.
func parseServices(data json.RawMessage) (Payload, error) {
	if !hasData(data) {
		return nil, errNoData
	}
	var w servicesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return ServicesPayload{Services: w.Services}, nil
}

// parseLogs parses the data field of a logs frame.
func parseLogs(data json.RawMessage) (Payload, error) {
	if !hasData(data) {
		return nil, errNoData
	}
	var w logsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return LogsPayload{Logs: w.Logs}, nil
}
