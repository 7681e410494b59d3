package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rickgao/sitewatch/internal/model"
)

func TestDecode_Metrics(t *testing.T) {
	frame := `{"type":"metrics","data":{"cpu_usage":35.5,"memory_usage":61.2,"disk_usage":80,"load_average":[0.1,0.2,0.3]},"timestamp":"2024-01-15T12:00:00"}`
	receivedAt := time.Date(2024, 1, 15, 12, 0, 1, 0, time.UTC)

	msg, err := Decode("7", []byte(frame), receivedAt)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if msg.Kind != KindMetrics {
		t.Errorf("Kind = %v, want metrics", msg.Kind)
	}
	if msg.Target != "7" {
		t.Errorf("Target = %q, want %q", msg.Target, "7")
	}
	if !msg.ReceivedAt.Equal(receivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", msg.ReceivedAt, receivedAt)
	}
	if want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC); !msg.SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", msg.SentAt, want)
	}

	m, ok := msg.Metrics()
	if !ok {
		t.Fatalf("Metrics() ok = false, payload %T", msg.Payload)
	}
	if m.CPUUsage != 35.5 {
		t.Errorf("CPUUsage = %v, want 35.5", m.CPUUsage)
	}
	if m.LoadAverage != (model.LoadAverage{0.1, 0.2, 0.3}) {
		t.Errorf("LoadAverage = %v", m.LoadAverage)
	}
}

func TestDecode_Services(t *testing.T) {
	frame := `{"type":"services","data":{"services":[
		{"name":"nginx","port":80,"pid":100,"status":"running","cpu_usage":1.5,"memory_usage":3.2},
		{"name":"redis","port":6379,"pid":0,"status":"stopped","cpu_usage":0,"memory_usage":0}
	]}}`

	msg, err := Decode("1", []byte(frame), time.Now())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	services, ok := msg.Services()
	if !ok {
		t.Fatalf("Services() ok = false, payload %T", msg.Payload)
	}
	if len(services) != 2 {
		t.Fatalf("len(services) = %d, want 2", len(services))
	}
	if services[0].Name != "nginx" || services[0].Port != 80 || !services[0].Running() {
		t.Errorf("services[0] = %+v", services[0])
	}
	if services[1].Name != "redis" || services[1].Running() {
		t.Errorf("services[1] = %+v", services[1])
	}
}

func TestDecode_Logs(t *testing.T) {
	frame := `{"type":"logs","data":{"logs":[
		{"created_at":"2024-01-15T12:00:00","log_type":"system","severity":"error","message":"disk full"}
	]}}`

	msg, err := Decode("1", []byte(frame), time.Now())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	logs, ok := msg.Logs()
	if !ok {
		t.Fatalf("Logs() ok = false, payload %T", msg.Payload)
	}
	if len(logs) != 1 || logs[0].Message != "disk full" || logs[0].Severity != "error" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestDecode_Unknown(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantType string
	}{
		{name: "unrecognized type", frame: `{"type":"error","data":{"msg":"boom"}}`, wantType: "error"},
		{name: "missing type", frame: `{"data":{}}`, wantType: ""},
		{name: "non-string type", frame: `{"type":42,"data":{}}`, wantType: ""},
		{name: "empty object", frame: `{}`, wantType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode("1", []byte(tt.frame), time.Now())
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if msg.Kind != KindUnknown {
				t.Errorf("Kind = %v, want unknown", msg.Kind)
			}
			p, ok := msg.Payload.(UnknownPayload)
			if !ok {
				t.Fatalf("payload type = %T, want UnknownPayload", msg.Payload)
			}
			if p.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", p.Type, tt.wantType)
			}
			if string(p.Raw) != tt.frame {
				t.Errorf("Raw = %s, want %s", p.Raw, tt.frame)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `hello`},
		{name: "truncated", frame: `{"type":"metrics","data":{`},
		{name: "array", frame: `[1,2,3]`},
		{name: "null", frame: `null`},
		{name: "string", frame: `"metrics"`},
		{name: "empty", frame: ``},
		{name: "metrics wrong shape", frame: `{"type":"metrics","data":"high"}`},
		{name: "metrics without data", frame: `{"type":"metrics"}`},
		{name: "services wrong shape", frame: `{"type":"services","data":{"services":"nginx"}}`},
		{name: "logs null data", frame: `{"type":"logs","data":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("1", []byte(tt.frame), time.Now())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Errorf("error type = %T, want *DecodeError", err)
			}
		})
	}
}

func TestDecode_ShapeMismatchOnlyForKnownTypes(t *testing.T) {
	data := `"high"`

	_, err := Decode("1", []byte(`{"type":"metrics","data":`+data+`}`), time.Now())
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("metrics with bad data: err = %v, want *DecodeError", err)
	}
	if decErr.Type != "metrics" {
		t.Errorf("DecodeError.Type = %q, want metrics", decErr.Type)
	}

	msg, err := Decode("1", []byte(`{"type":"alert","data":`+data+`}`), time.Now())
	if err != nil {
		t.Fatalf("unknown type with the same data: %v", err)
	}
	if msg.Kind != KindUnknown {
		t.Errorf("Kind = %v, want unknown", msg.Kind)
	}

	r := NewRouter(nil)
	if _, ok := r.Route("1", []byte(`{"type":"logs","data":{"logs":5}}`), time.Now()); ok {
		t.Error("Route delivered a logs frame with bad data")
	}
	if _, ok := r.Route("1", []byte(`{"type":"alert","data":5}`), time.Now()); !ok {
		t.Error("Route dropped an unknown frame")
	}
	if s := r.Stats(); s.ParseErrors != 1 || s.UnknownMessages != 1 {
		t.Errorf("stats = %+v, want 1 parse error and 1 unknown", s)
	}
}

func TestDecode_UnknownRawIsCopied(t *testing.T) {
	frame := []byte(`{"type":"custom"}`)
	msg, err := Decode("1", frame, time.Now())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	frame[2] = 'X'

	p := msg.Payload.(UnknownPayload)
	if !json.Valid(p.Raw) || string(p.Raw) != `{"type":"custom"}` {
		t.Errorf("Raw = %s, changed with the input buffer", p.Raw)
	}
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{KindMetrics, KindServices, KindLogs} {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseKind("bogus") != KindUnknown {
		t.Error("ParseKind(bogus) should be KindUnknown")
	}
	if KindUnknown.String() != "unknown" {
		t.Errorf("KindUnknown.String() = %q", KindUnknown.String())
	}
}

func TestRouter_Stats(t *testing.T) {
	r := NewRouter(slog.Default())
	now := time.Now()

	frames := []string{
		`{"type":"metrics","data":{"cpu_usage":1}}`,
		`not json`,
		`{"type":"heartbeat"}`,
		`{"type":"logs","data":{"logs":[]}}`,
	}

	var delivered int
	for _, f := range frames {
		if _, ok := r.Route("1", []byte(f), now); ok {
			delivered++
		}
	}

	if delivered != 3 {
		t.Errorf("delivered = %d, want 3", delivered)
	}

	stats := r.Stats()
	if stats.FramesReceived != 4 {
		t.Errorf("FramesReceived = %d, want 4", stats.FramesReceived)
	}
	if stats.MessagesDecoded != 3 {
		t.Errorf("MessagesDecoded = %d, want 3", stats.MessagesDecoded)
	}
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
	if stats.UnknownMessages != 1 {
		t.Errorf("UnknownMessages = %d, want 1", stats.UnknownMessages)
	}
}
