package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/sitewatch/internal/model"
	"github.com/rickgao/sitewatch/internal/router"
)

func metricsMsg(cpu float64) router.Message {
	return router.Message{
		Kind:       router.KindMetrics,
		Target:     "1",
		Payload:    router.MetricsPayload{Metrics: model.Metrics{CPUUsage: cpu}},
		ReceivedAt: time.Now(),
	}
}

// recorder is a handler that remembers what it received.
type recorder struct {
	mu   sync.Mutex
	msgs []router.Message
}

func (r *recorder) handle(msg router.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestBus_FanOut(t *testing.T) {
	b := New("1", nil)
	var h1, h2, h3 recorder
	b.Subscribe(h1.handle)
	b.Subscribe(h2.handle)
	b.Subscribe(h3.handle)

	if n := b.Publish(metricsMsg(42)); n != 3 {
		t.Errorf("Publish delivered to %d handlers, want 3", n)
	}

	for i, h := range []*recorder{&h1, &h2, &h3} {
		if h.count() != 1 {
			t.Errorf("handler %d received %d messages, want 1", i+1, h.count())
			continue
		}
		m, ok := h.msgs[0].Metrics()
		if !ok || m.CPUUsage != 42 {
			t.Errorf("handler %d got payload %+v", i+1, h.msgs[0].Payload)
		}
	}
}

func TestBus_Isolation(t *testing.T) {
	tests := []struct {
		name    string
		failing Handler
	}{
		{
			name:    "error",
			failing: func(router.Message) error { return errors.New("render failed") },
		},
		{
			name:    "panic",
			failing: func(router.Message) error { panic("nil chart") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("1", nil)
			var h2, h3 recorder
			b.Subscribe(tt.failing)
			b.Subscribe(h2.handle)
			b.Subscribe(h3.handle)

			if n := b.Publish(metricsMsg(1)); n != 2 {
				t.Errorf("Publish delivered %d, want 2", n)
			}
			if h2.count() != 1 || h3.count() != 1 {
				t.Errorf("h2=%d h3=%d, want 1 each", h2.count(), h3.count())
			}

			stats := b.Stats()
			if stats.HandlerErrors != 1 {
				t.Errorf("HandlerErrors = %d, want 1", stats.HandlerErrors)
			}
		})
	}
}

func TestBus_UnsubscribeSymmetry(t *testing.T) {
	b := New("1", nil)
	var h1, h2, h3 recorder
	tok1 := b.Subscribe(h1.handle)
	b.Subscribe(h2.handle)
	b.Subscribe(h3.handle)

	b.Unsubscribe(tok1)
	b.Publish(metricsMsg(1))

	if h1.count() != 0 {
		t.Errorf("unsubscribed handler received %d messages", h1.count())
	}
	if h2.count() != 1 || h3.count() != 1 {
		t.Errorf("h2=%d h3=%d, want 1 each", h2.count(), h3.count())
	}
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	b := New("1", nil)
	var h recorder
	tok := b.Subscribe(h.handle)

	b.Unsubscribe(tok)
	b.Unsubscribe(tok)
	b.Unsubscribe(uuid.New())

	if !b.IsEmpty() {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBus_SameHandlerTwice(t *testing.T) {
	b := New("1", nil)
	var h recorder
	tokA := b.Subscribe(h.handle)
	tokB := b.Subscribe(h.handle)

	if tokA == tokB {
		t.Fatal("expected distinct tokens")
	}

	b.Publish(metricsMsg(1))
	if h.count() != 2 {
		t.Errorf("handler received %d messages, want 2", h.count())
	}

	b.Unsubscribe(tokA)
	b.Publish(metricsMsg(2))
	if h.count() != 3 {
		t.Errorf("handler received %d messages, want 3", h.count())
	}
}

func TestBus_HandlerUnsubscribesItself(t *testing.T) {
	b := New("1", nil)
	var calls int
	var tok Token
	tok = b.Subscribe(func(router.Message) error {
		calls++
		b.Unsubscribe(tok)
		return nil
	})

	b.Publish(metricsMsg(1))
	b.Publish(metricsMsg(2))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !b.IsEmpty() {
		t.Error("expected bus to be empty")
	}
}

func TestBus_Clear(t *testing.T) {
	b := New("1", nil)
	var h recorder
	b.Subscribe(h.handle)
	b.Subscribe(h.handle)

	b.Clear()
	if n := b.Publish(metricsMsg(1)); n != 0 {
		t.Errorf("Publish after Clear delivered %d, want 0", n)
	}
}

func TestBus_ConcurrentPublishUnsubscribe(t *testing.T) {
	b := New("1", nil)
	var delivered atomic.Int64
	tokens := make([]Token, 50)
	for i := range tokens {
		tokens[i] = b.Subscribe(func(router.Message) error {
			delivered.Add(1)
			return nil
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Publish(metricsMsg(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for _, tok := range tokens {
			b.Unsubscribe(tok)
		}
	}()
	wg.Wait()

	if !b.IsEmpty() {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	if got := b.Stats().Published; got != 200 {
		t.Errorf("Published = %d, want 200", got)
	}
}
