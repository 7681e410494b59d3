package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/sitewatch/internal/router"
)

// Handler consumes decoded messages for a target.
type Handler func(msg router.Message) error

// Token identifies one subscription on a Bus.
type Token = uuid.UUID

// Bus is the set of handlers subscribed to one target.
type Bus struct {
	target string
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[Token]Handler

	// Stats
	statsMu       sync.Mutex
	published     int64
	deliveries    int64
	handlerErrors int64
}

// Stats contains runtime statistics for a Bus.
type Stats struct {
	Subscribers   int   `json:"subscribers"`
	Published     int64 `json:"published"`
	Deliveries    int64 `json:"deliveries"`
	HandlerErrors int64 `json:"handler_errors"`
}

// New creates an empty Bus for target.
func New(target string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		target:   target,
		logger:   logger,
		handlers: make(map[Token]Handler),
	}
}

// Subscribe registers h and returns its token.
func (b *Bus) Subscribe(h Handler) Token {
	tok := uuid.New()

	b.mu.Lock()
	b.handlers[tok] = h
	b.mu.Unlock()

	return tok
}

// Unsubscribe removes the handler registered under tok. Unknown or
// already removed tokens are ignored.
func (b *Bus) Unsubscribe(tok Token) {
	b.mu.Lock()
	delete(b.handlers, tok)
	b.mu.Unlock()
}

// Publish delivers msg to every handler registered at the time of the
// call and returns how many handlers completed without error.
//
// Handlers run on the caller's goroutine without the bus lock held, so a
// handler may subscribe or unsubscribe.
func (b *Bus) Publish(msg router.Message) int {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var ok, failed int
	for _, h := range handlers {
		if err := b.invoke(h, msg); err != nil {
			failed++
			b.logger.Warn("subscriber handler failed",
				"target", b.target,
				"kind", msg.Kind,
				"error", err,
			)
			continue
		}
		ok++
	}

	b.statsMu.Lock()
	b.published++
	b.deliveries += int64(ok)
	b.handlerErrors += int64(failed)
	b.statsMu.Unlock()

	return ok
}

// invoke runs one handler, converting a panic into an error.
func (b *Bus) invoke(h Handler, msg router.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(msg)
}

// IsEmpty reports whether no handlers are registered.
func (b *Bus) IsEmpty() bool {
	return b.Len() == 0
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Clear removes every handler.
func (b *Bus) Clear() {
	b.mu.Lock()
	clear(b.handlers)
	b.mu.Unlock()
}

// Stats returns current statistics.
func (b *Bus) Stats() Stats {
	n := b.Len()

	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{
		Subscribers:   n,
		Published:     b.published,
		Deliveries:    b.deliveries,
		HandlerErrors: b.handlerErrors,
	}
}
