package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/sitewatch/internal/router"
)

// DeliverFunc receives every decoded message, in frame order, on the
// connection's read goroutine.
type DeliverFunc func(msg router.Message)

// eventKind is the closed set of inputs to the state machine.
type eventKind int

const (
	eventOpen      eventKind = iota // handshake succeeded
	eventDialError                  // handshake failed
	eventFrame                      // frame read from the open socket
	eventClosed                     // open socket closed or errored
	eventRetry                      // backoff timer elapsed
)

// event carries one input. gen ties it to the dial or timer that produced
// it; events from a superseded generation are ignored.
type event struct {
	kind   eventKind
	gen    uint64
	socket Socket
	err    error
}

// Connection keeps one socket to one target alive until Disconnect.
type Connection struct {
	cfg     Config
	dialer  Dialer
	router  *router.Router
	deliver DeliverFunc
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	closed       bool // Disconnect called or Failed reached; terminal
	gen          uint64
	retryAttempt int
	socket       Socket
	cancelDial   context.CancelFunc
	dialDone     chan struct{}
	retryTimer   *time.Timer
	nextRetryAt  time.Time
	connectedAt  time.Time
	lastErr      error

	// Stats
	connectAttempts int64
	opens           int64
	delivered       int64
}

// New creates an idle Connection. Nothing is dialed until Connect.
func New(cfg Config, dialer Dialer, deliver DeliverFunc, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	if deliver == nil {
		deliver = func(router.Message) {}
	}

	return &Connection{
		cfg:     cfg,
		dialer:  dialer,
		router:  router.NewRouter(logger),
		deliver: deliver,
		logger:  logger.With("target", cfg.Target),
	}
}

// Target returns the target id.
func (c *Connection) Target() string {
	return c.cfg.Target
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection. It never blocks on the network. Calling
// Connect on a running connection is a no-op; after Disconnect or a
// permanent failure it returns ErrClosed.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != StateIdle {
		return nil
	}

	c.startDialLocked()
	return nil
}

// Disconnect tears the connection down: the pending retry timer is
// stopped, an in-flight handshake is abandoned and the socket is closed.
// The Connection cannot be reused. Calling Disconnect again is a no-op.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	from := c.state
	c.state = StateClosing
	c.gen++

	c.stopRetryLocked()
	c.cancelDialLocked()
	sock := c.socket
	c.socket = nil
	dialed := c.dialDone
	c.connectedAt = time.Time{}
	c.mu.Unlock()

	var err error
	if sock != nil {
		err = sock.Close()
	}
	// A handshake that completed as we canceled it closes its own socket.
	if dialed != nil {
		<-dialed
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Info("disconnected", "from", from)
	return err
}

// Stats returns current statistics.
func (c *Connection) Stats() Stats {
	rs := c.router.Stats()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Target:            c.cfg.Target,
		State:             c.state,
		RetryAttempt:      c.retryAttempt,
		ConnectAttempts:   c.connectAttempts,
		Opens:             c.opens,
		FramesReceived:    rs.FramesReceived,
		DecodeErrors:      rs.ParseErrors,
		MessagesDelivered: c.delivered,
		ConnectedAt:       c.connectedAt,
	}
	if c.state == StateWaitingToRetry {
		s.NextRetryAt = c.nextRetryAt
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// startDialLocked moves to Connecting and dials in the background.
func (c *Connection) startDialLocked() {
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.connectAttempts++

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	dialed := make(chan struct{})
	c.dialDone = dialed

	c.logger.Debug("connecting", "url", c.cfg.URL, "attempt", c.retryAttempt)
	go c.run(ctx, gen, dialed)
}

// run dials, then reads frames until the socket fails or is superseded.
// dialed is closed once the handshake outcome has been applied.
func (c *Connection) run(ctx context.Context, gen uint64, dialed chan struct{}) {
	sock := c.dial(ctx, gen)
	close(dialed)
	if sock == nil {
		return
	}

	for {
		data, err := sock.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Closed before the retry is armed so the next dial never
			// overlaps this socket.
			sock.Close()
			c.handle(event{kind: eventClosed, gen: gen, err: err})
			return
		}

		if !c.handle(event{kind: eventFrame, gen: gen}) {
			return
		}

		msg, ok := c.router.Route(c.cfg.Target, data, receivedAt)
		if !ok {
			continue
		}

		c.deliver(msg)

		c.mu.Lock()
		c.delivered++
		c.mu.Unlock()
	}
}

// dial performs the handshake and returns the socket if it became current.
func (c *Connection) dial(ctx context.Context, gen uint64) Socket {
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	sock, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		c.handle(event{kind: eventDialError, gen: gen, err: err})
		return nil
	}

	if !c.handle(event{kind: eventOpen, gen: gen, socket: sock}) {
		// Disconnected while dialing.
		sock.Close()
		return nil
	}
	return sock
}

// handle applies one event. It reports whether the event was accepted,
// which for eventOpen and eventFrame means the socket is still current.
func (c *Connection) handle(ev event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.gen != c.gen || c.closed {
		return false
	}

	switch ev.kind {
	case eventOpen:
		if c.state != StateConnecting {
			return false
		}
		c.cancelDialLocked()
		c.socket = ev.socket
		c.state = StateOpen
		c.retryAttempt = 0
		c.lastErr = nil
		c.connectedAt = time.Now()
		c.opens++
		c.logger.Info("connected", "url", c.cfg.URL, "opens", c.opens)
		return true

	case eventFrame:
		return c.state == StateOpen

	case eventDialError:
		if c.state != StateConnecting {
			return false
		}
		c.cancelDialLocked()
		c.lastErr = ev.err
		if IsPermanent(ev.err) {
			c.failLocked(ev.err)
			return true
		}
		c.logger.Warn("connect failed", "error", ev.err, "attempt", c.retryAttempt)
		c.scheduleRetryLocked()
		return true

	case eventClosed:
		if c.state != StateOpen {
			return false
		}
		c.lastErr = ev.err
		c.socket = nil
		c.connectedAt = time.Time{}
		c.logger.Warn("connection lost", "error", ev.err)
		c.scheduleRetryLocked()
		return true

	case eventRetry:
		if c.state != StateWaitingToRetry {
			return false
		}
		c.retryTimer = nil
		c.nextRetryAt = time.Time{}
		c.retryAttempt++
		c.logger.Info("attempting reconnection", "attempt", c.retryAttempt)
		c.startDialLocked()
		return true
	}

	return false
}

// scheduleRetryLocked moves to WaitingToRetry and arms the single retry timer.
func (c *Connection) scheduleRetryLocked() {
	c.stopRetryLocked()

	delay := c.cfg.Policy.Delay(c.retryAttempt)
	gen := c.gen
	c.state = StateWaitingToRetry
	c.nextRetryAt = time.Now().Add(delay)
	c.retryTimer = time.AfterFunc(delay, func() {
		c.handle(event{kind: eventRetry, gen: gen})
	})

	c.logger.Info("reconnect scheduled",
		"attempt", c.retryAttempt,
		"delay", delay,
	)
}

// failLocked moves to the terminal Failed state. It is reached only from
// Connecting, so there is no socket to close.
func (c *Connection) failLocked(err error) {
	c.closed = true
	c.gen++
	c.stopRetryLocked()
	c.cancelDialLocked()
	c.connectedAt = time.Time{}
	c.state = StateFailed
	c.logger.Error("connection failed permanently", "error", err)
}

func (c *Connection) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.nextRetryAt = time.Time{}
}

func (c *Connection) cancelDialLocked() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}
