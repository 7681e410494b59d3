package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EndpointURL builds the per-target endpoint {base}/ws/{target}. An http
// or https base is converted to ws or wss.
func EndpointURL(base, target string) (string, error) {
	if target == "" || target == "." || target == ".." || strings.Contains(target, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, base)
	}

	return u.JoinPath("ws", target).String(), nil
}

// WebSocketDialer dials targets over gorilla/websocket.
type WebSocketDialer struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewWebSocketDialer creates a new WebSocket dialer.
func NewWebSocketDialer(cfg ClientConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{cfg: cfg, logger: logger}
}

// Dial performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Socket, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	for k, vs := range d.cfg.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	d.logger.Debug("websocket connected", "url", rawURL)
	return newWSSocket(conn, d.cfg, d.logger), nil
}

// wsSocket is a Socket over one gorilla/websocket connection.
type wsSocket struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	// State
	mu       sync.RWMutex
	lastSeen time.Time
	stale    bool
}

func newWSSocket(conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *wsSocket {
	s := &wsSocket{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}

	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		s.touch()
		err := conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(s.cfg.WriteTimeout),
		)
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	if cfg.PingInterval > 0 {
		go s.heartbeatLoop()
	}

	return s
}

// ReadMessage returns the next data frame.
func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.mu.RLock()
		stale := s.stale
		s.mu.RUnlock()
		if stale {
			return nil, ErrStaleConnection
		}
		return nil, err
	}

	s.touch()
	return data, nil
}

// Close sends a close frame and closes the connection. Concurrent callers
// return once the connection is closed; only the first sees its error.
func (s *wsSocket) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		close(s.done)

		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.closeErr = s.conn.Close()
	})
	if !first {
		return nil
	}
	return s.closeErr
}

func (s *wsSocket) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// heartbeatLoop pings the server and closes the socket when it goes quiet.
func (s *wsSocket) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.RLock()
			lastSeen := s.lastSeen
			s.mu.RUnlock()

			if s.cfg.PingTimeout > 0 && time.Since(lastSeen) > s.cfg.PingTimeout {
				s.logger.Warn("no traffic received, connection stale",
					"last_seen", lastSeen,
					"timeout", s.cfg.PingTimeout,
				)
				s.mu.Lock()
				s.stale = true
				s.mu.Unlock()
				// Unblocks ReadMessage, which then reports ErrStaleConnection.
				s.conn.Close()
				return
			}
		}
	}
}
