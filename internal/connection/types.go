package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rickgao/sitewatch/internal/backoff"
)

// Errors
var (
	ErrClosed          = errors.New("connection closed")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrInvalidTarget   = errors.New("invalid target id")
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateWaitingToRetry
	StateFailed
)

// String returns the state name used in logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateWaitingToRetry:
		return "waiting_to_retry"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// MarshalText makes State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Dialer opens transport sockets.
type Dialer interface {
	// Dial performs the handshake with url. The context bounds the
	// handshake only, not the lifetime of the returned Socket.
	Dial(ctx context.Context, url string) (Socket, error)
}

// Socket is an open, receive-only transport channel.
type Socket interface {
	// ReadMessage blocks until the next frame arrives or the socket fails.
	// Any error means the socket is finished.
	ReadMessage() ([]byte, error)

	// Close releases the socket. It must unblock a pending ReadMessage and
	// be safe to call more than once.
	Close() error
}

// permanentError marks a dial failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that a Connection receiving it from Dial moves
// to StateFailed instead of scheduling a retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Config configures a Connection.
type Config struct {
	Target         string         // Target id, used for logs and message tagging
	URL            string         // Full endpoint, see EndpointURL
	Policy         backoff.Policy // Reconnection schedule
	ConnectTimeout time.Duration  // Bound on one handshake; 0 means no bound
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Policy:         backoff.Default(),
		ConnectTimeout: 15 * time.Second,
	}
}

// ClientConfig configures the WebSocket transport.
type ClientConfig struct {
	HandshakeTimeout time.Duration // Dialer handshake timeout
	PingInterval     time.Duration // How often to ping the server
	PingTimeout      time.Duration // Max time without any inbound traffic before the socket is stale
	WriteTimeout     time.Duration // Deadline for control frames
	ReadLimit        int64         // Max frame size in bytes; 0 means unlimited
	Header           http.Header   // Extra handshake headers
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        10 * 1024 * 1024,
	}
}

// Stats is a point-in-time view of a Connection.
type Stats struct {
	Target            string
	State             State
	RetryAttempt      int
	ConnectAttempts   int64
	Opens             int64
	FramesReceived    int64
	DecodeErrors      int64
	MessagesDelivered int64
	LastError         string
	ConnectedAt       time.Time // Zero unless open
	NextRetryAt       time.Time // Zero unless waiting to retry
}
