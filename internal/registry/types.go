package registry

import (
	"errors"
	"time"

	"github.com/rickgao/sitewatch/internal/backoff"
	"github.com/rickgao/sitewatch/internal/bus"
	"github.com/rickgao/sitewatch/internal/connection"
)

// Errors
var (
	ErrClosed        = errors.New("registry closed")
	ErrNilHandler    = errors.New("nil handler")
	ErrNotSubscribed = errors.New("target has no subscribers")
)

// Config configures a Registry.
type Config struct {
	BaseURL        string         // Dashboard base URL; endpoints are {BaseURL}/ws/{target}
	Policy         backoff.Policy // Reconnection schedule shared by all connections
	ConnectTimeout time.Duration  // Bound on one handshake
	ReleaseGrace   time.Duration  // Delay between the last unsubscribe and teardown
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Policy:         backoff.Default(),
		ConnectTimeout: 15 * time.Second,
		ReleaseGrace:   2 * time.Second,
	}
}

// Subscription identifies one handler registration.
type Subscription struct {
	Target string
	Token  bus.Token
}

// TargetStatus describes one target known to the Registry.
type TargetStatus struct {
	Target         string           `json:"target"`
	Subscribers    int              `json:"subscribers"`
	ReleasePending bool             `json:"release_pending"`
	Connected      bool             `json:"connected"`
	Connection     connection.Stats `json:"connection"`
	Bus            bus.Stats        `json:"bus"`
}
