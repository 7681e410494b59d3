package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/sitewatch/internal/bus"
	"github.com/rickgao/sitewatch/internal/connection"
	"github.com/rickgao/sitewatch/internal/router"
)

// pendingRelease is a scheduled teardown. The Registry compares by pointer
// so a timer that fires after being replaced does nothing.
type pendingRelease struct {
	timer *time.Timer
}

// Registry maps targets to their Bus and Connection.
type Registry struct {
	cfg    Config
	dialer connection.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	conns    map[string]*connection.Connection
	buses    map[string]*bus.Bus
	releases map[string]*pendingRelease
}

// New creates a Registry. No connection is opened until Subscribe.
func New(cfg Config, dialer connection.Dialer, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dialer == nil {
		return nil, fmt.Errorf("registry: nil dialer")
	}
	if _, err := connection.EndpointURL(cfg.BaseURL, "0"); err != nil {
		return nil, fmt.Errorf("registry: base url: %w", err)
	}
	if cfg.ReleaseGrace < 0 {
		return nil, fmt.Errorf("registry: negative release grace %v", cfg.ReleaseGrace)
	}

	return &Registry{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		conns:    make(map[string]*connection.Connection),
		buses:    make(map[string]*bus.Bus),
		releases: make(map[string]*pendingRelease),
	}, nil
}

// Subscribe registers h for every message from target, opening the
// target's connection if needed. Concurrent calls for one target share a
// single connection.
func (r *Registry) Subscribe(target string, h bus.Handler) (Subscription, error) {
	if h == nil {
		return Subscription{}, ErrNilHandler
	}
	url, err := connection.EndpointURL(r.cfg.BaseURL, target)
	if err != nil {
		return Subscription{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Subscription{}, ErrClosed
	}

	r.cancelReleaseLocked(target)

	b := r.busLocked(target)
	tok := b.Subscribe(h)

	if _, ok := r.conns[target]; !ok {
		if err := r.startLocked(target, url, b); err != nil {
			b.Unsubscribe(tok)
			return Subscription{}, err
		}
	}

	r.logger.Debug("subscribed", "target", target, "subscribers", b.Len())
	return Subscription{Target: target, Token: tok}, nil
}

// Unsubscribe removes a subscription. When it was the target's last one,
// the connection is released after the grace period. Unknown
// subscriptions are ignored.
func (r *Registry) Unsubscribe(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buses[sub.Target]
	if !ok {
		return
	}
	b.Unsubscribe(sub.Token)

	if b.IsEmpty() && !r.closed {
		r.scheduleReleaseLocked(sub.Target)
	}
}

// ForceDisconnect tears down the target's connection now. Subscriptions
// stay registered; call Connect to reopen.
func (r *Registry) ForceDisconnect(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[target]
	if !ok {
		return
	}
	r.disconnectLocked(c)
	r.logger.Info("connection force-disconnected", "target", target)
}

// Connect opens a connection for a target that has subscribers but no
// live connection, for example after ForceDisconnect. A connection that
// failed permanently is replaced.
func (r *Registry) Connect(target string) error {
	url, err := connection.EndpointURL(r.cfg.BaseURL, target)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	b, ok := r.buses[target]
	if !ok || b.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, target)
	}

	if c, ok := r.conns[target]; ok {
		if c.State() != connection.StateFailed {
			return nil
		}
		r.disconnectLocked(c)
	}

	return r.startLocked(target, url, b)
}

// Close stops every connection and drops all subscriptions. Subscribe and
// Connect fail with ErrClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	for target, rel := range r.releases {
		rel.timer.Stop()
		delete(r.releases, target)
	}

	conns := make([]*connection.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	clear(r.conns)

	for _, b := range r.buses {
		b.Clear()
	}
	clear(r.buses)
	r.mu.Unlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(c.Disconnect)
	}
	err := g.Wait()

	r.logger.Info("registry closed", "connections", len(conns))
	return err
}

// Targets returns the targets that currently have a bus, sorted.
func (r *Registry) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make([]string, 0, len(r.buses))
	for t := range r.buses {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Status reports every known target, sorted by target id.
func (r *Registry) Status() []TargetStatus {
	r.mu.Lock()
	seen := make(map[string]struct{}, len(r.buses)+len(r.conns))
	for t := range r.buses {
		seen[t] = struct{}{}
	}
	for t := range r.conns {
		seen[t] = struct{}{}
	}

	out := make([]TargetStatus, 0, len(seen))
	for t := range seen {
		st := TargetStatus{Target: t}
		if b, ok := r.buses[t]; ok {
			st.Bus = b.Stats()
			st.Subscribers = st.Bus.Subscribers
		}
		_, st.ReleasePending = r.releases[t]
		if c, ok := r.conns[t]; ok {
			st.Connection = c.Stats()
			st.Connected = st.Connection.State == connection.StateOpen
		} else {
			st.Connection = connection.Stats{Target: t, State: connection.StateIdle}
		}
		out = append(out, st)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

func (r *Registry) busLocked(target string) *bus.Bus {
	b, ok := r.buses[target]
	if !ok {
		b = bus.New(target, r.logger)
		r.buses[target] = b
	}
	return b
}

// startLocked creates and starts the target's connection. Messages flow
// into b, which outlives the connection across ForceDisconnect.
func (r *Registry) startLocked(target, url string, b *bus.Bus) error {
	cfg := connection.DefaultConfig()
	cfg.Target = target
	cfg.URL = url
	cfg.Policy = r.cfg.Policy
	cfg.ConnectTimeout = r.cfg.ConnectTimeout

	c := connection.New(cfg, r.dialer, func(msg router.Message) {
		b.Publish(msg)
	}, r.logger)

	if err := c.Connect(); err != nil {
		return err
	}
	r.conns[target] = c
	r.logger.Info("connection created", "target", target, "url", url)
	return nil
}

func (r *Registry) scheduleReleaseLocked(target string) {
	if _, ok := r.releases[target]; ok {
		return
	}

	rel := &pendingRelease{}
	rel.timer = time.AfterFunc(r.cfg.ReleaseGrace, func() {
		r.release(target, rel)
	})
	r.releases[target] = rel

	r.logger.Debug("release scheduled", "target", target, "grace", r.cfg.ReleaseGrace)
}

func (r *Registry) cancelReleaseLocked(target string) {
	if rel, ok := r.releases[target]; ok {
		rel.timer.Stop()
		delete(r.releases, target)
		r.logger.Debug("release canceled", "target", target)
	}
}

// release tears the target down if rel is still its pending release and
// nobody resubscribed.
func (r *Registry) release(target string, rel *pendingRelease) {
	r.mu.Lock()
	if r.releases[target] != rel {
		r.mu.Unlock()
		return
	}
	delete(r.releases, target)

	if b, ok := r.buses[target]; ok && !b.IsEmpty() {
		r.mu.Unlock()
		return
	}
	if c, ok := r.conns[target]; ok {
		r.disconnectLocked(c)
	}
	delete(r.buses, target)
	r.mu.Unlock()

	r.logger.Info("connection released", "target", target)
}

// disconnectLocked closes c before the target can be started again, so a
// target never has two live sockets.
func (r *Registry) disconnectLocked(c *connection.Connection) {
	delete(r.conns, c.Target())
	if err := c.Disconnect(); err != nil {
		r.logger.Debug("disconnect error", "target", c.Target(), "error", err)
	}
}
