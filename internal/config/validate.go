package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *MonitorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateWSURL(c.Dashboard.WSURL); err != nil {
		return err
	}

	if err := c.Connections.validate("connections"); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if t == "" || t == "." || t == ".." || strings.Contains(t, "/") {
			return fmt.Errorf("targets[%d] is not a valid target id: %q", i, t)
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("targets[%d] duplicates %q", i, t)
		}
		seen[t] = struct{}{}
	}

	if c.Widgets.LogRetention < 1 {
		return errors.New("widgets.log_retention must be >= 1")
	}

	if c.Recorder.Enabled {
		if err := c.Recorder.Database.validate("recorder.database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
		if c.Recorder.FlushInterval <= 0 {
			return errors.New("recorder.flush_interval must be > 0")
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	return nil
}

func validateWSURL(raw string) error {
	if raw == "" {
		return errors.New("dashboard.ws_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("dashboard.ws_url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("dashboard.ws_url must use ws, wss, http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("dashboard.ws_url must include a host")
	}
	return nil
}

func (cc *ConnectionsConfig) validate(prefix string) error {
	if len(cc.BackoffSchedule) == 0 {
		return fmt.Errorf("%s.backoff_schedule must not be empty", prefix)
	}
	for i, d := range cc.BackoffSchedule {
		if d <= 0 {
			return fmt.Errorf("%s.backoff_schedule[%d] must be > 0, got %v", prefix, i, d)
		}
		if i > 0 && d < cc.BackoffSchedule[i-1] {
			return fmt.Errorf("%s.backoff_schedule[%d] (%v) is shorter than the previous step", prefix, i, d)
		}
	}
	if cc.Jitter < 0 || cc.Jitter > 1 {
		return fmt.Errorf("%s.jitter must be between 0 and 1, got %v", prefix, cc.Jitter)
	}
	if cc.ConnectTimeout < 0 {
		return fmt.Errorf("%s.connect_timeout must be >= 0", prefix)
	}
	if cc.PingInterval < 0 {
		return fmt.Errorf("%s.ping_interval must be >= 0", prefix)
	}
	if cc.PingInterval > 0 && cc.PingTimeout <= cc.PingInterval {
		return fmt.Errorf("%s.ping_timeout (%v) must exceed ping_interval (%v)", prefix, cc.PingTimeout, cc.PingInterval)
	}
	if cc.WriteTimeout <= 0 {
		return fmt.Errorf("%s.write_timeout must be > 0", prefix)
	}
	if cc.ReadLimit < 0 {
		return fmt.Errorf("%s.read_limit must be >= 0", prefix)
	}
	if cc.ReleaseGrace < 0 {
		return fmt.Errorf("%s.release_grace must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
