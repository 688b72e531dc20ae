package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Client.validate(); err != nil {
		return err
	}

	if c.Relay.AuthTimeout <= 0 {
		return errors.New("relay.auth_timeout must be > 0")
	}
	if c.Relay.HistorySize < 1 {
		return errors.New("relay.history_size must be >= 1")
	}
	if c.Relay.SendBuffer < 1 {
		return errors.New("relay.send_buffer must be >= 1")
	}

	if c.Database.Postgres.Enabled() {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateRelay additionally requires what only the relay needs.
func (c *Config) ValidateRelay() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Identity.Secret == "" {
		return errors.New("identity.secret is required")
	}
	return nil
}

func (cc *ClientConfig) validate() error {
	u, err := url.Parse(cc.URL)
	if err != nil {
		return fmt.Errorf("client.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("client.url must use ws or wss, got %q", u.Scheme)
	}
	if cc.HandshakeTimeout <= 0 {
		return errors.New("client.handshake_timeout must be > 0")
	}
	if cc.ReconnectBaseDelay <= 0 {
		return errors.New("client.reconnect_base_delay must be > 0")
	}
	if cc.ReconnectMaxDelay < cc.ReconnectBaseDelay {
		return fmt.Errorf("client.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			cc.ReconnectMaxDelay, cc.ReconnectBaseDelay)
	}
	if cc.MaxReconnectAttempts < 1 {
		return errors.New("client.max_reconnect_attempts must be >= 1")
	}
	if cc.BufferSize < 1 {
		return errors.New("client.buffer_size must be >= 1")
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
