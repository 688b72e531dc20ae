package config

import (
	"github.com/rickgao/chat-realtime/internal/connection"
	"github.com/rickgao/chat-realtime/internal/relay"
)

// ConnectionConfig maps the client section to a connection manager config.
func (c *Config) ConnectionConfig() connection.Config {
	cc := c.Client
	return connection.Config{
		URL:                  cc.URL,
		HandshakeTimeout:     cc.HandshakeTimeout,
		ReconnectBaseWait:    cc.ReconnectBaseDelay,
		ReconnectMaxWait:     cc.ReconnectMaxDelay,
		MaxReconnectAttempts: cc.MaxReconnectAttempts,
		PingInterval:         cc.PingInterval,
		PingTimeout:          cc.PingTimeout,
		WriteTimeout:         cc.WriteTimeout,
		BufferSize:           cc.BufferSize,
	}
}

// RelayServerConfig maps the relay and metrics sections to a relay server config.
func (c *Config) RelayServerConfig() relay.Config {
	rc := relay.DefaultConfig()
	if c.Relay.AuthTimeout > 0 {
		rc.AuthTimeout = c.Relay.AuthTimeout
	}
	if c.Relay.SendBuffer > 0 {
		rc.SendBuffer = c.Relay.SendBuffer
	}
	if c.Metrics.Path != "" {
		rc.MetricsPath = c.Metrics.Path
	}
	return rc
}
