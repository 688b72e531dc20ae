package config

import "time"

// Config is the root configuration shared by the relay and chatctl.
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Identity IdentityConfig `yaml:"identity"`
	Relay    RelayConfig    `yaml:"relay"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ClientConfig holds connection manager settings.
type ClientConfig struct {
	URL                  string        `yaml:"url"`
	TokenFile            string        `yaml:"token_file"` // Re-read on every connect attempt
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// IdentityConfig holds session token settings.
type IdentityConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	ListenAddr  string        `yaml:"listen_addr"`
	AuthTimeout time.Duration `yaml:"auth_timeout"`
	HistorySize int           `yaml:"history_size"` // Messages kept per conversation (memory store)
	SendBuffer  int           `yaml:"send_buffer"`  // Outbound frames queued per session
}

// DatabaseConfig holds the optional Postgres history store.
// An empty host selects the in-memory store.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}
