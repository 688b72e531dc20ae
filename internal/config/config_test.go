package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
client:
  url: wss://chat.example.com/ws
  token_file: /tmp/session-token
  reconnect_base_delay: 500ms
  max_reconnect_attempts: 5
relay:
  listen_addr: ":9000"
database:
  postgres:
    host: localhost
    port: 5432
    name: chat
    user: chat
    password: chatpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.URL != "wss://chat.example.com/ws" {
		t.Errorf("Client.URL = %q, want %q", cfg.Client.URL, "wss://chat.example.com/ws")
	}
	if cfg.Client.ReconnectBaseDelay != 500*time.Millisecond {
		t.Errorf("Client.ReconnectBaseDelay = %v, want %v", cfg.Client.ReconnectBaseDelay, 500*time.Millisecond)
	}
	if cfg.Client.MaxReconnectAttempts != 5 {
		t.Errorf("Client.MaxReconnectAttempts = %d, want 5", cfg.Client.MaxReconnectAttempts)
	}
	if cfg.Relay.ListenAddr != ":9000" {
		t.Errorf("Relay.ListenAddr = %q, want %q", cfg.Relay.ListenAddr, ":9000")
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHAT_SECRET", "s3cret")

	yaml := `
identity:
  secret: ${TEST_CHAT_SECRET}
`
	cfg, err := Load(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Identity.Secret != "s3cret" {
		t.Errorf("Identity.Secret = %q, want %q", cfg.Identity.Secret, "s3cret")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(writeTempFile(t, "client: {}\n"))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Client.URL != DefaultClientURL {
		t.Errorf("Client.URL = %q, want default %q", cfg.Client.URL, DefaultClientURL)
	}
	if cfg.Client.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Client.HandshakeTimeout = %v, want default %v", cfg.Client.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Client.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Client.ReconnectMaxDelay = %v, want default %v", cfg.Client.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Relay.HistorySize != DefaultHistorySize {
		t.Errorf("Relay.HistorySize = %d, want default %d", cfg.Relay.HistorySize, DefaultHistorySize)
	}
	if cfg.Database.Postgres.Port != 0 {
		t.Errorf("Database.Postgres.Port = %d, want 0 when database is disabled", cfg.Database.Postgres.Port)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestDatabaseDefaultsWhenEnabled(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Postgres: DBConfig{Host: "db"}}}
	cfg.ApplyDefaults()

	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Port = %d, want %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Database.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("MaxConns = %d, want %d", cfg.Database.Postgres.MaxConns, DefaultMaxConns)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return Default() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "http url",
			mutate:  func(c *Config) { c.Client.URL = "http://localhost/ws" },
			wantErr: `client.url must use ws or wss, got "http"`,
		},
		{
			name: "max delay below base",
			mutate: func(c *Config) {
				c.Client.ReconnectBaseDelay = 2 * time.Second
				c.Client.ReconnectMaxDelay = time.Second
			},
			wantErr: "client.reconnect_max_delay (1s) cannot be less than reconnect_base_delay (2s)",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Client.MaxReconnectAttempts = -1 },
			wantErr: "client.max_reconnect_attempts must be >= 1",
		},
		{
			name:    "missing postgres password",
			mutate:  func(c *Config) { c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 1} },
			wantErr: "database.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be console or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateRelayRequiresSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateRelay(); err == nil || err.Error() != "identity.secret is required" {
		t.Errorf("ValidateRelay() error = %v", err)
	}

	cfg.Identity.Secret = "secret"
	if err := cfg.ValidateRelay(); err != nil {
		t.Errorf("ValidateRelay() unexpected error: %v", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestConnectionConfig(t *testing.T) {
	cfg := Default()
	cfg.Client.URL = "ws://relay:9000/ws"
	cfg.Client.ReconnectBaseDelay = 250 * time.Millisecond
	cfg.Client.MaxReconnectAttempts = 3

	cc := cfg.ConnectionConfig()
	if cc.URL != "ws://relay:9000/ws" {
		t.Errorf("URL = %q", cc.URL)
	}
	if cc.ReconnectBaseWait != 250*time.Millisecond {
		t.Errorf("ReconnectBaseWait = %v, want 250ms", cc.ReconnectBaseWait)
	}
	if cc.ReconnectMaxWait != DefaultReconnectMaxDelay {
		t.Errorf("ReconnectMaxWait = %v, want %v", cc.ReconnectMaxWait, DefaultReconnectMaxDelay)
	}
	if cc.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", cc.MaxReconnectAttempts)
	}
	if cc.BufferSize != DefaultClientBufferSize {
		t.Errorf("BufferSize = %d, want %d", cc.BufferSize, DefaultClientBufferSize)
	}
}

func TestRelayServerConfig(t *testing.T) {
	cfg := Default()
	cfg.Relay.SendBuffer = 8
	cfg.Metrics.Path = "/internal/metrics"

	rc := cfg.RelayServerConfig()
	if rc.SendBuffer != 8 {
		t.Errorf("SendBuffer = %d, want 8", rc.SendBuffer)
	}
	if rc.AuthTimeout != DefaultAuthTimeout {
		t.Errorf("AuthTimeout = %v, want %v", rc.AuthTimeout, DefaultAuthTimeout)
	}
	if rc.MetricsPath != "/internal/metrics" {
		t.Errorf("MetricsPath = %q", rc.MetricsPath)
	}
	if rc.MaxContent == 0 || rc.PingInterval == 0 {
		t.Errorf("relay defaults not carried: %+v", rc)
	}
}
