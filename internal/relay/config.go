package relay

import "time"

// Config configures the relay server.
type Config struct {
	AuthTimeout   time.Duration // Time allowed for the first (auth) frame
	SendBuffer    int           // Outbound frames queued per session before it is dropped
	PingInterval  time.Duration // Server keepalive ping interval
	PongWait      time.Duration // Read deadline, extended by any frame or pong
	WriteWait     time.Duration // Write deadline per frame
	MaxFrameBytes int64         // Inbound frame size limit
	MaxContent    int           // Chat content limit in bytes
	HistoryLimit  int           // Default page size of the history endpoint
	MetricsPath   string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:   10 * time.Second,
		SendBuffer:    64,
		PingInterval:  30 * time.Second,
		PongWait:      60 * time.Second,
		WriteWait:     10 * time.Second,
		MaxFrameBytes: 64 << 10,
		MaxContent:    4000,
		HistoryLimit:  50,
		MetricsPath:   "/metrics",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.MaxContent <= 0 {
		c.MaxContent = d.MaxContent
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.MetricsPath == "" {
		c.MetricsPath = d.MetricsPath
	}
	return c
}
