package stlink

import (
	"log/slog"
	"time"
)

// Opener opens the transport for a probe identified by vid:pid.
type Opener func(vid, pid uint16) (Transport, error)

// Config holds the session configuration.
type Config struct {
	// Timeout applies to every USB write and read
	Timeout time.Duration

	// Logger receives protocol diagnostics (optional)
	Logger *slog.Logger

	// Opener creates the transport in Open. Defaults to OpenUSB.
	Opener Opener
}

func defaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		Logger:  slog.New(slog.DiscardHandler),
		Opener:  OpenUSB,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithTimeout sets the per-transfer timeout.
//
// Example:
//
//	s, err := stlink.Open(stlink.TransportSWD, vid, pid, stlink.WithTimeout(2*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithLogger sets the logger for session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithOpener replaces the USB opener used by Open.
func WithOpener(opener Opener) Option {
	return func(c *Config) {
		if opener != nil {
			c.Opener = opener
		}
	}
}
