package transfer

import (
	"fmt"
	"time"
)

// DefaultConnectTimeout bounds the Connecting state.
const DefaultConnectTimeout = 30 * time.Second

// Config holds the tunables of a Session.
type Config struct {
	// ConnectTimeout is the longest a handshake may take before the session
	// fails with ErrConnectTimeout.
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Validate checks if the configuration values are valid
func (c Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout must be positive", ErrInvalidConfiguration)
	}
	return nil
}
