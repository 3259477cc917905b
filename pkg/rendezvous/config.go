package rendezvous

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinTableSize     = 5
	MaxTableSize     = 50
	DefaultTableSize = 10

	MinCleanupInterval     = 10 * time.Second
	MaxCleanupInterval     = 300 * time.Second
	DefaultCleanupInterval = 30 * time.Second

	// DefaultTTLFactor gives a 5 minute TTL for the default cleanup interval.
	DefaultTTLFactor = 10
)

var ErrInvalidConfiguration = errors.New("invalid rendezvous configuration")

// Config parameterizes the capacity and the eviction timing of a Table.
type Config struct {
	// MaxSize bounds the number of entries held at any time.
	MaxSize int `json:"max_table_size"`
	// CleanupInterval is the sweep period.
	CleanupInterval time.Duration `json:"cleanup_interval"`
	// TTLFactor multiplies CleanupInterval to give the entry TTL.
	TTLFactor int `json:"ttl_factor"`
	// Rotate evicts the least recently seen live entry when the table is
	// full instead of rejecting the insert.
	Rotate bool `json:"rotate"`
}

// DefaultConfig returns the configuration used when nothing is supplied.
func DefaultConfig() Config {
	return Config{
		MaxSize:         DefaultTableSize,
		CleanupInterval: DefaultCleanupInterval,
		TTLFactor:       DefaultTTLFactor,
	}
}

// TTL is how long an entry stays visible after its last refresh.
func (c Config) TTL() time.Duration {
	factor := c.TTLFactor
	if factor <= 0 {
		factor = DefaultTTLFactor
	}
	return c.CleanupInterval * time.Duration(factor)
}

// Validate checks the configured values against their allowed ranges.
func (c Config) Validate() error {
	if c.MaxSize < MinTableSize || c.MaxSize > MaxTableSize {
		return fmt.Errorf("%w: max table size %d not in [%d,%d]", ErrInvalidConfiguration, c.MaxSize, MinTableSize, MaxTableSize)
	}
	if c.CleanupInterval < MinCleanupInterval || c.CleanupInterval > MaxCleanupInterval {
		return fmt.Errorf("%w: cleanup interval %s not in [%s,%s]", ErrInvalidConfiguration, c.CleanupInterval, MinCleanupInterval, MaxCleanupInterval)
	}
	if c.TTLFactor < 0 {
		return fmt.Errorf("%w: ttl factor cannot be negative", ErrInvalidConfiguration)
	}
	return nil
}
