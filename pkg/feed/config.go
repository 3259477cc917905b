package feed

import "time"

// Path is the well-known feed endpoint.
const Path = "/ws"

// ReconnectPolicy decides how long the Client waits before redialing.
// A BackoffFactor of 1 gives a fixed delay.
type ReconnectPolicy struct {
	InitialDelay  time.Duration `json:"initial_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	MaxDelay      time.Duration `json:"max_delay"`
}

// DefaultReconnectPolicy retries every 5 seconds.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay:  5 * time.Second,
		BackoffFactor: 1.0,
		MaxDelay:      60 * time.Second,
	}
}

// Delay returns the wait before reconnect attempt number attempt (0 based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	if attempt <= 0 || p.BackoffFactor <= 1 {
		return delay
	}
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Command is an inbound feed message from a viewer.
type Command struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

const (
	ActionRefresh  = "refresh"
	ActionWithdraw = "withdraw"
)
