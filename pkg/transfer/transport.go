package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
)

// Transport moves the actual bytes. The session only cares about the
// handshake outcome and progress percentages.
type Transport interface {
	// Handshake reaches the sender at target and returns the offered file.
	Handshake(ctx context.Context, target descriptor.Descriptor) (Metadata, error)
	// Receive transfers the file, calling progress with percentages as it goes.
	Receive(ctx context.Context, progress func(percent float64)) error
	// Close releases whatever the transport holds open.
	Close() error
}

const (
	defaultSimulatedInterval = 500 * time.Millisecond
	defaultSimulatedStep     = 10.0
	minSimulatedSize         = 1 << 20
	maxSimulatedSize         = 10 << 20
)

// SimulatedTransport stands in for the video transport. It optionally dials
// the sender over TCP to prove reachability, invents file metadata from the
// hash and then reports random monotonic progress until 100%.
type SimulatedTransport struct {
	// Dial, when set, opens a TCP connection to the target during the
	// handshake. It is held until Close.
	Dial bool
	// HandshakeDelay is waited before the handshake succeeds.
	HandshakeDelay time.Duration
	// Interval between progress reports.
	Interval time.Duration
	// MaxStep bounds the random progress increment per report.
	MaxStep float64
	// Rand is the randomness source. A seeded generator keeps tests stable.
	Rand *rand.Rand

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

var _ Transport = (*SimulatedTransport)(nil)

// ErrTransportClosed is returned when a closed transport is used.
var ErrTransportClosed = errors.New("transport closed")

// NewSimulatedTransport returns a transport with default pacing.
func NewSimulatedTransport() *SimulatedTransport {
	return &SimulatedTransport{
		Interval: defaultSimulatedInterval,
		MaxStep:  defaultSimulatedStep,
	}
}

func (t *SimulatedTransport) Handshake(ctx context.Context, target descriptor.Descriptor) (Metadata, error) {
	if t.isClosed() {
		return Metadata{}, ErrTransportClosed
	}

	if t.HandshakeDelay > 0 {
		timer := time.NewTimer(t.HandshakeDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Metadata{}, ctx.Err()
		case <-timer.C:
		}
	}

	if t.Dial {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", target.Address())
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to reach sender at %s: %w", target.Address(), err)
		}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			_ = conn.Close()
			return Metadata{}, ErrTransportClosed
		}
		t.conn = conn
		t.mu.Unlock()
	}

	name := target.Hash
	if len(name) > 8 {
		name = name[:8]
	}
	return Metadata{
		Name:     "received-file-" + name,
		Size:     minSimulatedSize + t.rng().Int64N(maxSimulatedSize-minSimulatedSize),
		MimeType: "application/octet-stream",
	}, nil
}

func (t *SimulatedTransport) Receive(ctx context.Context, progress func(percent float64)) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	interval := t.Interval
	if interval <= 0 {
		interval = defaultSimulatedInterval
	}
	step := t.MaxStep
	if step <= 0 {
		step = defaultSimulatedStep
	}
	rng := t.rng()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := 0.0
	for current < 100 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if t.isClosed() {
			return ErrTransportClosed
		}
		current = min(100, current+rng.Float64()*step)
		progress(current)
	}
	return nil
}

func (t *SimulatedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

func (t *SimulatedTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *SimulatedTransport) rng() *rand.Rand {
	if t.Rand != nil {
		return t.Rand
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
}
