package feed

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.incoming:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// fakeDialer hands out queued results in order; once exhausted it fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	dials   int
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) push(conn *fakeConn, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{conn: conn, err: err})
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// fakeTimers records scheduled reconnects instead of running them.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeTimers) all() []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeTimer, len(f.timers))
	copy(out, f.timers)
	return out
}

func (f *fakeTimers) active() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range f.all() {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the most recently scheduled timer.
func (f *fakeTimers) fire() {
	timers := f.all()
	t := timers[len(timers)-1]
	t.stopped = true
	t.fn()
}
