package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
)

// ErrClientClosed is returned by Connect after Close.
var ErrClientClosed = errors.New("feed client closed")

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Conn is the part of a websocket connection the Client needs.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a feed connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FeedURL turns the address of the server (http, https, ws, wss or a bare
// host:port) into the feed endpoint URL. Secure pages get the secure scheme.
func FeedURL(server string) (string, error) {
	if server == "" {
		return "", errors.New("empty server address")
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + server)
		if err != nil {
			return "", fmt.Errorf("invalid server address %q: %w", server, err)
		}
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = Path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

type timer interface {
	Stop() bool
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithReconnectPolicy replaces the default fixed 5 second delay.
func WithReconnectPolicy(p ReconnectPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// OnStateChange registers a callback run after each connection state change.
func OnStateChange(fn func(State)) ClientOption {
	return func(c *Client) {
		c.onState = fn
	}
}

// Client holds one subscription to a feed endpoint. After a transport
// failure it waits for the reconnect delay and dials again; at most one
// reconnect timer is pending at any time. The last received table is kept
// while disconnected.
type Client struct {
	url       string
	dialer    Dialer
	policy    ReconnectPolicy
	afterFunc func(time.Duration, func()) timer
	log       *slog.Logger
	onState   func(State)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	conn     Conn
	gen      uint64
	pending  timer
	timerSeq uint64
	attempts int
	closed   bool
	entries  []rendezvous.Entry

	writeMu sync.Mutex
	updates chan []rendezvous.Entry
	states  chan State
}

// NewClient creates a disconnected client for the feed at url.
func NewClient(url string, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:    url,
		dialer: WebsocketDialer{},
		policy: DefaultReconnectPolicy(),
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		log:     slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		entries: []rendezvous.Entry{},
		updates: make(chan []rendezvous.Entry, 1),
		states:  make(chan State, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(slog.String("component", "feed-client"))
	return c
}

// URL returns the feed endpoint.
func (c *Client) URL() string {
	return c.url
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Entries returns the last table received.
func (c *Client) Entries() []rendezvous.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rendezvous.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Updates delivers every accepted table. A slow reader only sees the latest.
func (c *Client) Updates() <-chan []rendezvous.Entry {
	return c.updates
}

// States delivers connection state changes. A slow reader only sees the
// latest; State is always authoritative.
func (c *Client) States() <-chan State {
	return c.states
}

// Run connects and keeps the subscription alive until ctx is done, then
// closes the client.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(); err != nil && errors.Is(err, ErrClientClosed) {
		return err
	}
	select {
	case <-ctx.Done():
	case <-c.ctx.Done():
	}
	c.Close()
	return nil
}

// Connect dials the feed, replacing any existing connection and cancelling
// any pending reconnect. A failed dial schedules a reconnect and returns the
// dial error.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.stopTimerLocked()
	old := c.conn
	c.conn = nil
	c.gen++
	gen := c.gen
	changed := c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if changed {
		c.emitState(Disconnected)
	}

	conn, err := c.dialer.Dial(c.ctx, c.url)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		closed := c.closed
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if closed {
			return ErrClientClosed
		}
		return nil
	}
	if err != nil {
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.log.Warn("Feed dial failed", slog.String("url", c.url), slog.Any("error", err))
		return fmt.Errorf("dial feed: %w", err)
	}
	c.conn = conn
	c.attempts = 0
	c.stopTimerLocked()
	c.setStateLocked(Connected)
	c.mu.Unlock()

	c.log.Info("Feed connected", slog.String("url", c.url))
	c.emitState(Connected)
	go c.readLoop(conn, gen)
	return nil
}

// SendMessage marshals payload and writes it if connected. Otherwise, or on
// any error, the message is silently dropped.
func (c *Client) SendMessage(payload any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Debug("Dropping unencodable message", slog.Any("error", err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("Dropping message, write failed", slog.Any("error", err))
	}
}

// Close cancels any pending reconnect and closes the live connection.
// It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	changed := c.setStateLocked(Disconnected)
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		conn.Close()
	}
	if changed {
		c.emitState(Disconnected)
	}
	c.log.Info("Feed client closed")
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(gen, data)
	}
}

// handleMessage replaces the local view with a received table. Anything
// that is not a JSON array of entries is discarded, as is a message read
// from a superseded connection.
func (c *Client) handleMessage(gen uint64, data []byte) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.log.Debug("Ignoring non-array feed message")
		return
	}
	var entries []rendezvous.Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		c.log.Debug("Ignoring malformed feed message", slog.Any("error", err))
		return
	}
	if entries == nil {
		entries = []rendezvous.Entry{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		c.log.Debug("Ignoring message from superseded connection", slog.Uint64("gen", gen))
		return
	}
	c.entries = entries

	// Offered under the lock so a newer connection's snapshot can never be
	// overtaken by this one.
	view := make([]rendezvous.Entry, len(entries))
	copy(view, entries)
	select {
	case c.updates <- view:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- view:
	default:
	}
}

// handleClose reacts to a transport failure on connection generation gen.
// Failures of superseded connections are ignored.
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	changed := c.setStateLocked(Disconnected)
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if changed {
		c.log.Warn("Feed disconnected", slog.Any("error", err))
		c.emitState(Disconnected)
	}
}

// scheduleReconnectLocked must be called with c.mu held.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.pending != nil {
		return
	}
	delay := c.policy.Delay(c.attempts)
	c.attempts++
	c.timerSeq++
	seq := c.timerSeq
	c.pending = c.afterFunc(delay, func() {
		c.reconnect(seq)
	})
	c.log.Info("Feed reconnect scheduled", slog.Duration("delay", delay), slog.Int("attempt", c.attempts))
}

// reconnect runs when timer seq fires. A timer that was stopped or replaced
// in the meantime does nothing.
func (c *Client) reconnect(seq uint64) {
	c.mu.Lock()
	if c.closed || c.pending == nil || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()
	_ = c.Connect()
}

// stopTimerLocked must be called with c.mu held.
func (c *Client) stopTimerLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// setStateLocked must be called with c.mu held. It reports whether the state
// changed.
func (c *Client) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Client) emitState(s State) {
	select {
	case <-c.states:
	default:
	}
	select {
	case c.states <- s:
	default:
	}
	if c.onState != nil {
		c.onState(s)
	}
}
