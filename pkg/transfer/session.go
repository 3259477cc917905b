package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
)

// Listener observes every status change of a session, in order.
type Listener func(Status)

// Option configures a Session.
type Option func(*Session)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithListener registers a listener at construction time.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session tracks one receive attempt from descriptor entry to a terminal
// state. A Session is single use: once Completed or Failed it never moves
// again, and a new Session is needed to retry.
type Session struct {
	cfg       Config
	transport Transport
	log       *slog.Logger
	now       func() time.Time

	// emitMu serializes transitions together with their notifications so
	// listeners see changes in the order they were applied.
	emitMu sync.Mutex

	mu        sync.Mutex
	status    Status
	listeners []Listener
	cancel    context.CancelFunc
	disposed  bool
}

// NewSession creates an idle session that will use transport for the
// handshake and byte transfer.
func NewSession(transport Transport, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	s := &Session{
		cfg:       DefaultConfig(),
		transport: transport,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.status = Status{
		SessionID: uuid.NewString(),
		State:     StateIdle,
	}
	s.log = s.log.With("session_id", s.status.SessionID)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.SessionID
}

// Status returns a copy of the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the current state.
func (s *Session) State() State {
	return s.Status().State
}

// AddListener registers l for all following status changes.
func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Connect decodes raw and performs the handshake with the sender it points
// to. A blank raw string is rejected without leaving Idle. A malformed one
// moves the session to Failed.
func (s *Session) Connect(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &SessionError{Op: "connect", State: s.State(), Err: ErrEmptyDescriptor}
	}

	target, decodeErr := descriptor.Decode(strings.TrimSpace(raw))
	if decodeErr != nil {
		err := s.transition("decode", func(st *Status) (bool, error) {
			if st.State != StateIdle {
				return false, ErrInvalidStateTransition
			}
			st.State = StateFailed
			st.Err = decodeErr
			return true, nil
		})
		if err != nil {
			return err
		}
		return &SessionError{Op: "decode", State: StateIdle, Err: decodeErr}
	}

	hctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	err := s.transition("connect", func(st *Status) (bool, error) {
		if st.State != StateIdle {
			return false, ErrInvalidStateTransition
		}
		st.State = StateConnecting
		st.Target = target
		return true, nil
	})
	if err != nil {
		return err
	}
	s.setCancel(cancel)
	defer s.setCancel(nil)

	s.log.Info("Connecting to sender", "address", target.Address(), "hash", target.Hash)
	meta, hsErr := s.transport.Handshake(hctx, target)
	if hsErr == nil && hctx.Err() != nil {
		hsErr = hctx.Err()
	}
	if hsErr != nil {
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			hsErr = fmt.Errorf("%w after %s: %w", ErrConnectTimeout, s.cfg.ConnectTimeout, hsErr)
		}
		return s.fail("connect", hsErr)
	}

	return s.transition("connect", func(st *Status) (bool, error) {
		if st.State != StateConnecting {
			return false, ErrInvalidStateTransition
		}
		st.State = StateConnected
		st.File = meta
		st.LastUpdateTime = s.now()
		return true, nil
	})
}

// Begin starts the byte transfer phase at 0% progress.
func (s *Session) Begin() error {
	return s.transition("begin", func(st *Status) (bool, error) {
		if st.State != StateConnected {
			return false, ErrInvalidStateTransition
		}
		now := s.now()
		st.State = StateTransferring
		st.StartTime = now
		st.setProgress(0, now)
		return true, nil
	})
}

// Update records a progress percentage. Values are clamped to [0, 100].
// Values below the current progress are ignored so progress never goes
// backwards. Reaching 100 completes the session.
func (s *Session) Update(percent float64) error {
	if math.IsNaN(percent) {
		return nil
	}
	percent = math.Max(0, math.Min(100, percent))

	return s.transition("update", func(st *Status) (bool, error) {
		if st.State != StateTransferring {
			return false, ErrInvalidStateTransition
		}
		if percent <= st.Progress && percent < 100 {
			return false, nil
		}
		now := s.now()
		st.setProgress(percent, now)
		if percent >= 100 {
			st.State = StateCompleted
			st.ETA = 0
			st.CompletionTime = &now
		}
		return true, nil
	})
}

// Fail moves a non-terminal session to Failed. cause is wrapped so it
// matches ErrTransportFailure.
func (s *Session) Fail(cause error) error {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	return s.fail("fail", cause)
}

func (s *Session) fail(op string, cause error) error {
	cause = asTransportFailure(cause)
	var prev State
	err := s.transition(op, func(st *Status) (bool, error) {
		prev = st.State
		if !st.State.CanTransitionTo(StateFailed) {
			return false, ErrInvalidStateTransition
		}
		st.State = StateFailed
		st.Err = cause
		st.LastUpdateTime = s.now()
		return true, nil
	})
	if err != nil {
		return err
	}
	s.log.Warn("Session failed", "op", op, "state", prev, "error", cause)
	return &SessionError{Op: op, State: prev, Err: cause}
}

// Run drives a whole receive: Connect, Begin, then the transport transfer
// with its progress fed into Update. It returns nil once the session is
// Completed.
func (s *Session) Run(ctx context.Context, raw string) error {
	if err := s.Connect(ctx, raw); err != nil {
		return err
	}
	if err := s.Begin(); err != nil {
		return err
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.setCancel(cancel)
	defer s.setCancel(nil)

	err := s.transport.Receive(rctx, func(percent float64) {
		if uerr := s.Update(percent); uerr != nil && !errors.Is(uerr, ErrSessionDisposed) {
			s.log.Debug("Progress update rejected", "percent", percent, "error", uerr)
		}
	})
	if s.isDisposed() {
		return &SessionError{Op: "receive", State: s.State(), Err: ErrSessionDisposed}
	}
	if err != nil {
		return s.fail("receive", err)
	}
	if s.State() != StateCompleted {
		if err := s.Update(100); err != nil {
			return err
		}
	}
	s.log.Info("Transfer completed", "file", s.Status().File.Name)
	return nil
}

// Dispose abandons the session. Any in-flight handshake or transfer is
// cancelled and the transport is closed. No listener is notified after
// Dispose returns. Dispose is idempotent and must not be called from a
// Listener.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	cancel := s.cancel
	s.cancel = nil
	state := s.status.State
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// Wait for a transition that may be notifying right now.
	s.emitMu.Lock()
	s.emitMu.Unlock()

	s.log.Debug("Session disposed", "state", state)
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		if cancel != nil {
			cancel()
		}
		return
	}
	s.cancel = cancel
}

// transition applies fn under the session lock and, when fn reports a
// change, notifies listeners with the new status before any other
// transition can start.
func (s *Session) transition(op string, fn func(*Status) (bool, error)) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.disposed {
		state := s.status.State
		s.mu.Unlock()
		return &SessionError{Op: op, State: state, Err: ErrSessionDisposed}
	}
	prev := s.status.State
	changed, err := fn(&s.status)
	if err != nil {
		s.mu.Unlock()
		return &SessionError{Op: op, State: prev, Err: err}
	}
	if !changed {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.status
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if prev != snapshot.State {
		s.log.Debug("Session state changed", "from", prev, "to", snapshot.State)
	}
	for _, l := range listeners {
		l(snapshot)
	}
	return nil
}
