package app

import (
	"errors"
	"sync"

	"github.com/rescp17/sneakvlc/pkg/transfer"
)

// ErrSessionActive is returned by Start while another session is held.
var ErrSessionActive = errors.New("invalid state: a session is already active")

// activeSession is the bookkeeping for the single session a receiver runs.
type activeSession struct {
	session      *transfer.Session
	transferDone chan struct{}
}

// StateManager tracks the single active transfer session in a concurrency
// safe manner.
type StateManager struct {
	mu    sync.Mutex
	state *activeSession
}

// NewStateManager creates an empty StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// Start makes s the active session.
func (m *StateManager) Start(s *transfer.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		return ErrSessionActive
	}
	m.state = &activeSession{
		session:      s,
		transferDone: make(chan struct{}),
	}
	return nil
}

// Current returns the active session, or nil.
func (m *StateManager) Current() *transfer.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.session
}

// Dispose disposes the active session, if any. The slot stays taken until
// Finish is called by whoever runs the session.
func (m *StateManager) Dispose() error {
	s := m.Current()
	if s == nil {
		return nil
	}
	return s.Dispose()
}

// Finish releases the slot held by s and signals waiters. Calls for a
// session that is no longer active are ignored.
func (m *StateManager) Finish(s *transfer.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.session != s {
		return
	}
	close(m.state.transferDone)
	m.state = nil
}

// WaitForTransferDone returns a channel closed when the active session is
// finished. With no active session the channel is already closed.
func (m *StateManager) WaitForTransferDone() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.state.transferDone
}
