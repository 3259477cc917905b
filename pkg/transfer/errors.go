package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDescriptor is returned when Connect is given a blank string.
	// The session stays idle.
	ErrEmptyDescriptor = errors.New("descriptor is empty")

	// ErrInvalidStateTransition is returned when an operation is not allowed
	// in the current state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrTransportFailure wraps handshake and transfer errors.
	ErrTransportFailure = errors.New("transport failure")

	// ErrConnectTimeout is returned when the handshake exceeds the connect
	// timeout. It also matches ErrTransportFailure.
	ErrConnectTimeout = fmt.Errorf("%w: connect timed out", ErrTransportFailure)

	// ErrSessionDisposed is returned by every operation after Dispose.
	ErrSessionDisposed = errors.New("session disposed")

	// ErrInvalidConfiguration is returned by Config.Validate.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// SessionError records the operation and state in which a session error
// happened.
type SessionError struct {
	Op    string
	State State
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s (%s): %v", e.Op, e.State, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransportFailure, e.err)
}

func (e *transportError) Unwrap() []error {
	return []error{ErrTransportFailure, e.err}
}

// asTransportFailure makes err match ErrTransportFailure while keeping the
// original error reachable through errors.Is/As.
func asTransportFailure(err error) error {
	if err == nil || errors.Is(err, ErrTransportFailure) {
		return err
	}
	return &transportError{err: err}
}
