// Package failure maps errors from the rendezvous core onto a small set of
// kinds so every surface (HTTP, terminal UI) can render a specific message.
package failure

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
)

// Kind is the category of an error.
type Kind int

const (
	// Unknown is anything we could not categorize.
	Unknown Kind = iota
	// MalformedDescriptor is a bad or incomplete address string.
	MalformedDescriptor
	// TableFull means the rendezvous table rejected an insert.
	TableFull
	// NotFound is an unknown or expired entry id.
	NotFound
	// TransportFailure covers feed disconnects and session handshake or
	// transfer failures.
	TransportFailure
	// Invalid is a request that can never succeed as given, such as an
	// out-of-range port or an operation in the wrong session state.
	Invalid
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case MalformedDescriptor:
		return "malformed_descriptor"
	case TableFull:
		return "table_full"
	case NotFound:
		return "not_found"
	case TransportFailure:
		return "transport_failure"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Recoverable reports whether retrying later can succeed without the user
// changing their input.
func (k Kind) Recoverable() bool {
	switch k {
	case TableFull, NotFound, TransportFailure:
		return true
	default:
		return false
	}
}

// Classify determines the kind of err. Sentinel errors are checked first;
// unknown errors fall back to matching well-known network failure text.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	switch {
	case errors.Is(err, descriptor.ErrMalformedDescriptor),
		errors.Is(err, transfer.ErrEmptyDescriptor):
		return MalformedDescriptor
	case errors.Is(err, rendezvous.ErrTableFull):
		return TableFull
	case errors.Is(err, rendezvous.ErrNotFound):
		return NotFound
	case errors.Is(err, transfer.ErrTransportFailure),
		errors.Is(err, feed.ErrClientClosed),
		errors.Is(err, context.DeadlineExceeded):
		return TransportFailure
	case errors.Is(err, rendezvous.ErrInvalidEntry),
		errors.Is(err, rendezvous.ErrInvalidConfiguration),
		errors.Is(err, transfer.ErrInvalidConfiguration),
		errors.Is(err, transfer.ErrInvalidStateTransition),
		errors.Is(err, transfer.ErrSessionDisposed):
		return Invalid
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransportFailure
	}

	errMsg := strings.ToLower(err.Error())
	transportPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network unreachable",
		"no route to host",
		"timeout",
		"eof",
	}
	for _, pattern := range transportPatterns {
		if strings.Contains(errMsg, pattern) {
			return TransportFailure
		}
	}
	return Unknown
}

// Message renders a user-facing sentence for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case MalformedDescriptor:
		var decodeErr *descriptor.DecodeError
		if errors.As(err, &decodeErr) {
			return "That does not look like a sneakvlc link: " + decodeErr.Reason + "."
		}
		return "Enter a sneakvlc link such as sneakvlc://<hash>?ip=<ip>&port=<port>."
	case TableFull:
		return "The rendezvous table is full. Try again once an entry expires."
	case NotFound:
		return "That entry is gone. It was withdrawn or expired."
	case TransportFailure:
		if errors.Is(err, transfer.ErrConnectTimeout) {
			return "The sender did not answer in time."
		}
		return "Could not reach the peer. Check the address and that the sender is still running."
	case Invalid:
		if errors.Is(err, transfer.ErrSessionDisposed) {
			return "This transfer was cancelled."
		}
		if errors.Is(err, transfer.ErrInvalidStateTransition) {
			return "That action is not possible right now."
		}
		return "The request is invalid: " + err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}
