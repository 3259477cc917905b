package rendezvous

import (
	"errors"
	"time"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
)

var (
	// ErrTableFull is returned by Insert when no room could be made.
	ErrTableFull = errors.New("rendezvous table is full")
	// ErrNotFound is returned for unknown or already expired ids and hashes.
	ErrNotFound = errors.New("rendezvous entry not found")
	// ErrInvalidEntry is returned by Insert for missing or out of range fields.
	ErrInvalidEntry = errors.New("invalid rendezvous entry")
)

// Entry is one sender offering a file. The JSON shape is the element type of
// the live feed wire message.
type Entry struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	IP        string    `json:"ip"`
	Port      int       `json:"port"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`

	seq uint64
}

// Descriptor returns the addressing part of e.
func (e Entry) Descriptor() descriptor.Descriptor {
	return descriptor.Descriptor{Hash: e.Hash, IP: e.IP, Port: e.Port}
}

func (e *Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.LastSeen) >= ttl
}
