// Package rendezvous keeps the bounded table of senders currently offering a
// file. Entries expire when they are not refreshed within the TTL and are
// removed by a periodic sweep.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
)

// Option customizes a Table.
type Option func(*Table)

// WithClock replaces time.Now as the table's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		t.now = now
	}
}

// WithLogger sets the logger used for table events.
func WithLogger(log *slog.Logger) Option {
	return func(t *Table) {
		t.log = log
	}
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(gen func() string) Option {
	return func(t *Table) {
		t.newID = gen
	}
}

// Table is safe for concurrent use. Every operation, including Snapshot, is
// serialized by a single mutex; the table is small enough that nothing finer
// is worthwhile.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
	nextSeq uint64

	cfg   Config
	now   func() time.Time
	newID func() string
	log   *slog.Logger

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewTable creates an empty table. It returns ErrInvalidConfiguration when cfg
// is out of range.
func NewTable(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		entries: make(map[string]*Entry, cfg.MaxSize),
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(slog.String("component", "rendezvous"))
	return t, nil
}

// Config returns the table configuration.
func (t *Table) Config() Config {
	return t.cfg
}

// OnChange registers fn to be called after every mutation that changed the
// set of entries. fn runs on the mutating goroutine after the table lock has
// been released, so it may call Snapshot.
func (t *Table) OnChange(fn func()) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Table) notify() {
	t.listenersMu.RLock()
	listeners := make([]func(), len(t.listeners))
	copy(listeners, t.listeners)
	t.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Insert registers a sender and returns the id of the new entry.
//
// When the table is full, expired entries are swept first (least recently
// seen first) and the insert is retried once. If that frees nothing the
// insert fails with ErrTableFull, unless the table rotates, in which case the
// least recently seen live entry makes room.
func (t *Table) Insert(hash, ip string, port int) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	ip = strings.TrimSpace(ip)
	if err := validateEntry(hash, ip, port); err != nil {
		return "", err
	}

	t.mu.Lock()
	now := t.now()
	changed := false

	if len(t.entries) >= t.cfg.MaxSize {
		if t.sweepLocked(now) > 0 {
			changed = true
		}
		if len(t.entries) >= t.cfg.MaxSize && t.cfg.Rotate {
			if victim := t.leastRecentlySeenLocked(); victim != nil {
				delete(t.entries, victim.ID)
				t.log.Debug("Evicted entry to make room", slog.String("id", victim.ID), slog.String("hash", victim.Hash))
				changed = true
			}
		}
		if len(t.entries) >= t.cfg.MaxSize {
			t.mu.Unlock()
			if changed {
				t.notify()
			}
			t.log.Warn("Rejected insert, table is full", slog.String("hash", hash), slog.Int("size", t.cfg.MaxSize))
			return "", ErrTableFull
		}
	}

	id := t.newID()
	for _, exists := t.entries[id]; exists; _, exists = t.entries[id] {
		id = t.newID()
	}

	t.nextSeq++
	t.entries[id] = &Entry{
		ID:        id,
		Hash:      hash,
		IP:        ip,
		Port:      port,
		CreatedAt: now,
		LastSeen:  now,
		seq:       t.nextSeq,
	}
	t.mu.Unlock()

	t.log.Info("Added entry", slog.String("id", id), slog.String("hash", hash), slog.String("ip", ip), slog.Int("port", port))
	t.notify()
	return id, nil
}

// Refresh marks the entry as seen now. Expired entries that have not been
// swept yet are reported as ErrNotFound.
func (t *Table) Refresh(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.entries[id]
	if !ok || e.expired(now, t.cfg.TTL()) {
		return fmt.Errorf("refresh %q: %w", id, ErrNotFound)
	}
	if now.After(e.LastSeen) {
		e.LastSeen = now
	}
	return nil
}

// Remove withdraws an entry.
func (t *Table) Remove(id string) error {
	t.mu.Lock()
	if _, ok := t.entries[id]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	delete(t.entries, id)
	t.mu.Unlock()

	t.log.Info("Removed entry", slog.String("id", id))
	t.notify()
	return nil
}

// Get returns a copy of the live entry with the given id.
func (t *Table) Get(id string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.expired(t.now(), t.cfg.TTL()) {
		return Entry{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return *e, nil
}

// Lookup returns the most recently seen live entry offering hash.
func (t *Table) Lookup(hash string) (Entry, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ttl := t.cfg.TTL()
	var found *Entry
	for _, e := range t.entries {
		if e.Hash != hash || e.expired(now, ttl) {
			continue
		}
		if found == nil || e.LastSeen.After(found.LastSeen) {
			found = e
		}
	}
	if found == nil {
		return Entry{}, fmt.Errorf("lookup %q: %w", hash, ErrNotFound)
	}
	return *found, nil
}

// Snapshot returns the live entries ordered by creation time, oldest first.
// The result is never nil.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ttl := t.cfg.TTL()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if !e.expired(now, ttl) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Len returns the number of stored entries, expired or not.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes every entry whose last refresh is at least one TTL before
// now and returns how many were removed. Sweeping twice with no mutation in
// between leaves the same set.
func (t *Table) Sweep(now time.Time) int {
	t.mu.Lock()
	removed := t.sweepLocked(now)
	t.mu.Unlock()

	if removed > 0 {
		t.log.Debug("Swept expired entries", slog.Int("removed", removed))
		t.notify()
	}
	return removed
}

// Run sweeps the table every cleanup interval until ctx is done.
func (t *Table) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	t.log.Info("Sweep loop started", slog.Duration("interval", t.cfg.CleanupInterval), slog.Duration("ttl", t.cfg.TTL()))
	for {
		select {
		case <-ctx.Done():
			t.log.Info("Sweep loop stopped")
			return nil
		case <-ticker.C:
			t.Sweep(t.now())
		}
	}
}

// sweepLocked must be called with t.mu held.
func (t *Table) sweepLocked(now time.Time) int {
	ttl := t.cfg.TTL()
	var stale []*Entry
	for _, e := range t.entries {
		if e.expired(now, ttl) {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].LastSeen.Before(stale[j].LastSeen)
	})
	for _, e := range stale {
		delete(t.entries, e.ID)
		t.log.Debug("Cleaned up expired entry", slog.String("id", e.ID), slog.Time("last_seen", e.LastSeen))
	}
	return len(stale)
}

// leastRecentlySeenLocked must be called with t.mu held.
func (t *Table) leastRecentlySeenLocked() *Entry {
	var oldest *Entry
	for _, e := range t.entries {
		if oldest == nil || e.LastSeen.Before(oldest.LastSeen) ||
			(e.LastSeen.Equal(oldest.LastSeen) && e.seq < oldest.seq) {
			oldest = e
		}
	}
	return oldest
}

func validateEntry(hash, ip string, port int) error {
	// The table only holds entries whose descriptor decodes back to the
	// same address.
	d := descriptor.Descriptor{Hash: hash, IP: ip, Port: port}
	if err := d.Validate(); err != nil {
		var decodeErr *descriptor.DecodeError
		if errors.As(err, &decodeErr) {
			return fmt.Errorf("%w: %s", ErrInvalidEntry, decodeErr.Reason)
		}
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}
