// Package feed keeps viewers in sync with the rendezvous table. The Publisher
// fans full snapshots out to subscribers; the Client holds one long-lived
// subscription and reconnects when it drops.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
)

// Source is what the Publisher reads snapshots from.
type Source interface {
	Snapshot() []rendezvous.Entry
}

// Subscription is a handle for one registered viewer. C holds at most one
// pending snapshot: a subscriber that falls behind only ever sees the latest.
type Subscription struct {
	id   string
	ch   chan []rendezvous.Entry
	done chan struct{}
	once sync.Once
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// C delivers snapshots in publish order.
func (s *Subscription) C() <-chan []rendezvous.Entry {
	return s.ch
}

// Done is closed once the subscription has been removed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// offer never blocks. If the previous snapshot has not been consumed yet it is
// replaced.
func (s *Subscription) offer(snap []rendezvous.Entry) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Publisher broadcasts the Source's snapshot to every subscriber.
type Publisher struct {
	mu     sync.Mutex
	source Source
	subs   map[*Subscription]struct{}
	last   []rendezvous.Entry
	log    *slog.Logger
}

// NewPublisher creates a publisher reading from src.
func NewPublisher(src Source, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		source: src,
		subs:   make(map[*Subscription]struct{}),
		log:    log.With(slog.String("component", "feed")),
	}
}

// Subscribe registers a viewer and immediately queues the current snapshot.
func (p *Publisher) Subscribe() *Subscription {
	sub := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan []rendezvous.Entry, 1),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sub.offer(p.source.Snapshot())
	p.subs[sub] = struct{}{}
	p.log.Debug("Subscriber added", slog.String("subscriber", sub.id), slog.Int("subscribers", len(p.subs)))
	return sub
}

// Unsubscribe removes sub. Calling it more than once is harmless.
func (p *Publisher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	_, ok := p.subs[sub]
	delete(p.subs, sub)
	count := len(p.subs)
	p.mu.Unlock()

	sub.close()
	if ok {
		p.log.Debug("Subscriber removed", slog.String("subscriber", sub.id), slog.Int("subscribers", count))
	}
}

// Publish pushes the current snapshot to every subscriber. Publishes are
// serialized so each subscriber observes them in order.
func (p *Publisher) Publish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishLocked(p.source.Snapshot())
}

func (p *Publisher) publishLocked(snap []rendezvous.Entry) {
	p.last = snap
	for sub := range p.subs {
		sub.offer(snap)
	}
}

// Run republishes every interval until ctx is done, but only when the live
// set differs from the last published one. Entries that silently expire
// between sweeps reach viewers this way.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return nil
		case <-ticker.C:
			p.mu.Lock()
			snap := p.source.Snapshot()
			if !sameEntries(snap, p.last) {
				p.publishLocked(snap)
			}
			p.mu.Unlock()
		}
	}
}

// Count returns the number of live subscribers.
func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close removes every subscriber.
func (p *Publisher) Close() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[*Subscription]struct{})
	p.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

func sameEntries(a, b []rendezvous.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].LastSeen.Equal(b[i].LastSeen) {
			return false
		}
	}
	return true
}
