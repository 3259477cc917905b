// Package mirror copies every published rendezvous snapshot into redis so
// other processes can read the live table without subscribing to the feed.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
)

const (
	KeyEntries = "sneakvlc:entries" // STRING. JSON array, same shape as the feed message.
	KeyLookup  = "sneakvlc:lookup"  // HASH. content hash -> descriptor of the most recent entry.

	writeTimeout = 5 * time.Second
)

// Client is the subset of *redis.Client the mirror uses.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type Mirror struct {
	cl  Client
	ttl time.Duration
	log *slog.Logger
}

// Open connects to the redis server at url and checks it answers.
func Open(ctx context.Context, url string, ttl time.Duration, log *slog.Logger) (*Mirror, *redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("cannot reach redis: %w", err)
	}
	return New(rdb, ttl, log), rdb, nil
}

func New(cl Client, ttl time.Duration, log *slog.Logger) *Mirror {
	return &Mirror{
		cl:  cl,
		ttl: ttl,
		log: log.With(slog.String("component", "mirror")),
	}
}

// Write stores entries under KeyEntries and rebuilds the KeyLookup hash.
// Both keys expire after the entry TTL so a dead server leaves nothing
// stale behind.
func (m *Mirror) Write(ctx context.Context, entries []rendezvous.Entry) error {
	if entries == nil {
		entries = []rendezvous.Entry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}

	if err := m.cl.Set(ctx, KeyEntries, payload, m.ttl).Err(); err != nil {
		return fmt.Errorf("cannot save snapshot: %w", err)
	}

	if err := m.cl.Del(ctx, KeyLookup).Err(); err != nil {
		return fmt.Errorf("cannot clear lookup: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	// Entries are ordered by creation time, so later ones overwrite earlier
	// ones offering the same hash.
	values := make([]interface{}, 0, 2*len(entries))
	for _, e := range entries {
		d := descriptor.Descriptor{Hash: e.Hash, IP: e.IP, Port: e.Port}
		values = append(values, e.Hash, d.String())
	}
	if err := m.cl.HSet(ctx, KeyLookup, values...).Err(); err != nil {
		return fmt.Errorf("cannot save lookup: %w", err)
	}
	if err := m.cl.Expire(ctx, KeyLookup, m.ttl).Err(); err != nil {
		return fmt.Errorf("cannot expire lookup: %w", err)
	}
	return nil
}

// Run writes every snapshot delivered on sub until ctx is done or the
// subscription ends. Write failures are logged and do not stop the loop.
func (m *Mirror) Run(ctx context.Context, sub *feed.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			m.clear()
			return nil
		case <-sub.Done():
			m.clear()
			return nil
		case entries := <-sub.C():
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			if err := m.Write(wctx, entries); err != nil {
				m.log.Error("Cannot mirror snapshot", slog.Int("entries", len(entries)), slog.Any("error", err))
			} else {
				m.log.Debug("Mirrored snapshot", slog.Int("entries", len(entries)))
			}
			cancel()
		}
	}
}

func (m *Mirror) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.cl.Del(ctx, KeyEntries, KeyLookup).Err(); err != nil {
		m.log.Warn("Cannot clear mirrored keys", slog.Any("error", err))
	}
}
