// ABOUTME: Shared conversation cache with whole-snapshot copy-on-write replacement
// ABOUTME: Readers compare snapshot pointers or subscribe to change notifications

package conversation

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/2389/coven-recipient/internal/pubsub"
)

// AllKeys is the subscription topic that receives every cache update.
const AllKeys = "*"

// Snapshot is an immutable view of the cache. Callers must not modify the
// records it returns.
type Snapshot struct {
	records map[string]*Record
	version uint64
}

// Get returns the record for key.
func (s *Snapshot) Get(key string) (*Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Version increases by one with every write.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Keys returns the keys in no particular order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// Records returns a copy of the underlying mapping.
func (s *Snapshot) Records() map[string]*Record {
	return maps.Clone(s.records)
}

// NewSnapshot builds a snapshot from a mapping. Records are indexed by their
// own Key, ignoring the mapping's keys.
func NewSnapshot(records map[string]*Record) *Snapshot {
	s := &Snapshot{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		if r != nil {
			s.records[r.Key()] = r.Clone()
		}
	}
	return s
}

// Update is published to subscribers after each write.
type Update struct {
	Snapshot *Snapshot
	// Key is the record that changed, or empty for a whole-cache write.
	Key string
}

// Cache is the conversation cache shared between the recipient state machine
// and the conversation view. It is safe for concurrent use.
type Cache struct {
	writeMu     sync.Mutex
	current     atomic.Pointer[Snapshot]
	broadcaster *pubsub.Broadcaster[Update]
	logger      *slog.Logger
}

// NewCache creates an empty cache. Pass nil logger for default.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		broadcaster: pubsub.New[Update](logger),
		logger:      logger.With("component", "conversation_cache"),
	}
	c.current.Store(&Snapshot{records: map[string]*Record{}})
	return c
}

// Read returns the current snapshot.
func (c *Cache) Read() *Snapshot {
	return c.current.Load()
}

// Len returns the number of cached conversations.
func (c *Cache) Len() int {
	return c.Read().Len()
}

// Write replaces the whole cache with next.
func (c *Cache) Write(next *Snapshot) {
	c.writeMu.Lock()
	prev := c.current.Load()
	s := &Snapshot{records: next.records, version: prev.version + 1}
	c.current.Store(s)
	c.writeMu.Unlock()

	c.logger.Debug("cache replaced", "records", s.Len(), "version", s.version)
	c.broadcaster.Publish(AllKeys, Update{Snapshot: s})
}

// Put adds or overwrites one record and returns the new snapshot. The
// previous snapshot is left untouched.
func (c *Cache) Put(r *Record) *Snapshot {
	key := r.Key()

	c.writeMu.Lock()
	prev := c.current.Load()
	records := maps.Clone(prev.records)
	records[key] = r.Clone()
	s := &Snapshot{records: records, version: prev.version + 1}
	c.current.Store(s)
	c.writeMu.Unlock()

	c.logger.Debug("conversation cached",
		"key", key,
		"peer_address", r.PeerAddress,
		"version", s.version)

	u := Update{Snapshot: s, Key: key}
	c.broadcaster.Publish(key, u)
	c.broadcaster.Publish(AllKeys, u)
	return s
}

// Subscribe returns a channel of updates for key, or for every update when
// key is AllKeys. The subscription ends when ctx is cancelled.
func (c *Cache) Subscribe(ctx context.Context, key string) <-chan Update {
	ch, _ := c.broadcaster.Subscribe(ctx, key)
	return ch
}

// Close ends all subscriptions.
func (c *Cache) Close() {
	c.broadcaster.Close()
}
