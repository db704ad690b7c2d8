// ABOUTME: Conversation record type, creation options, and deterministic key derivation
// ABOUTME: Keys combine a case-folded peer address with an optional thread id

package conversation

import (
	"maps"
	"strings"
	"time"

	"github.com/2389/coven-recipient/internal/address"
)

// keySeparator cannot appear in an address.
const keySeparator = "/"

// Record is a conversation with a single peer, optionally scoped to a thread.
type Record struct {
	ID          string
	PeerAddress string
	ThreadID    string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Key returns the cache key for the record.
func (r *Record) Key() string {
	return Key(r.PeerAddress, r.ThreadID)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	return &c
}

// Options scope a new conversation to a thread.
type Options struct {
	ThreadID string
	Metadata map[string]string
}

// Key derives the deterministic conversation key for a peer and thread.
// An empty threadID means the default conversation with the peer.
func Key(peer, threadID string) string {
	p := address.Lower(peer)
	if threadID == "" {
		return p
	}
	return p + keySeparator + threadID
}

// isScoped reports whether threadID selects a thread-scoped conversation
// rather than the default one.
func isScoped(peer, threadID string) bool {
	return threadID != "" && !strings.EqualFold(threadID, peer)
}
