// ABOUTME: Find-or-create conversations with a peer, memoized per conversation key
// ABOUTME: Guarantees at most one creation call per (peer, thread) pair per session

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// errNoConversation is wrapped when a creator returns neither a record nor an error.
var errNoConversation = errors.New("creator returned no conversation")

// Creator is the messaging client's conversation factory. opts is nil for the
// default conversation with the peer.
type Creator interface {
	NewConversation(ctx context.Context, peerAddress string, opts *Options) (*Record, error)
}

// CreationError reports a failed conversation creation.
type CreationError struct {
	PeerAddress string
	ThreadID    string
	Err         error
}

func (e *CreationError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("creating conversation with %s (thread %s): %v", e.PeerAddress, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("creating conversation with %s: %v", e.PeerAddress, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// call is one in-flight or completed creation.
type call struct {
	done chan struct{}
	rec  *Record
	err  error
}

// Upserter finds or creates conversations. Callers decide whether a result
// is still wanted before writing it to a Cache.
type Upserter struct {
	creator Creator
	logger  *slog.Logger

	mu    sync.Mutex
	calls map[string]*call
}

// NewUpserter creates an upserter. Pass nil logger for default.
func NewUpserter(creator Creator, logger *slog.Logger) *Upserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{
		creator: creator,
		logger:  logger.With("component", "upserter"),
		calls:   make(map[string]*call),
	}
}

// Create returns the conversation with peer, creating it on first use. A
// threadID that is empty or equal to the peer address selects the default
// conversation. It does not touch the cache.
func (u *Upserter) Create(ctx context.Context, peer, threadID string) (*Record, error) {
	thread := threadID
	if !isScoped(peer, threadID) {
		thread = ""
	}
	key := Key(peer, thread)

	u.mu.Lock()
	if c, ok := u.calls[key]; ok {
		u.mu.Unlock()
		u.logger.Debug("joining existing conversation call", "key", key)
		select {
		case <-c.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if c.err != nil {
			return nil, c.err
		}
		return c.rec.Clone(), nil
	}
	c := &call{done: make(chan struct{})}
	u.calls[key] = c
	u.mu.Unlock()

	var opts *Options
	if thread != "" {
		opts = &Options{ThreadID: thread, Metadata: map[string]string{}}
	}

	rec, err := u.creator.NewConversation(ctx, peer, opts)
	if err == nil && rec == nil {
		err = errNoConversation
	}
	if err != nil {
		c.err = &CreationError{PeerAddress: peer, ThreadID: thread, Err: err}
		u.mu.Lock()
		delete(u.calls, key)
		u.mu.Unlock()
		close(c.done)
		return nil, c.err
	}

	rec = rec.Clone()
	if rec.PeerAddress == "" {
		rec.PeerAddress = peer
	}
	if rec.ThreadID == "" {
		rec.ThreadID = thread
	}
	c.rec = rec
	close(c.done)

	u.logger.Info("conversation ready",
		"key", key,
		"conversation_id", rec.ID,
		"peer_address", rec.PeerAddress)
	return rec.Clone(), nil
}
