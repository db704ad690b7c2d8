// ABOUTME: Mock Directory implementation for testing
// ABOUTME: Keeps names, members, and conversations in memory with optional failure injection

package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-recipient/internal/address"
	"github.com/2389/coven-recipient/internal/conversation"
	"github.com/2389/coven-recipient/internal/identity"
)

// MockStore is an in-memory Directory implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	names         map[string]*NameRecord          // keyed by lowercased name
	members       map[string]time.Time            // keyed by lowercased address
	conversations map[string]*conversation.Record // keyed by conversation.Key
	order         []string                        // conversation keys in creation order
	failures      map[string]error                // keyed by method name
	calls         map[string]int                  // keyed by method name
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		names:         make(map[string]*NameRecord),
		members:       make(map[string]time.Time),
		conversations: make(map[string]*conversation.Record),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (m *MockStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// Calls returns how many times method has been invoked.
func (m *MockStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// enter records a call and returns the injected failure, if any.
// Caller must hold the write lock.
func (m *MockStore) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

// RegisterName maps name to addr.
func (m *MockStore) RegisterName(ctx context.Context, name, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RegisterName"); err != nil {
		return err
	}

	n := normalizeName(name)
	if n == "" {
		return errors.New("name is required")
	}
	if !address.IsValid(addr) {
		return fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}

	if rec, ok := m.names[n]; ok {
		rec.Address = address.Lower(addr)
		return nil
	}
	m.names[n] = &NameRecord{Name: n, Address: address.Lower(addr), CreatedAt: time.Now().UTC()}
	return nil
}

// ResolveName returns the address registered for name.
func (m *MockStore) ResolveName(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ResolveName"); err != nil {
		return "", err
	}

	rec, ok := m.names[normalizeName(name)]
	if !ok {
		return "", identity.ErrNameNotFound
	}
	return rec.Address, nil
}

// LookupName returns the earliest name registered for addr.
func (m *MockStore) LookupName(ctx context.Context, addr string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("LookupName"); err != nil {
		return "", err
	}

	var best *NameRecord
	for _, rec := range m.names {
		if !address.Equal(rec.Address, addr) {
			continue
		}
		if best == nil || rec.CreatedAt.Before(best.CreatedAt) ||
			(rec.CreatedAt.Equal(best.CreatedAt) && rec.Name < best.Name) {
			best = rec
		}
	}
	if best == nil {
		return "", identity.ErrNameNotFound
	}
	return best.Name, nil
}

// ListNames returns every registered name ordered by name.
func (m *MockStore) ListNames(ctx context.Context) ([]*NameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListNames"); err != nil {
		return nil, err
	}

	out := make([]*NameRecord, 0, len(m.names))
	for _, rec := range m.names {
		c := *rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RegisterMember adds addr to the network.
func (m *MockStore) RegisterMember(ctx context.Context, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RegisterMember"); err != nil {
		return err
	}

	if !address.IsValid(addr) {
		return fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}
	key := address.Lower(addr)
	if _, ok := m.members[key]; !ok {
		m.members[key] = time.Now().UTC()
	}
	return nil
}

// CanMessage reports whether addr is a member of the network.
func (m *MockStore) CanMessage(ctx context.Context, addr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CanMessage"); err != nil {
		return false, err
	}

	if !address.IsValid(addr) {
		return false, fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}
	_, ok := m.members[address.Lower(addr)]
	return ok, nil
}

// NewConversation finds or creates the conversation with peer.
func (m *MockStore) NewConversation(ctx context.Context, peer string, opts *conversation.Options) (*conversation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NewConversation"); err != nil {
		return nil, err
	}

	canonical, err := address.Checksum(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, peer)
	}
	if _, ok := m.members[address.Lower(peer)]; !ok {
		return nil, ErrNotMember
	}

	var threadID string
	metadata := map[string]string{}
	if opts != nil {
		threadID = opts.ThreadID
		maps.Copy(metadata, opts.Metadata)
	}

	key := conversation.Key(peer, threadID)
	if rec, ok := m.conversations[key]; ok {
		return rec.Clone(), nil
	}

	rec := &conversation.Record{
		ID:          uuid.New().String(),
		PeerAddress: canonical,
		ThreadID:    threadID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	m.conversations[key] = rec
	m.order = append(m.order, key)
	return rec.Clone(), nil
}

// ListConversations returns every conversation in creation order.
func (m *MockStore) ListConversations(ctx context.Context) ([]*conversation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListConversations"); err != nil {
		return nil, err
	}

	out := make([]*conversation.Record, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.conversations[key].Clone())
	}
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var _ Directory = (*MockStore)(nil)
var _ Directory = (*SQLiteStore)(nil)
