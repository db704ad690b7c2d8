// ABOUTME: Tests for conversation keys, the copy-on-write cache, and the memoized upserter
// ABOUTME: Covers idempotence, thread scoping, failure handling, and change notification

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	peerLower   = "0x" + strings.Repeat("ab", 20)
	peerChecked = "0x" + strings.Repeat("AB", 20)
)

// fakeCreator records calls and can block or fail on demand.
type fakeCreator struct {
	mu      sync.Mutex
	calls   []fakeCall
	gate    chan struct{}
	err     error
	canonFn func(string) string
}

type fakeCall struct {
	peer string
	opts *Options
}

func (f *fakeCreator) NewConversation(ctx context.Context, peer string, opts *Options) (*Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{peer: peer, opts: opts})
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	canonical := peer
	if f.canonFn != nil {
		canonical = f.canonFn(peer)
	}
	rec := &Record{ID: "conv-" + peer, PeerAddress: canonical, CreatedAt: time.Now()}
	if opts != nil {
		rec.ThreadID = opts.ThreadID
		rec.Metadata = opts.Metadata
	}
	return rec, nil
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestKey(t *testing.T) {
	assert.Equal(t, peerLower, Key(peerChecked, ""))
	assert.Equal(t, peerLower+"/support", Key(peerLower, "support"))
	assert.Equal(t, Key(peerChecked, "t"), Key(peerLower, "t"))
	assert.NotEqual(t, Key(peerLower, "a"), Key(peerLower, "b"))
}

func TestCache_PutReplacesSnapshot(t *testing.T) {
	c := NewCache(nil)
	defer c.Close()

	before := c.Read()
	after := c.Put(&Record{ID: "1", PeerAddress: peerLower})

	assert.NotSame(t, before, after)
	assert.Same(t, after, c.Read())
	assert.Equal(t, 0, before.Len(), "old snapshot must not change")
	assert.Equal(t, 1, after.Len())
	assert.Equal(t, before.Version()+1, after.Version())

	_, ok := after.Get(Key(peerChecked, ""))
	assert.True(t, ok)
}

func TestCache_PutOverwritesSameKey(t *testing.T) {
	c := NewCache(nil)
	defer c.Close()

	c.Put(&Record{ID: "1", PeerAddress: peerLower})
	c.Put(&Record{ID: "2", PeerAddress: peerChecked})

	snap := c.Read()
	require.Equal(t, 1, snap.Len())
	rec, _ := snap.Get(Key(peerLower, ""))
	assert.Equal(t, "2", rec.ID)
}

func TestCache_PutCopiesRecord(t *testing.T) {
	c := NewCache(nil)
	defer c.Close()

	r := &Record{ID: "1", PeerAddress: peerLower, Metadata: map[string]string{"k": "v"}}
	c.Put(r)
	r.Metadata["k"] = "changed"

	got, _ := c.Read().Get(r.Key())
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestCache_WriteReplacesWhole(t *testing.T) {
	c := NewCache(nil)
	defer c.Close()

	c.Put(&Record{ID: "1", PeerAddress: peerLower})
	c.Write(NewSnapshot(map[string]*Record{
		"ignored": {ID: "2", PeerAddress: peerLower, ThreadID: "t"},
	}))

	snap := c.Read()
	assert.Equal(t, 1, snap.Len())
	_, ok := snap.Get(Key(peerLower, "t"))
	assert.True(t, ok)
	assert.Equal(t, uint64(2), snap.Version())
}

func TestCache_Subscribe(t *testing.T) {
	c := NewCache(nil)
	defer c.Close()

	key := Key(peerLower, "")
	byKey := c.Subscribe(t.Context(), key)
	all := c.Subscribe(t.Context(), AllKeys)

	c.Put(&Record{ID: "1", PeerAddress: peerLower})

	for _, ch := range []<-chan Update{byKey, all} {
		select {
		case u := <-ch:
			assert.Equal(t, key, u.Key)
			assert.Equal(t, 1, u.Snapshot.Len())
		case <-time.After(time.Second):
			t.Fatal("no update received")
		}
	}
}

func TestUpserter_DefaultConversation(t *testing.T) {
	creator := &fakeCreator{}
	u := NewUpserter(creator, nil)

	rec, err := u.Create(t.Context(), peerLower, "")
	require.NoError(t, err)
	assert.Equal(t, peerLower, rec.PeerAddress)
	assert.Empty(t, rec.ThreadID)

	require.Equal(t, 1, creator.callCount())
	assert.Nil(t, creator.calls[0].opts)
	assert.Equal(t, Key(peerLower, ""), rec.Key())
}

func TestUpserter_ThreadEqualToPeerUsesDefault(t *testing.T) {
	creator := &fakeCreator{}
	u := NewUpserter(creator, nil)

	rec, err := u.Create(t.Context(), peerLower, peerChecked)
	require.NoError(t, err)
	assert.Empty(t, rec.ThreadID)
	assert.Nil(t, creator.calls[0].opts)
	assert.Equal(t, Key(peerLower, ""), rec.Key())
}

func TestUpserter_ScopedConversation(t *testing.T) {
	creator := &fakeCreator{}
	u := NewUpserter(creator, nil)

	rec, err := u.Create(t.Context(), peerLower, "support")
	require.NoError(t, err)
	assert.Equal(t, "support", rec.ThreadID)

	require.NotNil(t, creator.calls[0].opts)
	assert.Equal(t, "support", creator.calls[0].opts.ThreadID)
	assert.NotNil(t, creator.calls[0].opts.Metadata)
	assert.Empty(t, creator.calls[0].opts.Metadata)
	assert.Equal(t, Key(peerLower, "support"), rec.Key())
}

func TestUpserter_RepeatedCallsCreateOnce(t *testing.T) {
	creator := &fakeCreator{}
	u := NewUpserter(creator, nil)

	for range 3 {
		_, err := u.Create(t.Context(), peerLower, "t")
		require.NoError(t, err)
	}
	_, err := u.Create(t.Context(), peerChecked, "t")
	require.NoError(t, err)

	assert.Equal(t, 1, creator.callCount())
}

func TestUpserter_ConcurrentCallsShareInFlight(t *testing.T) {
	creator := &fakeCreator{gate: make(chan struct{})}
	u := NewUpserter(creator, nil)

	var wg sync.WaitGroup
	results := make([]*Record, 5)
	for i := range results {
		wg.Go(func() {
			rec, err := u.Create(t.Context(), peerLower, "")
			assert.NoError(t, err)
			results[i] = rec
		})
	}

	require.Eventually(t, func() bool { return creator.callCount() == 1 }, time.Second, 5*time.Millisecond)
	close(creator.gate)
	wg.Wait()

	assert.Equal(t, 1, creator.callCount())
	for _, rec := range results {
		require.NotNil(t, rec)
		assert.Equal(t, "conv-"+peerLower, rec.ID)
	}
}

func TestUpserter_FailureIsNotMemoized(t *testing.T) {
	creator := &fakeCreator{err: errors.New("network down")}
	u := NewUpserter(creator, nil)

	_, err := u.Create(t.Context(), peerLower, "")
	var cerr *CreationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, peerLower, cerr.PeerAddress)

	creator.mu.Lock()
	creator.err = nil
	creator.mu.Unlock()

	_, err = u.Create(t.Context(), peerLower, "")
	require.NoError(t, err)
	assert.Equal(t, 2, creator.callCount())
}

func TestUpserter_CanonicalPeerAddress(t *testing.T) {
	creator := &fakeCreator{canonFn: func(string) string { return peerChecked }}
	u := NewUpserter(creator, nil)

	rec, err := u.Create(t.Context(), peerLower, "")
	require.NoError(t, err)
	assert.Equal(t, peerChecked, rec.PeerAddress)

	assert.Equal(t, Key(peerLower, ""), rec.Key(), "canonical and input address share a key")
}

func TestUpserter_NilRecordIsError(t *testing.T) {
	u := NewUpserter(nilCreator{}, nil)
	_, err := u.Create(t.Context(), peerLower, "")
	assert.ErrorIs(t, err, errNoConversation)
}

type nilCreator struct{}

func (nilCreator) NewConversation(context.Context, string, *Options) (*Record, error) {
	return nil, nil
}
