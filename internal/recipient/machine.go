// ABOUTME: Event-driven state machine resolving recipient input to a reachable conversation peer
// ABOUTME: Owns the five-state status model and discards results from superseded inputs

package recipient

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/2389/coven-recipient/internal/address"
	"github.com/2389/coven-recipient/internal/conversation"
	"github.com/2389/coven-recipient/internal/identity"
	"github.com/2389/coven-recipient/internal/pubsub"
)

// eventBufferSize is the capacity of the machine's inbound event queue.
const eventBufferSize = 64

// topic is the broadcaster topic for machine events.
const topic = "recipient"

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("recipient machine already started")

// Resolver resolves raw input to an address.
type Resolver interface {
	IsNameForm(raw string) bool
	Pending(raw string) identity.Resolution
	Resolve(ctx context.Context, raw string) identity.Resolution
	ReverseName(ctx context.Context, addr string) string
}

// Checker reports whether an address is on the messaging network.
type Checker interface {
	Check(ctx context.Context, addr string) (bool, error)
}

// Upserter finds or creates a conversation without writing the cache.
type Upserter interface {
	Create(ctx context.Context, peer, threadID string) (*conversation.Record, error)
}

// Cache receives conversations once they are ready.
type Cache interface {
	Read() *conversation.Snapshot
	Put(r *conversation.Record) *conversation.Snapshot
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Resolver Resolver
	Checker  Checker
	Upserter Upserter
	Cache    Cache
	// WalletAddress is the current user's address, used for self-detection.
	WalletAddress string
	Logger        *slog.Logger
}

// EventType identifies a machine event.
type EventType string

const (
	// EventStatusChanged is emitted when the status changes.
	EventStatusChanged EventType = "status_changed"
	// EventRecipientUpdated is emitted when display fields change without a
	// status change, e.g. a reverse-looked-up name or canonical address.
	EventRecipientUpdated EventType = "recipient_updated"
	// EventConversationReady is emitted after a conversation is written to the cache.
	EventConversationReady EventType = "conversation_ready"
	// EventConversationFailed is emitted when a conversation could not be created.
	EventConversationFailed EventType = "conversation_failed"
)

// Event is published to subscribers after each state change.
type Event struct {
	Type         EventType
	Snapshot     Snapshot
	Conversation *conversation.Record
	Err          error
}

// Inbound events. Lookup completions carry the generation that issued them;
// conversation completions carry their key.
type (
	inputEvent    struct{ raw string }
	threadEvent   struct{ threadID string }
	dismissEvent  struct{}
	resolvedEvent struct {
		gen uint64
		res identity.Resolution
	}
	reverseEvent struct {
		gen  uint64
		name string
	}
	reachableEvent struct {
		gen  uint64
		addr string
		ok   bool
		err  error
	}
	upsertedEvent struct {
		key string
		rec *conversation.Record
		err error
	}
)

// Machine resolves recipient input. All state is owned by the goroutine
// running Run; other methods only enqueue events or read the published
// snapshot.
type Machine struct {
	deps        Deps
	logger      *slog.Logger
	events      chan any
	done        chan struct{}
	started     atomic.Bool
	published   atomic.Pointer[Snapshot]
	broadcaster *pubsub.Broadcaster[Event]

	// Loop-owned state.
	state Snapshot
	// target is the address that passed resolution, before any
	// canonicalization by the conversation.
	target string
	// lastProcessed is the conversation key last handed to the upserter.
	// It survives input changes so returning to the same recipient does not
	// create the conversation again.
	lastProcessed string
	// lastRecord is the conversation for lastProcessed once it has arrived.
	lastRecord *conversation.Record
}

// New creates a machine in StatusInvalidEntry. Call Run to start it.
func New(deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		deps:        deps,
		logger:      logger.With("component", "recipient"),
		events:      make(chan any, eventBufferSize),
		done:        make(chan struct{}),
		broadcaster: pubsub.New[Event](logger),
	}
	initial := m.state
	m.published.Store(&initial)
	return m
}

// Run processes events until ctx is cancelled. Asynchronous lookups started
// by the machine are cancelled with ctx.
func (m *Machine) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer func() {
		close(m.done)
		m.broadcaster.Close()
	}()

	m.logger.Debug("recipient machine started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("recipient machine stopped")
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// SetInput reports a change of the recipient field.
func (m *Machine) SetInput(raw string) {
	m.post(inputEvent{raw: raw})
}

// SetThread scopes the conversation to threadID. Empty selects the default
// conversation with the peer.
func (m *Machine) SetThread(threadID string) {
	m.post(threadEvent{threadID: threadID})
}

// Dismiss clears the field and resets the machine, as when the recipient
// view is closed.
func (m *Machine) Dismiss() {
	m.post(dismissEvent{})
}

// Snapshot returns the latest published state.
func (m *Machine) Snapshot() Snapshot {
	return *m.published.Load()
}

// Subscribe returns a channel of events published after ctx is registered.
// The channel closes when ctx is cancelled or the machine stops.
func (m *Machine) Subscribe(ctx context.Context) <-chan Event {
	ch, _ := m.broadcaster.Subscribe(ctx, topic)
	return ch
}

// post enqueues an event, dropping it if the machine has stopped.
func (m *Machine) post(ev any) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Machine) handle(ctx context.Context, ev any) {
	before := m.state

	var extra *Event
	switch ev := ev.(type) {
	case inputEvent:
		m.onInput(ctx, ev.raw)
	case threadEvent:
		m.onThread(ctx, ev.threadID)
	case dismissEvent:
		m.onDismiss()
	case resolvedEvent:
		m.onResolved(ctx, ev)
	case reverseEvent:
		m.onReverse(ev)
	case reachableEvent:
		m.onReachable(ctx, ev)
	case upsertedEvent:
		extra = m.onUpserted(ev)
	}

	m.publish(before, extra)
}

func (m *Machine) onInput(ctx context.Context, raw string) {
	if raw == m.state.Input {
		return
	}

	m.reset(raw)
	trimmed := strings.TrimSpace(raw)
	kind := address.Classify(trimmed)
	m.logger.Debug("input changed", "kind", kind.String(), "generation", m.state.Generation)

	switch kind {
	case address.KindValidAddress:
		m.spawnReverse(ctx, trimmed)
		m.validated(ctx, trimmed)
	case address.KindNameCandidate:
		if !m.deps.Resolver.IsNameForm(trimmed) {
			m.setStatus(StatusInvalidEntry)
			return
		}
		pending := m.deps.Resolver.Pending(trimmed)
		m.state.Name = pending.Name
		m.setStatus(StatusFindingEntry)
		m.spawnResolve(ctx, pending.Input)
	default:
		m.setStatus(StatusInvalidEntry)
	}
}

func (m *Machine) onThread(ctx context.Context, threadID string) {
	if threadID == m.state.ThreadID {
		return
	}
	m.state.ThreadID = threadID
	if m.state.Status == StatusOnNetwork {
		m.state.ConversationID = ""
		m.state.Address = m.target
		m.maybeUpsert(ctx)
	}
}

func (m *Machine) onDismiss() {
	m.reset("")
	m.forgetConversation()
	m.setStatus(StatusInvalidEntry)
}

func (m *Machine) forgetConversation() {
	m.lastProcessed = ""
	m.lastRecord = nil
}

// reset starts a new generation for raw, superseding every outstanding call.
func (m *Machine) reset(raw string) {
	gen := m.state.Generation + 1
	m.state = Snapshot{
		Status:     m.state.Status,
		Input:      raw,
		ThreadID:   m.state.ThreadID,
		Generation: gen,
	}
	m.target = ""
}

func (m *Machine) onResolved(ctx context.Context, ev resolvedEvent) {
	if m.stale(ev.gen, "resolution") {
		return
	}

	res := ev.res
	if res.Err != nil {
		m.logger.Warn("name resolution failed",
			"error_kind", "resolution",
			"name", res.Name,
			"error", res.Err)
	}
	if !res.Valid {
		m.state.Name = ""
		m.setStatus(StatusInvalidEntry)
		return
	}

	m.state.Name = res.Name
	m.validated(ctx, res.Address)
}

func (m *Machine) onReverse(ev reverseEvent) {
	if m.stale(ev.gen, "reverse lookup") {
		return
	}
	if m.state.Name == "" {
		m.state.Name = ev.name
	}
}

// validated is the transition into StatusSubmitted for a resolved address.
func (m *Machine) validated(ctx context.Context, addr string) {
	m.target = addr
	m.state.Address = addr
	m.setStatus(StatusSubmitted)
	m.spawnCheck(ctx, addr)
}

func (m *Machine) onReachable(ctx context.Context, ev reachableEvent) {
	if m.stale(ev.gen, "reachability") {
		return
	}

	switch {
	case ev.err != nil:
		m.logger.Warn("reachability check failed",
			"error_kind", "reachability",
			"address", ev.addr,
			"error", ev.err)
		m.setStatus(StatusNotOnNetwork)
	case !ev.ok:
		m.setStatus(StatusNotOnNetwork)
	default:
		m.setStatus(StatusOnNetwork)
		m.maybeUpsert(ctx)
	}
}

// currentKey is the conversation key for the current target and thread.
func (m *Machine) currentKey() string {
	return conversation.Key(m.target, m.state.ThreadID)
}

// maybeUpsert starts conversation creation once per distinct target and
// thread. The key uses the pre-canonicalization target so a canonical
// address coming back from the upsert cannot retrigger it.
func (m *Machine) maybeUpsert(ctx context.Context) {
	if m.state.Status != StatusOnNetwork || m.target == "" {
		return
	}
	key := m.currentKey()
	if key == m.lastProcessed {
		if m.lastRecord != nil {
			m.applyConversation(m.lastRecord)
		}
		// Otherwise the earlier call is still in flight and will land here.
		return
	}
	m.forgetConversation()
	m.lastProcessed = key
	m.spawnUpsert(ctx, key, m.target, m.state.ThreadID)
}

// onUpserted accepts a conversation for the key last handed to the upserter.
// It only reaches the cache if that key is still the current recipient.
func (m *Machine) onUpserted(ev upsertedEvent) *Event {
	if ev.key != m.lastProcessed {
		m.logger.Debug("discarding conversation for superseded key", "key", ev.key)
		return nil
	}
	current := m.state.Status == StatusOnNetwork && m.currentKey() == ev.key

	if ev.err != nil {
		m.forgetConversation()
		if !current {
			m.logger.Debug("discarding stale result", "result", "conversation", "key", ev.key)
			return nil
		}
		m.logger.Error("conversation creation failed",
			"error_kind", "creation",
			"key", ev.key,
			"error", ev.err)
		m.state.Notice = TextCreationFailed
		m.setStatus(StatusNotOnNetwork)
		return &Event{Type: EventConversationFailed, Err: ev.err}
	}

	m.lastRecord = ev.rec
	if !current {
		m.logger.Debug("discarding stale result", "result", "conversation", "key", ev.key)
		return nil
	}
	m.applyConversation(ev.rec)
	return &Event{Type: EventConversationReady, Conversation: ev.rec}
}

// applyConversation shows rec as the current conversation. The cache is only
// written when it does not already hold rec, so returning to an earlier
// recipient does not publish a new snapshot.
func (m *Machine) applyConversation(rec *conversation.Record) {
	if cached, ok := m.deps.Cache.Read().Get(rec.Key()); !ok || cached.ID != rec.ID {
		m.deps.Cache.Put(rec)
	}
	m.state.ConversationID = rec.ID
	if rec.PeerAddress != "" {
		m.state.Address = rec.PeerAddress
	}
}

func (m *Machine) stale(gen uint64, what string) bool {
	if gen == m.state.Generation {
		return false
	}
	m.logger.Debug("discarding stale result",
		"result", what,
		"generation", gen,
		"current", m.state.Generation)
	return true
}

func (m *Machine) setStatus(s Status) {
	if s != StatusNotOnNetwork {
		m.state.Notice = ""
	}
	m.state.Status = s
}

// publish stores the new snapshot and notifies subscribers of what changed.
func (m *Machine) publish(before Snapshot, extra *Event) {
	m.state.IsSelf = isSelf(m.deps.WalletAddress, m.state)
	snap := m.state
	m.published.Store(&snap)

	if snap.Status != before.Status {
		m.logger.Debug("status changed",
			"from", before.Status.String(),
			"to", snap.Status.String(),
			"generation", snap.Generation)
		m.broadcaster.Publish(topic, Event{Type: EventStatusChanged, Snapshot: snap})
	} else if snap != before && extra == nil {
		m.broadcaster.Publish(topic, Event{Type: EventRecipientUpdated, Snapshot: snap})
	}

	if extra != nil {
		extra.Snapshot = snap
		m.broadcaster.Publish(topic, *extra)
	}
}

func (m *Machine) spawnResolve(ctx context.Context, raw string) {
	gen := m.state.Generation
	go func() {
		res := m.deps.Resolver.Resolve(ctx, raw)
		m.post(resolvedEvent{gen: gen, res: res})
	}()
}

func (m *Machine) spawnReverse(ctx context.Context, addr string) {
	gen := m.state.Generation
	go func() {
		if name := m.deps.Resolver.ReverseName(ctx, addr); name != "" {
			m.post(reverseEvent{gen: gen, name: name})
		}
	}()
}

func (m *Machine) spawnCheck(ctx context.Context, addr string) {
	gen := m.state.Generation
	go func() {
		ok, err := m.deps.Checker.Check(ctx, addr)
		m.post(reachableEvent{gen: gen, addr: addr, ok: ok, err: err})
	}()
}

func (m *Machine) spawnUpsert(ctx context.Context, key, peer, threadID string) {
	go func() {
		rec, err := m.deps.Upserter.Create(ctx, peer, threadID)
		m.post(upsertedEvent{key: key, rec: rec, err: err})
	}()
}
