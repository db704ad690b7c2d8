// Package conversation finds or creates conversations with a resolved peer
// and keeps them in a shared, copy-on-write cache.
//
// # Keys
//
// A conversation is identified by its peer address plus an optional thread
// id:
//
//	key := conversation.Key("0xAbC...", "support")
//
// Peer addresses are compared case-insensitively, so the checksummed and
// lowercase forms of the same address share a key.
//
// # Cache
//
// Cache holds an immutable Snapshot. Every write builds a new Snapshot and
// swaps it in whole, so a reader holding an old Snapshot never observes a
// partial update and can detect changes by pointer comparison:
//
//	before := cache.Read()
//	cache.Put(record)
//	changed := cache.Read() != before
//
// Subscribers are notified of each new Snapshot, either for one key or for
// AllKeys.
//
// # Upserter
//
// Upserter wraps the messaging client's conversation creation. Calls are
// memoized by key: concurrent callers for the same key share one in-flight
// request, and a completed record is returned from memory for the rest of
// the session. Failed creations are not remembered, so a later call tries
// again.
package conversation
