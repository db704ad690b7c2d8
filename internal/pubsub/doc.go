// Package pubsub provides in-memory, topic-keyed fan-out of values to
// subscribers.
//
// Subscribers register for a topic and receive every value published to it
// on a buffered channel. Publishing never blocks: a subscriber whose buffer
// is full misses the value. Subscriptions end when their context is
// cancelled, on Unsubscribe, or when the Broadcaster is closed.
package pubsub
