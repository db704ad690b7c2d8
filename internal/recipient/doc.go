// Package recipient drives the "To:" field of a new conversation: it turns
// whatever the user typed into a reachable peer and a ready conversation.
//
// # States
//
// A Machine is always in exactly one Status:
//
//	InvalidEntry  --(name being resolved)------> FindingEntry
//	InvalidEntry  --(address or resolved name)-> Submitted
//	FindingEntry  --(resolution succeeds)------> Submitted
//	FindingEntry  --(resolution fails)---------> InvalidEntry
//	Submitted     --(reachable)----------------> OnNetwork
//	Submitted     --(unreachable or error)-----> NotOnNetwork
//	OnNetwork / NotOnNetwork --(new input)-----> any of the first three
//
// Entering OnNetwork creates (or fetches) the conversation once per distinct
// address and thread and writes it to the shared conversation cache.
//
// # Events
//
// The machine is driven by events rather than by a rendering framework:
//
//	m := recipient.New(recipient.Deps{...})
//	go m.Run(ctx)
//	updates := m.Subscribe(ctx)
//	m.SetInput("alice.example")
//
// Run processes events on a single goroutine. Name resolution, reachability
// checks, and conversation creation run in the background and report back
// to that goroutine.
//
// # Stale Results
//
// Every input change starts a new generation. Background results carry the
// generation that issued them, and results from an older generation are
// dropped without touching the status or the cache. A slow lookup for a
// previous input therefore never overwrites the state of the current one.
//
// # Failures
//
// Lookup failures fold into InvalidEntry, reachability failures into
// NotOnNetwork, and conversation creation failures into NotOnNetwork with a
// "could not start conversation" notice. Each is logged with its own
// error_kind. Nothing is retried until the input changes.
package recipient
