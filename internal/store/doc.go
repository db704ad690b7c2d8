// Package store provides the local messaging network used by the
// coven-recipient binary.
//
// # Directory
//
// A Directory plays the part of the external services the recipient field
// depends on:
//
//   - Name registry: ResolveName and LookupName map names to addresses and back
//   - Membership: CanMessage reports whether an address is on the network
//   - Conversations: NewConversation finds or creates a conversation with a
//     member, optionally scoped to a thread
//
// Addresses are stored lowercase and returned in checksummed form, so a
// conversation's peer address may differ in case from what the user typed.
//
// # Implementations
//
// SQLiteStore persists the directory with modernc.org/sqlite. MockStore keeps
// it in memory and can inject failures for tests.
//
// # Seeding
//
// A YAML seed file populates a directory:
//
//	names:
//	  alice.example: "0x1111111111111111111111111111111111111111"
//	members:
//	  - "0x1111111111111111111111111111111111111111"
//
// Load it with LoadSeed and apply it with ApplySeed.
package store
