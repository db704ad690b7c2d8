// ABOUTME: Recipient resolution status values and the snapshot exposed to views
// ABOUTME: Maps each status to the user-facing subtext shown under the recipient field

package recipient

import (
	"github.com/2389/coven-recipient/internal/address"
)

// Status is the resolution state of the recipient field.
type Status int

const (
	StatusInvalidEntry Status = iota
	StatusFindingEntry
	StatusSubmitted
	StatusNotOnNetwork
	StatusOnNetwork
)

// User-facing subtext.
const (
	TextNotOnNetwork   = "recipient is not reachable on the network"
	TextFindingEntry   = "resolving name…"
	TextInvalidEntry   = "enter a valid address"
	TextCreationFailed = "could not start conversation"
)

func (s Status) String() string {
	switch s {
	case StatusInvalidEntry:
		return "invalid_entry"
	case StatusFindingEntry:
		return "finding_entry"
	case StatusSubmitted:
		return "submitted"
	case StatusNotOnNetwork:
		return "not_on_network"
	case StatusOnNetwork:
		return "on_network"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the machine at one point in time.
type Snapshot struct {
	Status   Status
	Input    string
	ThreadID string
	// Name is the resolved or reverse-looked-up name, if any.
	Name string
	// Address is the recipient address to display. After a conversation is
	// ready it is the conversation's canonical peer address.
	Address        string
	ConversationID string
	IsSelf         bool
	// Notice overrides the status subtext, e.g. after a creation failure.
	Notice     string
	Generation uint64
}

// ConversationVisible reports whether the conversation view should render.
func (s Snapshot) ConversationVisible() bool {
	return s.Status == StatusOnNetwork
}

// Settled reports whether no further transition is expected without new input.
func (s Snapshot) Settled() bool {
	switch s.Status {
	case StatusInvalidEntry, StatusNotOnNetwork:
		return true
	case StatusOnNetwork:
		return s.ConversationID != ""
	default:
		return false
	}
}

// Subtext returns the text shown under the recipient field.
func (s Snapshot) Subtext() string {
	if s.Notice != "" {
		return s.Notice
	}
	switch s.Status {
	case StatusNotOnNetwork:
		return TextNotOnNetwork
	case StatusFindingEntry:
		return TextFindingEntry
	case StatusInvalidEntry:
		return TextInvalidEntry
	default:
		if s.Name != "" {
			return s.Address
		}
		return ""
	}
}

// Label is what the recipient pill shows: the name when known, else the
// address or raw input.
func (s Snapshot) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Address != "":
		return s.Address
	default:
		return s.Input
	}
}

func isSelf(wallet string, s Snapshot) bool {
	if s.Address != "" {
		return address.Equal(wallet, s.Address)
	}
	return address.Equal(wallet, s.Input)
}
