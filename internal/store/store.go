// ABOUTME: Directory interface and seed format for the local messaging network
// ABOUTME: Holds registered names, network members, and conversations between peers

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/coven-recipient/internal/conversation"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrNotMember is returned when creating a conversation with an address that
// is not on the network
var ErrNotMember = errors.New("address is not on the network")

// NameRecord maps a human-readable name to an address
type NameRecord struct {
	Name      string
	Address   string
	CreatedAt time.Time
}

// Directory is the local network: a name registry, a member list, and the
// conversations between members. It implements identity.NameService,
// identity.ReverseService, reachability.Messenger, and conversation.Creator.
type Directory interface {
	// Names
	RegisterName(ctx context.Context, name, addr string) error
	ResolveName(ctx context.Context, name string) (string, error)
	LookupName(ctx context.Context, addr string) (string, error)
	ListNames(ctx context.Context) ([]*NameRecord, error)

	// Members
	RegisterMember(ctx context.Context, addr string) error
	CanMessage(ctx context.Context, addr string) (bool, error)

	// Conversations
	NewConversation(ctx context.Context, peer string, opts *conversation.Options) (*conversation.Record, error)
	ListConversations(ctx context.Context) ([]*conversation.Record, error)

	Close() error
}

// Seed is the YAML document accepted by ApplySeed:
//
//	names:
//	  alice.example: "0x1111111111111111111111111111111111111111"
//	members:
//	  - "0x1111111111111111111111111111111111111111"
type Seed struct {
	Names   map[string]string `yaml:"names"`
	Members []string          `yaml:"members"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed registers every name and member in seed.
func ApplySeed(ctx context.Context, d Directory, seed *Seed) error {
	for name, addr := range seed.Names {
		if err := d.RegisterName(ctx, name, addr); err != nil {
			return fmt.Errorf("registering name %q: %w", name, err)
		}
	}
	for _, addr := range seed.Members {
		if err := d.RegisterMember(ctx, addr); err != nil {
			return fmt.Errorf("registering member %q: %w", addr, err)
		}
	}
	return nil
}
