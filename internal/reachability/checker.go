// ABOUTME: Asks the messaging client whether an address can receive messages
// ABOUTME: Bounds each query with a timeout and remembers recent positive answers

package reachability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-recipient/internal/address"
	"github.com/2389/coven-recipient/internal/dedupe"
)

// DefaultTimeout bounds a single reachability query.
const DefaultTimeout = 10 * time.Second

// Messenger is the messaging client's membership predicate.
type Messenger interface {
	CanMessage(ctx context.Context, addr string) (bool, error)
}

// Error reports a reachability query that could not be answered.
type Error struct {
	Address string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checking reachability of %s: %v", e.Address, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Checker answers whether an address is on the messaging network.
type Checker struct {
	messenger Messenger
	timeout   time.Duration
	known     *dedupe.Cache
	logger    *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout sets the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithKnownCache remembers positive answers in cache so repeat checks for a
// recently reachable address skip the query.
func WithKnownCache(cache *dedupe.Cache) Option {
	return func(c *Checker) {
		c.known = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a checker.
func New(messenger Messenger, opts ...Option) *Checker {
	c := &Checker{
		messenger: messenger,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "reachability")
	return c
}

// Check reports whether addr can receive messages. A failed query returns
// false and an *Error; callers that only care about the answer can treat
// both the same way.
func (c *Checker) Check(ctx context.Context, addr string) (bool, error) {
	key := address.Lower(addr)
	if c.known != nil && c.known.Check(key) {
		c.logger.Debug("reachability answered from cache", "address", addr)
		return true, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.messenger.CanMessage(queryCtx, addr)
	if err != nil {
		if c.known != nil {
			c.known.Forget(key)
		}
		return false, &Error{Address: addr, Err: err}
	}

	if c.known != nil {
		if ok {
			c.known.Mark(key)
		} else {
			c.known.Forget(key)
		}
	}
	c.logger.Debug("reachability checked", "address", addr, "reachable", ok)
	return ok, nil
}
