// ABOUTME: Resolves raw recipient input to an address via an external name service
// ABOUTME: Reports validity, name form, resolved pair, and loading state as a Resolution

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/2389/coven-recipient/internal/address"
)

// DefaultTimeout bounds a single name lookup.
const DefaultTimeout = 10 * time.Second

// ErrNameNotFound is returned by a NameService when the name has no address.
var ErrNameNotFound = errors.New("name not found")

// errBadAddress is wrapped when a name service returns a malformed address.
var errBadAddress = errors.New("name service returned malformed address")

// namePattern matches dot-separated labels with a non-empty final label.
var namePattern = regexp.MustCompile(`(?i)^[a-z0-9_-]+(\.[a-z0-9_-]+)*\.[a-z0-9-]+$`)

// NameService looks up the address registered for a name.
type NameService interface {
	ResolveName(ctx context.Context, name string) (string, error)
}

// ReverseService looks up the primary name registered for an address.
// Name services may optionally implement it.
type ReverseService interface {
	LookupName(ctx context.Context, addr string) (string, error)
}

// Resolution is the resolver's view of one input value.
type Resolution struct {
	Input   string
	Valid   bool
	IsName  bool
	Name    string
	Address string
	Loading bool
	// Err is set when a lookup failed for a reason other than the name not
	// existing. It is for logging; Valid is already false.
	Err error
}

// ResolutionError reports a failed name lookup.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver resolves recipient input through a NameService.
type Resolver struct {
	names   NameService
	reverse ReverseService
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a resolver. A non-positive timeout uses DefaultTimeout. If
// names also implements ReverseService it is used for ReverseName.
func New(names NameService, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Resolver{
		names:   names,
		timeout: timeout,
		logger:  logger.With("component", "resolver"),
	}
	if rev, ok := names.(ReverseService); ok {
		r.reverse = rev
	}
	return r
}

// IsNameForm reports whether raw looks like a resolvable name.
func (r *Resolver) IsNameForm(raw string) bool {
	s := strings.TrimSpace(raw)
	return address.Classify(s) == address.KindNameCandidate && namePattern.MatchString(s)
}

// Pending returns the in-progress resolution for a name-form input.
func (r *Resolver) Pending(raw string) Resolution {
	s := strings.TrimSpace(raw)
	return Resolution{Input: s, IsName: true, Name: s, Loading: true}
}

// Resolve produces the final resolution for raw. It blocks for at most the
// resolver timeout.
func (r *Resolver) Resolve(ctx context.Context, raw string) Resolution {
	s := strings.TrimSpace(raw)
	res := Resolution{Input: s}

	switch address.Classify(s) {
	case address.KindValidAddress:
		res.Valid = true
		res.Address = s
		return res
	case address.KindNameCandidate:
		if !namePattern.MatchString(s) {
			return res
		}
	default:
		return res
	}

	res.IsName = true
	res.Name = s

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	addr, err := r.names.ResolveName(lookupCtx, s)
	switch {
	case errors.Is(err, ErrNameNotFound):
		r.logger.Debug("name not found", "name", s)
		return res
	case err != nil:
		res.Err = &ResolutionError{Name: s, Err: err}
		return res
	case !address.IsValid(strings.TrimSpace(addr)):
		res.Err = &ResolutionError{Name: s, Err: fmt.Errorf("%w: %q", errBadAddress, addr)}
		return res
	}

	res.Valid = true
	res.Address = strings.TrimSpace(addr)
	r.logger.Debug("name resolved",
		"name", s,
		"address", res.Address,
		"duration", time.Since(start))
	return res
}

// ReverseName returns the primary name for addr, or "" if there is none or
// the name service cannot answer.
func (r *Resolver) ReverseName(ctx context.Context, addr string) string {
	if r.reverse == nil {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, err := r.reverse.LookupName(lookupCtx, addr)
	if err != nil {
		if !errors.Is(err, ErrNameNotFound) {
			r.logger.Debug("reverse lookup failed", "address", addr, "error", err)
		}
		return ""
	}
	return name
}
