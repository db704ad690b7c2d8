// ABOUTME: Wires the directory, resolver, reachability checker, and conversation cache into a recipient machine
// ABOUTME: Also renders machine snapshots and directory listings for the terminal

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-recipient/internal/config"
	"github.com/2389/coven-recipient/internal/conversation"
	"github.com/2389/coven-recipient/internal/dedupe"
	"github.com/2389/coven-recipient/internal/identity"
	"github.com/2389/coven-recipient/internal/reachability"
	"github.com/2389/coven-recipient/internal/recipient"
	"github.com/2389/coven-recipient/internal/store"
)

// app holds one session: a recipient machine and everything it depends on.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	dir     store.Directory
	known   *dedupe.Cache
	cache   *conversation.Cache
	machine *recipient.Machine
}

// newApp wires a session over dir. Conversations already in the directory
// are loaded into the cache.
func newApp(ctx context.Context, cfg *config.Config, dir store.Directory, logger *slog.Logger) (*app, error) {
	existing, err := dir.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading conversations: %w", err)
	}
	records := make(map[string]*conversation.Record, len(existing))
	for _, rec := range existing {
		records[rec.Key()] = rec
	}

	cache := conversation.NewCache(logger)
	cache.Write(conversation.NewSnapshot(records))

	known := dedupe.New(cfg.Reachability.CacheTTL, cfg.Reachability.CacheSize, dedupe.DefaultSweepInterval)

	machine := recipient.New(recipient.Deps{
		Resolver: identity.New(dir, cfg.Resolver.Timeout, logger),
		Checker: reachability.New(dir,
			reachability.WithTimeout(cfg.Reachability.Timeout),
			reachability.WithKnownCache(known),
			reachability.WithLogger(logger),
		),
		Upserter:      conversation.NewUpserter(dir, logger),
		Cache:         cache,
		WalletAddress: cfg.Wallet.Address,
		Logger:        logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		dir:     dir,
		known:   known,
		cache:   cache,
		machine: machine,
	}, nil
}

// Close releases the session's resources, including the directory.
func (a *app) Close() error {
	a.known.Close()
	a.cache.Close()
	return a.dir.Close()
}

// resolveOnce runs the machine for a single input and returns the first
// settled snapshot for it.
func (a *app) resolveOnce(ctx context.Context, input, thread string, timeout time.Duration) (recipient.Snapshot, error) {
	if strings.TrimSpace(input) == "" {
		return a.machine.Snapshot(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	events := a.machine.Subscribe(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.machine.Run(ctx)
	}()

	if thread == "" {
		thread = a.cfg.Conversations.ThreadID
	}
	if thread != "" {
		a.machine.SetThread(thread)
	}
	a.machine.SetInput(input)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return a.machine.Snapshot(), fmt.Errorf("recipient machine stopped: %w", <-errCh)
			}
			if ev.Snapshot.Input == input && ev.Snapshot.Settled() {
				return ev.Snapshot, nil
			}
		case <-ctx.Done():
			return a.machine.Snapshot(), fmt.Errorf("waiting for %q to resolve: %w", input, ctx.Err())
		}
	}
}

var (
	bold   = color.New(color.Bold)
	gray   = color.New(color.FgHiBlack)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
)

func statusColor(s recipient.Status) *color.Color {
	switch s {
	case recipient.StatusOnNetwork:
		return green
	case recipient.StatusNotOnNetwork:
		return red
	case recipient.StatusFindingEntry, recipient.StatusSubmitted:
		return yellow
	default:
		return gray
	}
}

// render prints the recipient field for a snapshot.
func render(w io.Writer, s recipient.Snapshot) {
	statusColor(s.Status).Fprintf(w, "[%s] ", s.Status)
	bold.Fprint(w, s.Label())
	if s.IsSelf {
		gray.Fprint(w, " (you)")
	}
	fmt.Fprintln(w)

	if sub := s.Subtext(); sub != "" {
		gray.Fprintf(w, "  %s\n", sub)
	}

	if s.ConversationVisible() && s.ConversationID != "" {
		cyan.Fprintf(w, "  conversation %s", s.ConversationID)
		if s.ThreadID != "" {
			gray.Fprintf(w, " thread=%s", s.ThreadID)
		}
		fmt.Fprintln(w)
	}
}

// printEvent prints a machine event for the interactive session.
func printEvent(w io.Writer, ev recipient.Event) {
	switch ev.Type {
	case recipient.EventConversationReady:
		green.Fprintf(w, "conversation ready with %s\n", ev.Conversation.PeerAddress)
		render(w, ev.Snapshot)
	case recipient.EventConversationFailed:
		red.Fprintf(w, "conversation failed: %v\n", ev.Err)
		render(w, ev.Snapshot)
	default:
		render(w, ev.Snapshot)
	}
}

// listDirectory prints every registered name and known conversation.
func listDirectory(ctx context.Context, w io.Writer, dir store.Directory) error {
	names, err := dir.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("listing names: %w", err)
	}
	bold.Fprintf(w, "Names (%d)\n", len(names))
	for _, n := range names {
		fmt.Fprintf(w, "  %-24s %s\n", n.Name, n.Address)
	}

	convs, err := dir.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	bold.Fprintf(w, "Conversations (%d)\n", len(convs))
	for _, c := range convs {
		fmt.Fprintf(w, "  %s %s", c.ID, c.PeerAddress)
		if c.ThreadID != "" {
			gray.Fprintf(w, " thread=%s", c.ThreadID)
		}
		fmt.Fprintln(w)
	}
	return nil
}
