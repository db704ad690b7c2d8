// ABOUTME: Entry point for coven-recipient, the recipient field of a new conversation
// ABOUTME: Resolves typed names or addresses against the local network directory

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-recipient/internal/config"
	"github.com/2389/coven-recipient/internal/store"
)

// version is set with -ldflags at build time.
var version = "dev"

// resolveTimeout bounds the one-shot resolve command.
const resolveTimeout = 30 * time.Second

// getConfigPath returns the path to the recipient config file.
// Priority: COVEN_RECIPIENT_CONFIG env var > XDG_CONFIG_HOME/coven/recipient.yaml > ~/.config/coven/recipient.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_RECIPIENT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "recipient.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "recipient.yaml")
}

// getDataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func usage() {
	fmt.Println("Usage: coven-recipient <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run                 Interactive recipient field (one input per line)")
	fmt.Println("  resolve <input>     Resolve one name or address and print the result")
	fmt.Println("  seed <file.yaml>    Load names and members into the directory")
	fmt.Println("  list                List registered names and conversations")
	fmt.Println("  init                Create a new config file interactively")
	fmt.Println("  version             Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runInteractive(ctx)
	case "resolve":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: coven-recipient resolve <name-or-address> [thread-id]")
			break
		}
		thread := ""
		if len(os.Args) > 3 {
			thread = os.Args[3]
		}
		err = runResolve(ctx, os.Args[2], thread)
	case "seed":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: coven-recipient seed <file.yaml>")
			break
		}
		err = runSeed(ctx, os.Args[2])
	case "list":
		err = runList(ctx)
	case "init":
		err = runInit()
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp loads configuration, opens the directory, and wires the recipient
// machine. The caller must Close the returned app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	dir, err := store.NewSQLiteStore(cfg.Directory.Path)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}

	if cfg.Directory.SeedFile != "" {
		seed, err := store.LoadSeed(cfg.Directory.SeedFile)
		if err != nil {
			dir.Close()
			return nil, err
		}
		if err := store.ApplySeed(ctx, dir, seed); err != nil {
			dir.Close()
			return nil, fmt.Errorf("applying seed: %w", err)
		}
	}

	a, err := newApp(ctx, cfg, dir, logger)
	if err != nil {
		dir.Close()
		return nil, err
	}
	return a, nil
}

func runResolve(ctx context.Context, input, thread string) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.resolveOnce(ctx, input, thread, resolveTimeout)
	if err != nil {
		return err
	}
	render(os.Stdout, snap)
	return nil
}

func runSeed(ctx context.Context, path string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogger(cfg.Logging, os.Stderr)

	seed, err := store.LoadSeed(path)
	if err != nil {
		return err
	}

	dir, err := store.NewSQLiteStore(cfg.Directory.Path)
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}
	defer dir.Close()

	if err := store.ApplySeed(ctx, dir, seed); err != nil {
		return fmt.Errorf("applying seed: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Seeded %d names and %d members into %s\n", len(seed.Names), len(seed.Members), cfg.Directory.Path)
	return nil
}

func runList(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogger(cfg.Logging, os.Stderr)

	dir, err := store.NewSQLiteStore(cfg.Directory.Path)
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}
	defer dir.Close()

	return listDirectory(ctx, os.Stdout, dir)
}
