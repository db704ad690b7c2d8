// ABOUTME: Interactive recipient session and config initialization for coven-recipient
// ABOUTME: Each stdin line is an input change; slash commands control thread, reset, and exit

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/coven-recipient/internal/address"
	"github.com/2389/coven-recipient/internal/config"
)

const sessionHelp = `Type a name (alice.example) or address (0x...) to set the recipient.
  /thread [id]      scope the conversation to a thread (no id for the default)
  /clear            clear the recipient field
  /conversations    list conversations created this session
  /help             show this help
  /quit             exit`

func runInteractive(ctx context.Context) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cyan.Printf("coven-recipient %s\n", version)
	gray.Printf("wallet %s, directory %s\n", a.cfg.Wallet.Address, a.cfg.Directory.Path)
	fmt.Println(sessionHelp)

	return a.session(ctx, os.Stdin, os.Stdout)
}

// session runs the machine and feeds it lines from in until /quit or ctx is
// cancelled. At EOF it waits for the last input to settle. Events are
// written to out as they arrive.
func (a *app) session(ctx context.Context, in io.Reader, out io.Writer) error {
	events := a.machine.Subscribe(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.machine.Run(ctx)
	}()

	if a.cfg.Conversations.ThreadID != "" {
		a.machine.SetThread(a.cfg.Conversations.ThreadID)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var lastInput string
	draining := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(out, ev)
			if draining && ev.Snapshot.Input == lastInput && ev.Snapshot.Settled() {
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				snap := a.machine.Snapshot()
				if snap.Input == lastInput && snap.Settled() {
					return nil
				}
				a.logger.Debug("input closed, waiting for recipient to settle", "input", lastInput)
				lines = nil
				draining = true
				continue
			}
			input, quit := a.dispatch(out, line, lastInput)
			if quit {
				return nil
			}
			lastInput = input
		}
	}
}

// dispatch handles one line of input. It returns the recipient field's
// expected contents afterwards and whether the session should end.
func (a *app) dispatch(out io.Writer, line, current string) (string, bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "/quit", "/exit":
		return current, true
	case "/clear":
		a.machine.Dismiss()
		return "", false
	case "/thread":
		a.machine.SetThread(strings.TrimSpace(arg))
	case "/conversations":
		snap := a.cache.Read()
		bold.Fprintf(out, "Conversations (%d)\n", snap.Len())
		for _, key := range snap.Keys() {
			rec, _ := snap.Get(key)
			fmt.Fprintf(out, "  %s %s\n", rec.ID, key)
		}
	case "/help":
		fmt.Fprintln(out, sessionHelp)
	default:
		if strings.HasPrefix(cmd, "/") {
			red.Fprintf(out, "unknown command %s (try /help)\n", cmd)
			return current, false
		}
		a.machine.SetInput(line)
		return line, false
	}
	return current, false
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("coven-recipient configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "directory.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Wallet ---")
	wallet := prompt(reader, "Your wallet address", "")
	if !address.IsValid(wallet) {
		return fmt.Errorf("invalid wallet address %q", wallet)
	}

	fmt.Println("\n--- Directory ---")
	dbPath := prompt(reader, "SQLite directory path", defaultDbPath)
	seedFile := prompt(reader, "Seed file applied on start (leave empty for none)", "")

	fmt.Println("\n--- Conversations ---")
	threadID := prompt(reader, "Default thread id (leave empty for none)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", config.DefaultLogLevel)
	logFormat := prompt(reader, "Log format (text/json)", config.DefaultLogFormat)

	var cfg strings.Builder
	cfg.WriteString("# coven-recipient configuration\n")
	cfg.WriteString("# Generated by coven-recipient init\n\n")

	cfg.WriteString("wallet:\n")
	cfg.WriteString(fmt.Sprintf("  address: \"%s\"\n", wallet))
	cfg.WriteString("\n")

	cfg.WriteString("directory:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	if seedFile != "" {
		cfg.WriteString(fmt.Sprintf("  seed_file: \"%s\"\n", seedFile))
	}
	cfg.WriteString("\n")

	cfg.WriteString("resolver:\n")
	cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", config.DefaultResolverTimeout))
	cfg.WriteString("\n")

	cfg.WriteString("reachability:\n")
	cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", config.DefaultReachabilityTimeout))
	cfg.WriteString(fmt.Sprintf("  cache_ttl: \"%s\"\n", config.DefaultCacheTTL))
	cfg.WriteString(fmt.Sprintf("  cache_size: %d\n", config.DefaultCacheSize))
	cfg.WriteString("\n")

	cfg.WriteString("conversations:\n")
	cfg.WriteString(fmt.Sprintf("  thread_id: \"%s\"\n", threadID))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Reject anything Load would reject before writing it
	if _, err := config.Parse([]byte(cfg.String()), "yaml"); err != nil {
		return err
	}

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo seed the directory and start a session:")
	fmt.Printf("  coven-recipient seed names.yaml\n")
	fmt.Printf("  coven-recipient run\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
