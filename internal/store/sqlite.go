// ABOUTME: SQLite implementation of the Directory interface using modernc.org/sqlite
// ABOUTME: Persists names, network members, and conversations with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/2389/coven-recipient/internal/address"
	"github.com/2389/coven-recipient/internal/conversation"
	"github.com/2389/coven-recipient/internal/identity"
)

// SQLiteStore implements the Directory interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. The special path ":memory:"
// opens a private in-memory database. Access is serialized over a single
// connection.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// PRAGMAs are per connection, and each connection to ":memory:" would
	// see its own database
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS names (
			name TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_names_address ON names(address);

		CREATE TABLE IF NOT EXISTS members (
			address TEXT PRIMARY KEY,
			registered_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			peer_address TEXT NOT NULL REFERENCES members(address),
			thread_id TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			UNIQUE(peer_address, thread_id)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// RegisterName maps name to addr, replacing any previous mapping.
// Names are case-insensitive.
func (s *SQLiteStore) RegisterName(ctx context.Context, name, addr string) error {
	n := normalizeName(name)
	if n == "" {
		return errors.New("name is required")
	}
	if !address.IsValid(addr) {
		return fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}

	query := `
		INSERT INTO names (name, address, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET address = excluded.address
	`
	_, err := s.db.ExecContext(ctx, query, n, address.Lower(addr), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting name: %w", err)
	}

	s.logger.Debug("registered name", "name", n, "address", addr)
	return nil
}

// ResolveName returns the address registered for name.
// Returns identity.ErrNameNotFound if the name is not registered.
func (s *SQLiteStore) ResolveName(ctx context.Context, name string) (string, error) {
	var addr string
	err := s.db.QueryRowContext(ctx, `SELECT address FROM names WHERE name = ?`, normalizeName(name)).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNameNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying name: %w", err)
	}
	return addr, nil
}

// LookupName returns the earliest name registered for addr.
// Returns identity.ErrNameNotFound if the address has no name.
func (s *SQLiteStore) LookupName(ctx context.Context, addr string) (string, error) {
	query := `
		SELECT name FROM names
		WHERE address = ?
		ORDER BY created_at ASC, name ASC
		LIMIT 1
	`
	var name string
	err := s.db.QueryRowContext(ctx, query, address.Lower(addr)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNameNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying reverse name: %w", err)
	}
	return name, nil
}

// ListNames returns every registered name ordered by name.
func (s *SQLiteStore) ListNames(ctx context.Context) ([]*NameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, address, created_at FROM names ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying names: %w", err)
	}
	defer rows.Close()

	var names []*NameRecord
	for rows.Next() {
		var rec NameRecord
		var createdAt string
		if err := rows.Scan(&rec.Name, &rec.Address, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		names = append(names, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating names: %w", err)
	}
	return names, nil
}

// RegisterMember adds addr to the network. Registering twice is a no-op.
func (s *SQLiteStore) RegisterMember(ctx context.Context, addr string) error {
	if !address.IsValid(addr) {
		return fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}

	query := `
		INSERT INTO members (address, registered_at)
		VALUES (?, ?)
		ON CONFLICT(address) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, address.Lower(addr), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}

	s.logger.Debug("registered member", "address", addr)
	return nil
}

// CanMessage reports whether addr is a member of the network.
func (s *SQLiteStore) CanMessage(ctx context.Context, addr string) (bool, error) {
	if !address.IsValid(addr) {
		return false, fmt.Errorf("%w: %q", address.ErrInvalidAddress, addr)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM members WHERE address = ?`, address.Lower(addr)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying member: %w", err)
	}
	return true, nil
}

// NewConversation returns the conversation with peer for the thread in opts,
// creating it if it doesn't exist. The returned PeerAddress is checksummed.
// Returns ErrNotMember if peer is not on the network.
func (s *SQLiteStore) NewConversation(ctx context.Context, peer string, opts *conversation.Options) (*conversation.Record, error) {
	canonical, err := address.Checksum(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, peer)
	}

	var threadID string
	metadata := map[string]string{}
	if opts != nil {
		threadID = opts.ThreadID
		maps.Copy(metadata, opts.Metadata)
	}

	ok, err := s.CanMessage(ctx, peer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	rec, err := s.getConversation(ctx, peer, threadID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	rec = &conversation.Record{
		ID:          uuid.New().String(),
		PeerAddress: canonical,
		ThreadID:    threadID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	query := `
		INSERT INTO conversations (id, peer_address, thread_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		address.Lower(peer),
		threadID,
		string(metadataJSON),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		// Lost a race with another writer for the same peer and thread
		if isConstraintViolation(err) {
			return s.getConversation(ctx, peer, threadID)
		}
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Info("created conversation", "id", rec.ID, "peer", canonical, "thread", threadID)
	return rec, nil
}

// getConversation finds the conversation for peer and threadID.
// Returns ErrNotFound if there is none.
func (s *SQLiteStore) getConversation(ctx context.Context, peer, threadID string) (*conversation.Record, error) {
	query := `
		SELECT id, peer_address, thread_id, metadata_json, created_at
		FROM conversations
		WHERE peer_address = ? AND thread_id = ?
	`
	rec, err := scanConversation(s.db.QueryRowContext(ctx, query, address.Lower(peer), threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListConversations returns every conversation ordered by creation time.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*conversation.Record, error) {
	query := `
		SELECT id, peer_address, thread_id, metadata_json, created_at
		FROM conversations
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []*conversation.Record
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*conversation.Record, error) {
	var rec conversation.Record
	var peer, metadataJSON, createdAt string
	if err := row.Scan(&rec.ID, &peer, &rec.ThreadID, &metadataJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	canonical, err := address.Checksum(peer)
	if err != nil {
		return nil, fmt.Errorf("stored peer address %q: %w", peer, err)
	}
	rec.PeerAddress = canonical

	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &rec, nil
}

// isConstraintViolation checks if an error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
