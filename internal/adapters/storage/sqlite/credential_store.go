package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS credentials (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// CredentialStore keeps the credential slot in a local SQLite key/value table.
type CredentialStore struct {
	db   *sql.DB
	slot string
}

// Open opens (or creates) the database at path and prepares the table.
func Open(ctx context.Context, path, slot string) (*CredentialStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite credential store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating credential directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credentials table: %w", err)
	}

	return &CredentialStore{db: db, slot: slot}, nil
}

func (s *CredentialStore) Close() error {
	return s.db.Close()
}

func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE key = ?", s.slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrCredentialMissing
	}
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	if value == "" {
		return "", domain.ErrCredentialMissing
	}
	return value, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		s.slot, strings.TrimSpace(key))
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", s.slot); err != nil {
		return fmt.Errorf("purging credential: %w", err)
	}
	return nil
}
