package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/betairc/internal/store"
)

// Schema is applied on open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS bans (
	username   TEXT PRIMARY KEY,
	banned_by  TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== BanStore implementation ====

// AddBan records a ban, replacing an existing one for the same username.
func (s *SQLiteStore) AddBan(ctx context.Context, ban store.Ban) error {
	query := `
		INSERT INTO bans (username, banned_by, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			banned_by = excluded.banned_by,
			reason = excluded.reason,
			created_at = excluded.created_at
	`
	createdAt := ban.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query, ban.Username, ban.BannedBy, ban.Reason, createdAt)
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}

	return nil
}

// RemoveBan deletes a ban.
func (s *SQLiteStore) RemoveBan(ctx context.Context, username string) (bool, error) {
	query := `
		DELETE FROM bans
		WHERE username = ?
	`
	result, err := s.db.ExecContext(ctx, query, username)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return n > 0, nil
}

// IsBanned checks if the username is banned.
func (s *SQLiteStore) IsBanned(ctx context.Context, username string) (bool, error) {
	query := `
		SELECT 1 FROM bans
		WHERE username = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, username).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query ban: %w", err)
	}

	return true, nil
}

// ListBans lists all bans ordered by username.
func (s *SQLiteStore) ListBans(ctx context.Context) ([]store.Ban, error) {
	query := `
		SELECT username, banned_by, reason, created_at
		FROM bans
		ORDER BY username ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query bans: %w", err)
	}
	defer rows.Close()

	bans := make([]store.Ban, 0)
	for rows.Next() {
		var ban store.Ban
		if err := rows.Scan(&ban.Username, &ban.BannedBy, &ban.Reason, &ban.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, ban)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bans: %w", err)
	}

	return bans, nil
}
