package store

import (
	"context"
	"time"
)

// Ban represents a username refused at handshake.
type Ban struct {
	Username  string
	BannedBy  string
	Reason    string
	CreatedAt time.Time
}

// BanStore handles ban list persistence.
type BanStore interface {
	// AddBan records a ban. Banning an already banned name updates the record.
	AddBan(ctx context.Context, ban Ban) error

	// RemoveBan deletes a ban. Returns false if the name was not banned.
	RemoveBan(ctx context.Context, username string) (bool, error)

	// IsBanned checks whether the username is banned.
	IsBanned(ctx context.Context, username string) (bool, error)

	// ListBans lists all bans ordered by username.
	ListBans(ctx context.Context) ([]Ban, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	BanStore

	// Close closes the underlying database connection.
	Close() error
}
