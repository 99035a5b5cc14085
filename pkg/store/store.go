package store

import (
	"context"
	"errors"

	"clusterdash/pkg/models"
)

var (
	// ErrNoSnapshot is returned when the status collection holds no records.
	ErrNoSnapshot = errors.New("no status snapshot stored")

	// ErrDatabase is returned when a database operation fails.
	ErrDatabase = errors.New("database error")
)

// Store defines read access to persisted status snapshots.
type Store interface {
	// Latest returns the most recently inserted snapshot.
	// Returns ErrNoSnapshot if nothing has been stored yet.
	Latest(ctx context.Context) (*models.Snapshot, error)

	// Close releases the underlying connection.
	Close() error
}
