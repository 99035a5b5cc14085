package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clusterdash/pkg/models"
	"clusterdash/pkg/store"

	_ "modernc.org/sqlite"
)

// Store reads and writes status snapshots in SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens the database at dsn and makes sure the schema exists.
func NewStore(dsn string) (*Store, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", store.ErrDatabase, err)
	}

	ctx := context.Background()

	// The collector writes while the dashboard reads.
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", store.ErrDatabase, err)
	}

	s := &Store{db: database}
	if err := s.Initialize(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	return s, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", store.ErrDatabase, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Latest returns the most recently inserted snapshot.
func (s *Store) Latest(ctx context.Context) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{}
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document, created_at FROM status ORDER BY id DESC LIMIT 1`,
	).Scan(&snapshot.ID, &document, &snapshot.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrDatabase, err)
	}

	snapshot.Document = []byte(document)
	return snapshot, nil
}

// Insert stores a raw JSON document as the newest snapshot.
func (s *Store) Insert(ctx context.Context, document []byte) (*models.Snapshot, error) {
	if !json.Valid(document) {
		return nil, fmt.Errorf("%w: document is not valid JSON", store.ErrDatabase)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO status (document, created_at) VALUES (?, ?)`,
		string(document), now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrDatabase, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrDatabase, err)
	}

	return &models.Snapshot{ID: id, CreatedAt: now, Document: document}, nil
}

// InsertStatus encodes per-cluster statuses and stores them as the newest snapshot.
func (s *Store) InsertStatus(ctx context.Context, clusters map[models.ClusterName]models.ClusterStatus) (*models.Snapshot, error) {
	document, err := json.Marshal(clusters)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode document: %w", store.ErrDatabase, err)
	}
	return s.Insert(ctx, document)
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM status`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", store.ErrDatabase, err)
	}
	return count, nil
}
