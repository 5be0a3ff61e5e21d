package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/backend"
)

// SQLiteStore implements Store on a local SQLite database. Used for
// single-node deployments and integration tests; the descriptor blob lives in
// a BLOB column and is replaced in a single UPDATE, which SQLite applies
// atomically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_descriptors (
		backend TEXT NOT NULL,
		index_name TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		num_vectors INTEGER NOT NULL DEFAULT 0,
		index_blob BLOB,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (backend, index_name)
	);

	CREATE TABLE IF NOT EXISTS chunk_records (
		chunk_id TEXT PRIMARY KEY,
		handle INTEGER NOT NULL,
		backend TEXT NOT NULL,
		index_name TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		title TEXT,
		category TEXT,
		text_snippet TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_handle ON chunk_records(backend, index_name, handle);
	CREATE INDEX IF NOT EXISTS idx_chunks_index ON chunk_records(backend, index_name);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDescriptor inserts a descriptor, failing on a duplicate name.
func (s *SQLiteStore) CreateDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_descriptors (backend, index_name, dimension, num_vectors, index_blob, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		desc.Backend, desc.IndexName, desc.Dimension, desc.NumVectors, desc.IndexBlob, desc.CreatedAt, desc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return backend.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetDescriptor returns the descriptor for (backendName, indexName).
func (s *SQLiteStore) GetDescriptor(ctx context.Context, backendName, indexName string) (*IndexDescriptor, error) {
	var desc IndexDescriptor
	err := s.db.QueryRowContext(ctx,
		`SELECT backend, index_name, dimension, num_vectors, index_blob, created_at, updated_at
		 FROM index_descriptors WHERE backend = ? AND index_name = ?`,
		backendName, indexName,
	).Scan(&desc.Backend, &desc.IndexName, &desc.Dimension, &desc.NumVectors, &desc.IndexBlob, &desc.CreatedAt, &desc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

// ListDescriptors returns all descriptors across backends.
func (s *SQLiteStore) ListDescriptors(ctx context.Context) ([]*IndexDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT backend, index_name, dimension, num_vectors, index_blob, created_at, updated_at
		 FROM index_descriptors ORDER BY backend, index_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*IndexDescriptor
	for rows.Next() {
		var desc IndexDescriptor
		if err := rows.Scan(&desc.Backend, &desc.IndexName, &desc.Dimension, &desc.NumVectors,
			&desc.IndexBlob, &desc.CreatedAt, &desc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &desc)
	}
	return out, rows.Err()
}

// ReplaceDescriptor replaces the whole descriptor record in one UPDATE.
func (s *SQLiteStore) ReplaceDescriptor(ctx context.Context, desc *IndexDescriptor) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE index_descriptors
		 SET dimension = ?, num_vectors = ?, index_blob = ?, created_at = ?, updated_at = ?
		 WHERE backend = ? AND index_name = ?`,
		desc.Dimension, desc.NumVectors, desc.IndexBlob, desc.CreatedAt, desc.UpdatedAt,
		desc.Backend, desc.IndexName,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// DeleteDescriptor removes the descriptor for (backendName, indexName).
func (s *SQLiteStore) DeleteDescriptor(ctx context.Context, backendName, indexName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM index_descriptors WHERE backend = ? AND index_name = ?`,
		backendName, indexName,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// InsertChunks batch-inserts chunk records inside a transaction so the batch
// is observable all-or-nothing.
func (s *SQLiteStore) InsertChunks(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_records (chunk_id, handle, backend, index_name, doc_id, title, category, text_snippet, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ChunkID, r.Handle, r.Backend, r.IndexName, r.DocID, r.Title, r.Category, r.TextSnippet, r.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ChunkByHandle returns the chunk record with the given integer handle.
func (s *SQLiteStore) ChunkByHandle(ctx context.Context, backendName, indexName string, handle int64) (*ChunkRecord, error) {
	var rec ChunkRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, handle, backend, index_name, doc_id, title, category, text_snippet, created_at
		 FROM chunk_records WHERE backend = ? AND index_name = ? AND handle = ?`,
		backendName, indexName, handle,
	).Scan(&rec.ChunkID, &rec.Handle, &rec.Backend, &rec.IndexName, &rec.DocID, &rec.Title, &rec.Category, &rec.TextSnippet, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteChunks removes all chunk records of an index.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, backendName, indexName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunk_records WHERE backend = ? AND index_name = ?`,
		backendName, indexName,
	)
	return err
}

// CountChunks returns the number of chunk records in an index.
func (s *SQLiteStore) CountChunks(ctx context.Context, backendName, indexName string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_records WHERE backend = ? AND index_name = ?`,
		backendName, indexName,
	).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation matches SQLite unique/primary key constraint failures
// without depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
