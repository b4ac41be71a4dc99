package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLiteStore keeps watermarks in a single-table SQLite database, one row
// per key.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS checkpoints(
	  key        TEXT    PRIMARY KEY,
	  watermark  INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("checkpoint: create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (Watermark, bool, error) {
	var w int64
	err := s.db.QueryRowContext(ctx, `SELECT watermark FROM checkpoints WHERE key = ?`, key).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: load %q: %w", key, err)
	}
	if w < 0 {
		return 0, false, fmt.Errorf("checkpoint: key %q: negative timestamp: %d", key, w)
	}
	return Watermark(w), true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, w Watermark) error {
	if w < 0 {
		return fmt.Errorf("checkpoint: refusing to save negative watermark %d", w)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("checkpoint: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO checkpoints(key, watermark, updated_at) VALUES(?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET watermark = excluded.watermark, updated_at = excluded.updated_at`,
		key, int64(w), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("checkpoint: save %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("checkpoint: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
