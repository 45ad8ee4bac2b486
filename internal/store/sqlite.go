package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/shared"
)

const (
	writeRetries    = 3
	writeRetryDelay = 100 * time.Millisecond
)

// SQLiteStore implements Index using SQLite FTS5.
type SQLiteStore struct {
	db *sql.DB
}

var _ Index = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the index at dbPath. ":memory:" gives a private in-memory index.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	memory := dbPath == ":memory:"
	dsn := dbPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sources (
		source TEXT PRIMARY KEY,
		chunk_count INTEGER NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
		content,
		source UNINDEXED,
		seq UNINDEXED,
		tokenize = 'porter unicode61'
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceSource deletes the existing chunks of source and inserts chunks in one transaction.
// Busy errors are retried with exponential backoff.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, source string, chunks []string) error {
	err := shared.RetryOnConflict(ctx, "replace_source", writeRetries, writeRetryDelay, func() error {
		return s.replaceSourceOnce(ctx, source, chunks)
	})
	if err != nil {
		return fmt.Errorf("replace source %s: %w", source, err)
	}
	return nil
}

func (s *SQLiteStore) replaceSourceOnce(ctx context.Context, source string, chunks []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (content, source, seq) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c, source, i); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sources (source, chunk_count, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			chunk_count = excluded.chunk_count,
			fetched_at = excluded.fetched_at`,
		source, len(chunks), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteSource removes source and its chunks in one transaction.
func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) error {
	err := shared.RetryOnConflict(ctx, "delete_source", writeRetries, writeRetryDelay, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE source = ?`, source); err != nil {
			return fmt.Errorf("delete source row: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("delete source %s: %w", source, err)
	}
	return nil
}

// Search returns the chunks best matching query according to bm25. Queries without searchable
// words return no results.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]domain.Chunk, error) {
	expr := matchExpression(query)
	if expr == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, seq, content, bm25(chunks) AS rank
		FROM chunks
		WHERE chunks MATCH ?
		ORDER BY rank
		LIMIT ?`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var rank float64
		if err := rows.Scan(&c.Source, &c.Seq, &c.Content, &rank); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		// bm25 is lower-is-better; expose higher-is-better.
		c.Score = -rank
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return out, nil
}

// Count returns the number of indexed chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Sources lists ingested sources ordered by URL.
func (s *SQLiteStore) Sources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, chunk_count, fetched_at FROM sources ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		var fetchedAt int64
		if err := rows.Scan(&src.URL, &src.ChunkCount, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		src.FetchedAt = time.Unix(fetchedAt, 0)
		out = append(out, src)
	}
	return out, rows.Err()
}
