// Package store provides the knowledge index: ingested website text kept in SQLite FTS5.
package store

import (
	"context"
	"time"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// Source describes one ingested page.
type Source struct {
	URL        string    `json:"url"`
	ChunkCount int       `json:"chunk_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Index stores chunks and answers ranked text queries. Ranking is delegated to FTS5 bm25.
type Index interface {
	// ReplaceSource atomically swaps all chunks of a source.
	ReplaceSource(ctx context.Context, source string, chunks []string) error

	// DeleteSource removes a source and its chunks. Unknown sources are ignored.
	DeleteSource(ctx context.Context, source string) error

	// Search returns up to limit chunks matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]domain.Chunk, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Sources lists ingested sources.
	Sources(ctx context.Context) ([]Source, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
