package ingest

import (
	"context"
	"log/slog"
)

// FallbackSource is the source name under which the catalog text is indexed.
const FallbackSource = "catalog:fallback"

// Sink receives chunks for a source.
type Sink interface {
	ReplaceSource(ctx context.Context, source string, chunks []string) error
	DeleteSource(ctx context.Context, source string) error
}

// Result summarizes one Load run.
type Result struct {
	Pages    int  `json:"pages"`
	Chunks   int  `json:"chunks"`
	Fallback bool `json:"fallback"`
}

// Load ingests urls into sink. When no page produced any chunk, fallbackText is chunked and
// indexed instead so that the assistant always has the provider facts as context. Once pages are
// ingested again, a fallback left by an earlier run is removed. Sink errors are logged and skipped.
func Load(ctx context.Context, f *Fetcher, sink Sink, urls []string, fallbackText string, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, u := range urls {
		chunks := f.FetchAndChunk(ctx, u)
		if len(chunks) == 0 {
			continue
		}
		if err := sink.ReplaceSource(ctx, u, chunks); err != nil {
			logger.Warn("failed to index page", "url", u, "error", err)
			continue
		}
		res.Pages++
		res.Chunks += len(chunks)
		logger.Info("indexed page", "url", u, "chunks", len(chunks))
	}

	if res.Chunks > 0 {
		if err := sink.DeleteSource(ctx, FallbackSource); err != nil {
			logger.Warn("failed to remove stale fallback knowledge", "error", err)
		}
		return res
	}

	chunks := Chunk(fallbackText, f.size, f.overlap)
	if len(chunks) == 0 {
		return res
	}
	if err := sink.ReplaceSource(ctx, FallbackSource, chunks); err != nil {
		logger.Warn("failed to index fallback knowledge", "error", err)
		return res
	}
	res.Chunks = len(chunks)
	res.Fallback = true
	logger.Info("no website content ingested, indexed catalog fallback", "chunks", len(chunks))
	return res
}
