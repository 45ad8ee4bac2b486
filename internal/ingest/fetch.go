// Package ingest fetches provider web pages, extracts their visible text and splits it into
// overlapping chunks for the knowledge index.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Fetcher downloads pages and turns them into chunks.
type Fetcher struct {
	client  *resty.Client
	size    int
	overlap int
	logger  *slog.Logger
}

// NewFetcher creates a fetcher with the given request timeout and chunking parameters.
func NewFetcher(timeout time.Duration, size, overlap int, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	client := resty.New().
		SetHeader("User-Agent", "Datacrumbs-Widget/1.0").
		SetTimeout(timeout)
	return &Fetcher{client: client, size: size, overlap: overlap, logger: logger}
}

// FetchAndChunk downloads url and returns its visible text split into chunks. Any failure is
// logged and yields no chunks.
func (f *Fetcher) FetchAndChunk(ctx context.Context, url string) []string {
	text, err := f.fetchText(ctx, url)
	if err != nil {
		f.logger.Warn("failed to ingest page", "url", url, "error", err)
		return nil
	}
	return Chunk(text, f.size, f.overlap)
}

func (f *Fetcher) fetchText(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch HTTP %d: %s", resp.StatusCode(), resp.Status())
	}
	return ExtractVisibleText(resp.Body()), nil
}

// ExtractVisibleText returns the text nodes of an HTML document separated by single spaces,
// skipping script, style and noscript content.
func ExtractVisibleText(raw []byte) string {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			for _, field := range strings.Fields(n.Data) {
				if builder.Len() > 0 {
					builder.WriteByte(' ')
				}
				builder.WriteString(field)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return builder.String()
}

// Chunk splits text into windows of size runes where consecutive windows share overlap runes.
// The final window may be shorter. Empty text yields no chunks.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
