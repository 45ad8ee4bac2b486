package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChunkSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 250) // 2500 runes
	chunks := Chunk(text, 1000, 200)

	require.Len(t, chunks, 3)
	assert.Len(t, []rune(chunks[0]), 1000)
	assert.Len(t, []rune(chunks[1]), 1000)
	assert.Len(t, []rune(chunks[2]), 900)
	assert.Equal(t, chunks[0][800:], chunks[1][:200])
	assert.Equal(t, chunks[1][800:], chunks[2][:200])
}

func TestChunkEdgeCases(t *testing.T) {
	assert.Nil(t, Chunk("   ", 1000, 200))
	assert.Equal(t, []string{"short"}, Chunk("short", 1000, 200))
	assert.Equal(t, []string{"abcd", "efgh"}, Chunk("abcdefgh", 4, 4), "overlap >= size disables overlap")
	assert.Equal(t, []string{"日本語", "語です"}, Chunk("日本語です", 3, 1), "sizes count runes")
}

func TestExtractVisibleText(t *testing.T) {
	page := `<html><head><title>Datacrumbs</title><style>body{color:red}</style>
	<script>var x = "hidden";</script></head>
	<body><h1>Data   Science</h1><p>Hands-on
	projects</p><noscript>enable js</noscript></body></html>`

	assert.Equal(t, "Datacrumbs Data Science Hands-on projects", ExtractVisibleText([]byte(page)))
}

func TestFetchAndChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>" + strings.Repeat("x", 15) + "</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 10, 5, discardLogger())
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx"}, f.FetchAndChunk(context.Background(), srv.URL))
	assert.Empty(t, f.FetchAndChunk(context.Background(), srv.URL+"/missing"))
	assert.Empty(t, f.FetchAndChunk(context.Background(), "http://127.0.0.1:1/unreachable"))
}

type memorySink struct {
	sources map[string][]string
	err     error
}

func (m *memorySink) ReplaceSource(_ context.Context, source string, chunks []string) error {
	if m.err != nil {
		return m.err
	}
	if m.sources == nil {
		m.sources = make(map[string][]string)
	}
	m.sources[source] = chunks
	return nil
}

func (m *memorySink) DeleteSource(_ context.Context, source string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.sources, source)
	return nil
}

func TestLoadIndexesPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>Courses and fees</p>"))
	}))
	defer srv.Close()

	sink := &memorySink{}
	f := NewFetcher(time.Second, DefaultChunkSize, DefaultChunkOverlap, discardLogger())
	res := Load(context.Background(), f, sink, []string{srv.URL, srv.URL + "/b"}, "fallback", discardLogger())

	assert.Equal(t, Result{Pages: 2, Chunks: 2}, res)
	assert.Equal(t, []string{"Courses and fees"}, sink.sources[srv.URL])
	assert.NotContains(t, sink.sources, FallbackSource)
}

func TestLoadFallsBackWhenNothingIngested(t *testing.T) {
	sink := &memorySink{}
	f := NewFetcher(time.Second, DefaultChunkSize, DefaultChunkOverlap, discardLogger())
	res := Load(context.Background(), f, sink, []string{"http://127.0.0.1:1/"}, "DATACRUMBS COURSES", discardLogger())

	assert.True(t, res.Fallback)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, []string{"DATACRUMBS COURSES"}, sink.sources[FallbackSource])
}

func TestLoadSinkFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	f := NewFetcher(time.Second, DefaultChunkSize, DefaultChunkOverlap, discardLogger())
	res := Load(context.Background(), f, sink, nil, "text", discardLogger())
	assert.Equal(t, Result{}, res)
}

func TestLoadDropsFallbackOnceSiteIsBack(t *testing.T) {
	var up atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<p>Fresh course schedule</p>"))
	}))
	defer srv.Close()

	sink := &memorySink{}
	f := NewFetcher(time.Second, DefaultChunkSize, DefaultChunkOverlap, discardLogger())

	first := Load(context.Background(), f, sink, []string{srv.URL}, "FALLBACK catalog text", discardLogger())
	require.True(t, first.Fallback)
	require.Contains(t, sink.sources, FallbackSource)

	up.Store(true)
	second := Load(context.Background(), f, sink, []string{srv.URL}, "FALLBACK catalog text", discardLogger())
	assert.Equal(t, Result{Pages: 1, Chunks: 1}, second)
	assert.NotContains(t, sink.sources, FallbackSource)
	assert.Equal(t, []string{"Fresh course schedule"}, sink.sources[srv.URL])
}
