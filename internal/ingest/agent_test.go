package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raailabs/raai/internal/logging"
	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/store"
)

type stubIndex struct {
	chunks []retrieval.Chunk
	err    error
}

func (s *stubIndex) Add(_ context.Context, chunks []retrieval.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

type stubFetcher struct {
	content *FetchedContent
	err     error
}

func (s *stubFetcher) Fetch(context.Context, string) (*FetchedContent, error) {
	return s.content, s.err
}

func newTestAgent(t *testing.T, vector, lexical ChunkIndex) (*Agent, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts := Options{WebChunkSize: 800, WebChunkOverlap: 200, UploadChunkSize: 1000, UploadChunkOverlap: 300}
	return NewAgent(opts, vector, lexical, st, logging.Nop()), st
}

func TestIngestText(t *testing.T) {
	vector := &stubIndex{}
	lexical := &stubIndex{}
	agent, st := newTestAgent(t, vector, lexical)

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "text", Value: "Mindfulness lowers baseline stress over time.", Title: "Notes", UserID: "u1"},
	})

	assert.Equal(t, 1, result.DocsIndexed)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "indexed", result.Sources[0].Status)
	assert.Equal(t, 1, result.Sources[0].Chunks)
	assert.Len(t, vector.chunks, 1)
	assert.Len(t, lexical.chunks, 1)
	assert.Equal(t, "Notes", vector.chunks[0].Title)

	docs, err := st.ListDocuments(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "upload", docs[0].SourceType)
	assert.Equal(t, 1, docs[0].ChunkCount)
}

func TestIngestFetchedURL(t *testing.T) {
	vector := &stubIndex{}
	agent, _ := newTestAgent(t, vector, &stubIndex{})
	agent.SetFetchers(&stubFetcher{content: &FetchedContent{
		Text:       "Regular exercise improves sleep quality and mood.",
		Title:      "Exercise and sleep",
		SourceID:   "https://example.com/a",
		URL:        "https://example.com/a",
		SourceType: "url",
	}}, nil, nil)

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "url", Value: "https://example.com/a", UserID: "u1"},
	})

	assert.Equal(t, 1, result.DocsIndexed)
	require.Len(t, vector.chunks, 1)
	assert.Equal(t, "https://example.com/a", vector.chunks[0].SourceID)
	assert.Equal(t, "Exercise and sleep", vector.chunks[0].Title)
}

func TestIngestOneFailureDoesNotAbortOthers(t *testing.T) {
	vector := &stubIndex{}
	agent, _ := newTestAgent(t, vector, &stubIndex{})
	agent.SetFetchers(&stubFetcher{err: errors.New("connection refused")}, nil, nil)

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "url", Value: "https://down.example.com", UserID: "u1"},
		{Type: "text", Value: "Gratitude journaling builds perspective.", UserID: "u1"},
	})

	assert.Equal(t, 1, result.DocsIndexed)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "failed", result.Sources[0].Status)
	assert.Contains(t, result.Sources[0].Error, "connection refused")
	assert.Equal(t, "indexed", result.Sources[1].Status)
}

func TestIngestEmptyContentFails(t *testing.T) {
	agent, _ := newTestAgent(t, &stubIndex{}, &stubIndex{})

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "text", Value: "   ", UserID: "u1"},
	})

	assert.Equal(t, 0, result.DocsIndexed)
	assert.Equal(t, "failed", result.Sources[0].Status)
}

func TestIngestUnknownSourceType(t *testing.T) {
	agent, _ := newTestAgent(t, &stubIndex{}, &stubIndex{})

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "carrier-pigeon", Value: "coo", UserID: "u1"},
	})

	assert.Equal(t, "failed", result.Sources[0].Status)
	assert.Contains(t, result.Sources[0].Error, "unknown source type")
}

func TestIngestVectorFailureMarksSourceFailed(t *testing.T) {
	agent, st := newTestAgent(t, &stubIndex{err: errors.New("embed quota exceeded")}, &stubIndex{})

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "text", Value: "Sleep debt compounds across the week.", UserID: "u1"},
	})

	assert.Equal(t, 0, result.DocsIndexed)
	assert.Equal(t, "failed", result.Sources[0].Status)

	docs, err := st.ListDocuments(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestLexicalFailureStillIndexes(t *testing.T) {
	vector := &stubIndex{}
	agent, _ := newTestAgent(t, vector, &stubIndex{err: errors.New("fts locked")})

	result := agent.Ingest(context.Background(), []SourceRequest{
		{Type: "text", Value: "Hydration affects concentration more than people expect.", UserID: "u1"},
	})

	assert.Equal(t, 1, result.DocsIndexed)
	assert.Equal(t, "indexed", result.Sources[0].Status)
	assert.Len(t, vector.chunks, 1)
}
