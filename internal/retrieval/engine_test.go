package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raailabs/raai/internal/logging"
)

type mockVector struct {
	chunks []Chunk
	err    error
	calls  []int // k of each call
}

func (m *mockVector) SimilaritySearch(ctx context.Context, query string, k int) ([]Chunk, error) {
	m.calls = append(m.calls, k)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.chunks) > k {
		return m.chunks[:k], nil
	}
	return m.chunks, nil
}

type mockLexical struct {
	chunks []Chunk
	err    error
	calls  int
}

func (m *mockLexical) Rank(ctx context.Context, query string, k int) ([]Chunk, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.chunks) > k {
		return m.chunks[:k], nil
	}
	return m.chunks, nil
}

func chunk(text string) Chunk {
	return Chunk{Text: text, SourceID: "s-" + text[:1], URL: "https://example.com/" + text[:1], Title: text[:1]}
}

func TestRetrieveHybridMerge(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("alpha passage"), chunk("beta passage")}}
	lexical := &mockLexical{chunks: []Chunk{chunk("gamma passage")}}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "stress", 3, false, true)

	assert.Equal(t, MethodHybrid, res.Method)
	require.Len(t, res.Passages, 3)
	// Vector results come before lexical.
	assert.Equal(t, "alpha passage", res.Passages[0].Text)
	assert.Equal(t, "gamma passage", res.Passages[2].Text)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Len(t, res.Citations, 3)
}

func TestRetrieveDedupeByPrefix(t *testing.T) {
	shared := chunk("identical opening text long enough to matter")
	vector := &mockVector{chunks: []Chunk{shared}}
	lexical := &mockLexical{chunks: []Chunk{shared, chunk("different text")}}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 4, false, true)

	require.Len(t, res.Passages, 2)
	assert.Equal(t, shared.Text, res.Passages[0].Text)
}

func TestRetrieveDedupeKeyIsPrefix(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "same-<PREFIX>" // 13 chars, > 100 total
	}
	a := Chunk{Text: long + " tail one"}
	b := Chunk{Text: long + " tail two"} // differs only after char 100

	vector := &mockVector{chunks: []Chunk{a}}
	lexical := &mockLexical{chunks: []Chunk{b}}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 4, false, true)
	assert.Len(t, res.Passages, 1)
}

func TestRetrieveHybridFailureFallsBackToVector(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("alpha passage")}}
	lexical := &mockLexical{err: fmt.Errorf("fts down")}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 2, false, true)

	assert.Equal(t, MethodVectorOnly, res.Method)
	require.Len(t, res.Passages, 1)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestRetrieveNoIndexes(t *testing.T) {
	e := NewEngine(nil, nil, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 5, false, true)

	assert.Equal(t, MethodFallback, res.Method)
	assert.Empty(t, res.Passages)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestRetrieveVectorOnlyWhenHybridDisabled(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("alpha passage")}}
	lexical := &mockLexical{chunks: []Chunk{chunk("beta passage")}}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 1, false, false)

	assert.Equal(t, MethodVectorOnly, res.Method)
	assert.Equal(t, 0, lexical.calls)
}

func TestAdaptiveExpandsExactlyOnce(t *testing.T) {
	// One passage at any k: confidence 1/3 at k=3, still 1/6 after expansion.
	vector := &mockVector{chunks: []Chunk{chunk("only passage")}}
	lexical := &mockLexical{}
	e := NewEngine(vector, lexical, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 3, true, true)

	require.Len(t, vector.calls, 2)
	assert.Equal(t, 3, vector.calls[0])
	assert.Equal(t, 6, vector.calls[1])
	assert.Less(t, res.Confidence, 0.4) // still low, but no third attempt
}

func TestAdaptiveCapsAtMaxDepth(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("only passage")}}
	e := NewEngine(vector, &mockLexical{}, logging.Nop())

	e.Retrieve(context.Background(), "q", 8, true, true)

	require.Len(t, vector.calls, 2)
	assert.Equal(t, 12, vector.calls[1]) // min(12, 2*8)
}

func TestAdaptiveSkippedAtHighK(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("only passage")}}
	e := NewEngine(vector, &mockLexical{}, logging.Nop())

	e.Retrieve(context.Background(), "q", 12, true, true)

	assert.Len(t, vector.calls, 1)
}

func TestAdaptiveSkippedWhenConfident(t *testing.T) {
	vector := &mockVector{chunks: []Chunk{chunk("a1 passage"), chunk("b2 passage"), chunk("c3 passage")}}
	e := NewEngine(vector, &mockLexical{}, logging.Nop())

	res := e.Retrieve(context.Background(), "q", 3, true, true)

	assert.Len(t, vector.calls, 1)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestCitationsPlaceholders(t *testing.T) {
	chunks := []Chunk{
		{Text: "bare passage with no provenance"},
		{Text: "sourced", SourceID: "doc-9", URL: "https://example.com/9", Title: "Nine"},
	}

	cits := Citations(chunks)
	require.Len(t, cits, 2)

	assert.Equal(t, "doc_0", cits[0].SourceID)
	assert.Equal(t, "internal://doc_0", cits[0].URL)
	assert.Equal(t, "Document 0", cits[0].Title)
	assert.Equal(t, "bare passage with no provenance", cits[0].Snippet)

	assert.Equal(t, "doc-9", cits[1].SourceID)
	assert.Equal(t, "Nine", cits[1].Title)
}
