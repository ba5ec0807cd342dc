package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raailabs/raai/internal/logging"
)

// stubEmbedder maps known words onto axis-aligned vectors so nearest-chunk
// assertions are deterministic.
type stubEmbedder struct {
	axes map[string]int
	err  error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vec := make([]float32, 4)
	for word, axis := range s.axes {
		if strings.Contains(strings.ToLower(text), word) {
			vec[axis] = 1
		}
	}
	return vec, nil
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{axes: map[string]int{
		"stress": 0, "sleep": 1, "gratitude": 2, "focus": 3,
	}}
}

func TestVectorIndexRequiresEmbedder(t *testing.T) {
	_, err := NewVectorIndex(newTestDB(t), nil, 4, logging.Nop())
	assert.Error(t, err)
}

func TestVectorIndexSimilaritySearch(t *testing.T) {
	idx, err := NewVectorIndex(newTestDB(t), newStubEmbedder(), 4, logging.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{Text: "Managing stress with short walks", SourceID: "d1"},
		{Text: "Sleep routines for better rest", SourceID: "d2"},
		{Text: "Gratitude practice before bed", SourceID: "d3"},
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	chunks, err := idx.SimilaritySearch(ctx, "how do I handle stress", 2)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "d1", chunks[0].SourceID)
	assert.LessOrEqual(t, len(chunks), 2)
}

func TestVectorIndexEmbedderFailureOnQuery(t *testing.T) {
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(newTestDB(t), emb, 4, logging.Nop())
	require.NoError(t, err)

	emb.err = fmt.Errorf("provider down")
	_, err = idx.SimilaritySearch(context.Background(), "stress", 3)
	assert.Error(t, err)
}

func TestVectorIndexSkipsFailedEmbeddings(t *testing.T) {
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(newTestDB(t), emb, 4, logging.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	emb.err = fmt.Errorf("provider down")
	require.NoError(t, idx.Add(ctx, []Chunk{{Text: "unembeddable", SourceID: "d1"}}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestFloat32BlobRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out := decodeFloat32Blob(encodeFloat32Blob(in))
	assert.Equal(t, in, out)
}
