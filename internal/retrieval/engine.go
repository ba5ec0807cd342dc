package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// maxDepth bounds adaptive expansion; a re-query never asks for more.
const maxDepth = 12

// lowConfidence is the threshold under which an adaptive query expands once.
const lowConfidence = 0.4

// VectorSearcher is the semantic index consumed by the engine. It may be
// absent (nil) when no embedder is configured or no index has been built.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Chunk, error)
}

// LexicalSearcher is the term-frequency index. Optional.
type LexicalSearcher interface {
	Rank(ctx context.Context, query string, k int) ([]Chunk, error)
}

// Engine merges vector and lexical retrieval with dedup and adaptive depth.
type Engine struct {
	Vector  VectorSearcher
	Lexical LexicalSearcher
	Log     *zap.SugaredLogger
}

func NewEngine(vector VectorSearcher, lexical LexicalSearcher, log *zap.SugaredLogger) *Engine {
	return &Engine{Vector: vector, Lexical: lexical, Log: log}
}

// Retrieve runs one query.
//
// With hybrid enabled and both indexes present, the top-k of each are merged
// vector-first, deduplicated on the content-prefix key and truncated to k.
// A hybrid failure degrades to vector-only; no vector index yields the empty
// fallback result. When adaptive is set and confidence lands under 0.4 at
// k < 12, the query re-runs exactly once at min(12, 2k). The retry is a
// bounded synchronous loop, not recursion.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, adaptive, useHybrid bool) Result {
	if k <= 0 {
		k = 6
	}

	result := e.retrieveOnce(ctx, query, k, useHybrid)

	if adaptive && result.Confidence < lowConfidence && k < maxDepth {
		expanded := min(maxDepth, 2*k)
		e.Log.Infow("low retrieval confidence; expanding search depth",
			"current_k", k, "new_k", expanded, "confidence", result.Confidence)
		result = e.retrieveOnce(ctx, query, expanded, useHybrid)
	}

	return result
}

func (e *Engine) retrieveOnce(ctx context.Context, query string, k int, useHybrid bool) Result {
	if useHybrid && e.Vector != nil && e.Lexical != nil {
		result, err := e.hybrid(ctx, query, k)
		if err == nil {
			e.Log.Infow("hybrid retrieval complete", "results", len(result.Passages), "k", k)
			return result
		}
		e.Log.Errorw("hybrid retrieval failed; falling back to vector-only", "error", err)
	}

	if e.Vector != nil {
		chunks, err := e.Vector.SimilaritySearch(ctx, query, k)
		if err == nil {
			return buildResult(chunks, k, MethodVectorOnly)
		}
		e.Log.Errorw("vector retrieval failed", "error", err)
	}

	return Result{Passages: []Chunk{}, Citations: []Citation{}, Method: MethodFallback}
}

func (e *Engine) hybrid(ctx context.Context, query string, k int) (Result, error) {
	vectorChunks, err := e.Vector.SimilaritySearch(ctx, query, k)
	if err != nil {
		return Result{}, fmt.Errorf("vector leg: %w", err)
	}
	lexicalChunks, err := e.Lexical.Rank(ctx, query, k)
	if err != nil {
		return Result{}, fmt.Errorf("lexical leg: %w", err)
	}

	// Merge vector-first, dropping passages whose content prefix was already
	// seen. First occurrence wins.
	seen := make(map[string]bool)
	var merged []Chunk
	for _, c := range append(vectorChunks, lexicalChunks...) {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
	}

	if len(merged) > k {
		merged = merged[:k]
	}
	return buildResult(merged, k, MethodHybrid), nil
}

func buildResult(chunks []Chunk, k int, method string) Result {
	confidence := 0.0
	if len(chunks) > 0 {
		confidence = min(1.0, float64(len(chunks))/float64(k))
	}
	return Result{
		Passages:   chunks,
		Citations:  Citations(chunks),
		Confidence: confidence,
		Method:     method,
	}
}

// Citations derives one citation per passage. Missing provenance yields the
// synthetic doc_<i> placeholder so every passage is always citable.
func Citations(chunks []Chunk) []Citation {
	out := make([]Citation, 0, len(chunks))
	for i, c := range chunks {
		cit := Citation{
			SourceID: c.SourceID,
			URL:      c.URL,
			Title:    c.Title,
			Start:    0,
			End:      min(dedupePrefixLen, len(c.Text)),
			Snippet:  c.Key(),
		}
		if cit.SourceID == "" {
			cit.SourceID = fmt.Sprintf("doc_%d", i)
		}
		if cit.URL == "" {
			cit.URL = fmt.Sprintf("internal://doc_%d", i)
		}
		if cit.Title == "" {
			cit.Title = fmt.Sprintf("Document %d", i)
		}
		out = append(out, cit)
	}
	return out
}
