// Package retrieval implements hybrid document retrieval: a vector index and
// a lexical index merged per query, deduplicated, with adaptive depth when
// confidence is low.
package retrieval

// Retrieval methods reported on a Result.
const (
	MethodHybrid     = "hybrid"
	MethodVectorOnly = "vector_only"
	MethodFallback   = "fallback"
)

// dedupePrefixLen is the number of leading characters used as a chunk's
// dedup key. Near-duplicate passages almost always share their opening.
const dedupePrefixLen = 100

// Chunk is one indexed passage with its provenance. Provenance travels as
// structured fields, never embedded in the text.
type Chunk struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Key returns the content-prefix dedup key for the chunk.
func (c Chunk) Key() string {
	if len(c.Text) <= dedupePrefixLen {
		return c.Text
	}
	return c.Text[:dedupePrefixLen]
}

// Citation is the provenance record derived from one retrieved passage.
type Citation struct {
	SourceID string `json:"source_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Snippet  string `json:"snippet"`
}

// Result is one query's outcome. Confidence is min(1, len(Passages)/k) for
// the k that was actually requested.
type Result struct {
	Passages   []Chunk    `json:"passages"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
}
