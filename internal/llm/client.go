// Package llm provides provider-agnostic clients for text completion and
// embeddings. Absence of a model is a normal condition for this system:
// callers must treat ErrUnavailable as "use the fallback path".
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no model is configured or the provider could
// not be reached. Callers branch on it with errors.Is; it is never fatal.
var ErrUnavailable = errors.New("llm unavailable")

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
