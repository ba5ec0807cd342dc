package llm

import (
	"context"
	"time"
)

// WithTimeout bounds every Generate on c with its own deadline. Request
// contexts carry none, so without this a hung provider stalls the caller
// for as long as the connection stays open.
func WithTimeout(c Client, d time.Duration) Client {
	if c == nil {
		return nil
	}
	return &timeoutClient{inner: c, timeout: d}
}

// WithEmbedTimeout bounds every Embed on e with its own deadline.
func WithEmbedTimeout(e Embedder, d time.Duration) Embedder {
	if e == nil {
		return nil
	}
	return &timeoutEmbedder{inner: e, timeout: d}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

func (c *timeoutClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.Generate(ctx, prompt)
}

type timeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

func (e *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.inner.Embed(ctx, text)
}
