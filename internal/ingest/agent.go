package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/store"
)

// ChunkIndex receives chunks produced by ingestion.
type ChunkIndex interface {
	Add(ctx context.Context, chunks []retrieval.Chunk) error
}

// SourceRequest names one source to ingest.
type SourceRequest struct {
	Type   string `json:"type"`   // url, video, feed, text
	Value  string `json:"value"`  // URL, video id, feed URL, or raw text
	Title  string `json:"title"`  // optional, used for type text
	UserID string `json:"user_id"`
}

// SourceResult reports the outcome of ingesting one source.
type SourceResult struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Chunks int    `json:"chunks"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocsIndexed int            `json:"docs_indexed"`
	Sources     []SourceResult `json:"sources"`
}

// Agent fetches external content, splits it into chunks, and feeds the
// chunks into the search indexes.
type Agent struct {
	webChunker    Chunker
	uploadChunker Chunker

	web        Fetcher
	transcript Fetcher
	feed       Fetcher

	vector  ChunkIndex
	lexical ChunkIndex
	docs    *store.Store
	log     *zap.SugaredLogger
}

// Options configures an ingestion Agent.
type Options struct {
	WebChunkSize       int
	WebChunkOverlap    int
	UploadChunkSize    int
	UploadChunkOverlap int
	TranscriptBaseURL  string
}

func NewAgent(opts Options, vector, lexical ChunkIndex, docs *store.Store, log *zap.SugaredLogger) *Agent {
	return &Agent{
		webChunker:    NewChunker(opts.WebChunkSize, opts.WebChunkOverlap),
		uploadChunker: NewChunker(opts.UploadChunkSize, opts.UploadChunkOverlap),
		web:           NewWebFetcher(),
		transcript:    NewTranscriptFetcher(opts.TranscriptBaseURL),
		feed:          NewFeedFetcher(),
		vector:        vector,
		lexical:       lexical,
		docs:          docs,
		log:           log,
	}
}

// SetFetchers swaps the source fetchers, used by tests.
func (a *Agent) SetFetchers(web, transcript, feed Fetcher) {
	if web != nil {
		a.web = web
	}
	if transcript != nil {
		a.transcript = transcript
	}
	if feed != nil {
		a.feed = feed
	}
}

// Ingest processes each source independently; one failed source does not
// abort the others.
func (a *Agent) Ingest(ctx context.Context, sources []SourceRequest) IngestResult {
	result := IngestResult{Sources: make([]SourceResult, 0, len(sources))}
	for _, src := range sources {
		sr := a.ingestOne(ctx, src)
		if sr.Status == "indexed" {
			result.DocsIndexed++
		}
		result.Sources = append(result.Sources, sr)
	}
	return result
}

func (a *Agent) ingestOne(ctx context.Context, src SourceRequest) SourceResult {
	sr := SourceResult{Source: src.Value, Type: src.Type}

	content, chunker, err := a.fetch(ctx, src)
	if err != nil {
		a.log.Warnw("source fetch failed", "type", src.Type, "source", src.Value, "error", err)
		sr.Status = "failed"
		sr.Error = err.Error()
		return sr
	}
	if strings.TrimSpace(content.Text) == "" {
		sr.Status = "failed"
		sr.Error = "source produced no text"
		return sr
	}

	pieces := chunker.Split(content.Text)
	chunks := make([]retrieval.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, retrieval.Chunk{
			Text:     p,
			SourceID: content.SourceID,
			URL:      content.URL,
			Title:    content.Title,
		})
	}

	if err := a.vector.Add(ctx, chunks); err != nil {
		a.log.Warnw("vector indexing failed", "source", src.Value, "error", err)
		sr.Status = "failed"
		sr.Error = err.Error()
		return sr
	}
	if a.lexical != nil {
		if err := a.lexical.Add(ctx, chunks); err != nil {
			// Vector search still works, keep the document.
			a.log.Warnw("lexical indexing failed", "source", src.Value, "error", err)
		}
	}

	if a.docs != nil {
		doc := store.Document{
			ID:         uuid.NewString(),
			UserID:     src.UserID,
			Title:      content.Title,
			SourceType: content.SourceType,
			Source:     src.Value,
			ChunkCount: len(chunks),
		}
		if err := a.docs.AddDocument(ctx, doc); err != nil {
			a.log.Warnw("document registry insert failed", "source", src.Value, "error", err)
		}
	}

	sr.Chunks = len(chunks)
	sr.Status = "indexed"
	return sr
}

func (a *Agent) fetch(ctx context.Context, src SourceRequest) (*FetchedContent, Chunker, error) {
	switch src.Type {
	case "url":
		c, err := a.web.Fetch(ctx, src.Value)
		return c, a.webChunker, err
	case "video":
		c, err := a.transcript.Fetch(ctx, src.Value)
		return c, a.webChunker, err
	case "feed":
		c, err := a.feed.Fetch(ctx, src.Value)
		return c, a.webChunker, err
	case "text":
		title := src.Title
		if title == "" {
			title = "Uploaded document"
		}
		return &FetchedContent{
			Text:       src.Value,
			Title:      title,
			SourceID:   uuid.NewString(),
			SourceType: "upload",
		}, a.uploadChunker, nil
	default:
		return nil, Chunker{}, fmt.Errorf("unknown source type %q", src.Type)
	}
}
