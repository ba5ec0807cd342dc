package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raailabs/raai/internal/agent"
	"github.com/raailabs/raai/internal/alert"
	"github.com/raailabs/raai/internal/config"
	"github.com/raailabs/raai/internal/ingest"
	"github.com/raailabs/raai/internal/llm"
	"github.com/raailabs/raai/internal/logging"
	"github.com/raailabs/raai/internal/retrieval"
	"github.com/raailabs/raai/internal/safety"
	"github.com/raailabs/raai/internal/store"
)

// embeddingDims sizes the vec0 virtual table to the default
// text-embedding-3-small width.
const embeddingDims = 1536

// NewServer wires every component from configuration. The LLM and the vector
// index are optional; everything downstream degrades per its documented
// fallback when they are absent.
func NewServer(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = logging.New(cfg.Server.LogLevel)
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	model, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if model == nil {
		log.Warnw("no LLM configured; model-backed stages will use fallbacks")
	}
	model = llm.WithTimeout(model, cfg.LLMTimeout())
	embedder = llm.WithEmbedTimeout(embedder, cfg.LLMTimeout())

	var vector retrieval.VectorSearcher
	var vectorSink ingest.ChunkIndex
	if embedder != nil {
		vi, err := retrieval.NewVectorIndex(st.DB(), embedder, embeddingDims, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		vector = vi
		vectorSink = vi
	} else {
		log.Warnw("no embedder configured; retrieval runs lexical-free fallback only")
	}

	lexical, err := retrieval.NewLexicalIndex(st.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lexical index: %w", err)
	}

	engine := retrieval.NewEngine(vector, lexical, log)

	ingestAgent := ingest.NewAgent(ingest.Options{
		WebChunkSize:       cfg.Ingest.ChunkSize,
		WebChunkOverlap:    cfg.Ingest.ChunkOverlap,
		UploadChunkSize:    cfg.Ingest.UploadSize,
		UploadChunkOverlap: cfg.Ingest.UploadOverlap,
		TranscriptBaseURL:  "https://youtubetranscript.io/api/transcripts",
	}, ingestSink(vectorSink), lexical, st, log)

	classifier := &safety.Classifier{Model: model, Log: log}
	transport := buildTransport(cfg.Crisis, log)
	crisis := agent.NewCrisisAgent(classifier, transport, agent.NewMemoryCooldown(),
		cfg.Crisis.ZScoreThreshold, time.Duration(cfg.Crisis.CooldownHours)*time.Hour, log)

	analyzer := &agent.JournalAnalyzer{Model: model, Log: log}
	sentiment := &agent.SentimentAgent{Analyzer: analyzer, Store: st, Log: log}
	insight := &agent.InsightAgent{Model: model, Store: st, Log: log}

	orchestrator := &agent.Orchestrator{
		Sentiment: sentiment,
		Crisis:    crisis,
		Retrieval: engine,
		Insight:   insight,
		Store:     st,
		Log:       log,
	}

	return &Server{
		Orchestrator: orchestrator,
		Insight:      insight,
		Ingest:       ingestAgent,
		Retrieval:    engine,
		Store:        st,
		Config:       cfg,
		Log:          log,
	}, nil
}

func buildTransport(cfg config.CrisisConfig, log *zap.SugaredLogger) alert.Transport {
	var transports []alert.Transport
	if cfg.SMSWebhookURL != "" {
		transports = append(transports, alert.NewWebhookTransport(cfg.SMSWebhookURL, "sms", log))
	}
	if cfg.PushWebhookURL != "" {
		transports = append(transports, alert.NewWebhookTransport(cfg.PushWebhookURL, "push", log))
	}
	if len(transports) == 0 {
		return &alert.LogTransport{Log: log}
	}
	return &alert.Fanout{Transports: transports}
}

// ingestSink keeps the ingest agent's vector leg nil-safe when no embedder
// is configured.
func ingestSink(idx ingest.ChunkIndex) ingest.ChunkIndex {
	if idx == nil {
		return noopIndex{}
	}
	return idx
}

type noopIndex struct{}

func (noopIndex) Add(context.Context, []retrieval.Chunk) error { return nil }
