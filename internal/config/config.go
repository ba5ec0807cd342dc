package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type RetrievalConfig struct {
	TopK      int  `toml:"top_k"`
	Adaptive  bool `toml:"adaptive"`
	UseHybrid bool `toml:"use_hybrid"`
}

type IngestConfig struct {
	ChunkSize     int `toml:"chunk_size"`
	ChunkOverlap  int `toml:"chunk_overlap"`
	UploadSize    int `toml:"upload_chunk_size"`
	UploadOverlap int `toml:"upload_chunk_overlap"`
}

type CrisisConfig struct {
	ZScoreThreshold float64 `toml:"zscore_threshold"`
	CooldownHours   int     `toml:"cooldown_hours"`
	SMSWebhookURL   string  `toml:"sms_webhook_url"`
	PushWebhookURL  string  `toml:"push_webhook_url"`
}

type ServerConfig struct {
	Addr     string `toml:"addr"`
	LogLevel string `toml:"log_level"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Storage   StorageConfig   `toml:"storage"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Ingest    IngestConfig    `toml:"ingest"`
	Crisis    CrisisConfig    `toml:"crisis"`
	Server    ServerConfig    `toml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			TimeoutSeconds: 10,
		},
		Storage:   StorageConfig{Path: "raai.db"},
		Retrieval: RetrievalConfig{TopK: 6, Adaptive: true, UseHybrid: true},
		Ingest: IngestConfig{
			ChunkSize:     800,
			ChunkOverlap:  200,
			UploadSize:    1000,
			UploadOverlap: 300,
		},
		Crisis: CrisisConfig{ZScoreThreshold: 2.5, CooldownHours: 24},
		Server: ServerConfig{Addr: ":8080", LogLevel: "info"},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv layers environment variables over the loaded file so deployments
// can override single fields without editing TOML.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("RAAI_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("CRISIS_ZSCORE_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.Crisis.ZScoreThreshold = t
		}
	}
	if v := os.Getenv("SMS_WEBHOOK_URL"); v != "" {
		c.Crisis.SMSWebhookURL = v
	}
	if v := os.Getenv("PUSH_WEBHOOK_URL"); v != "" {
		c.Crisis.PushWebhookURL = v
	}
	if v := os.Getenv("RAAI_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// LLMTimeout returns the configured upper bound for a single model call.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
