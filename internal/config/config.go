package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region llm-config

// LLMConfig configures the OpenAI-compatible chat completion gateway.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the configured request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// #endregion

// #region embedding-config

// EmbeddingConfig configures the OpenAI-compatible embeddings gateway.
type EmbeddingConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Timeout returns the configured request timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// #endregion

// #region vector-store-config

// VectorStoreConfig selects the vector index implementation.
// Type "sqlite" scans tenant chunks in the main database; "chromem"
// uses an embedded chromem-go collection per tenant.
type VectorStoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// #endregion

// #region retrieval-config

// RetrievalConfig holds thresholds and limits for similarity retrieval.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	ConfidentScore      float32 `yaml:"confident_score"`
	MinResults          int     `yaml:"min_results"`
	MaxContextTokens    int     `yaml:"max_context_tokens"`
}

// #endregion

// #region structured-config

// StructuredConfig bounds the structured query path.
type StructuredConfig struct {
	RowLimit int `yaml:"row_limit"`
}

// #endregion

// #region compose-config

// ComposeConfig holds composition temperatures and the history window.
type ComposeConfig struct {
	StructuredTemperature float32 `yaml:"structured_temperature"`
	SemanticTemperature   float32 `yaml:"semantic_temperature"`
	HistoryLimit          int     `yaml:"history_limit"`
}

// #endregion

// #region intent-config

// IntentConfig points at the externally tunable keyword lists.
// When Watch is set the classifier reloads the file on change.
type IntentConfig struct {
	KeywordsPath string `yaml:"keywords_path"`
	Watch        bool   `yaml:"watch"`
}

// #endregion

// #region root-config

// Config is the root configuration for the answer engine. It is loaded
// once and passed into each component at construction; nothing reads it
// through a global.
type Config struct {
	DBPath      string            `yaml:"db_path"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Structured  StructuredConfig  `yaml:"structured"`
	Compose     ComposeConfig     `yaml:"compose"`
	Intent      IntentConfig      `yaml:"intent"`
}

// #endregion

// #region load

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// #endregion

// #region defaults

// Default returns the engine defaults.
func Default() *Config {
	return &Config{
		DBPath: "engine.db",
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			APIKeyEnv:   "OPENROUTER_API_KEY",
			Model:       "openai/gpt-4o-mini",
			MaxTokens:   2048,
			TimeoutSecs: 60,
		},
		Embedding: EmbeddingConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "text-embedding-3-small",
			Dimension:   1536,
			BatchSize:   64,
			TimeoutSecs: 30,
		},
		VectorStore: VectorStoreConfig{
			Type: "sqlite",
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.20,
			ConfidentScore:      0.75,
			MinResults:          3,
			MaxContextTokens:    40000,
		},
		Structured: StructuredConfig{
			RowLimit: 1000,
		},
		Compose: ComposeConfig{
			StructuredTemperature: 0.1,
			SemanticTemperature:   0.3,
			HistoryLimit:          10,
		},
		Intent: IntentConfig{},
	}
}

// applyDefaults fills zero fields after a partial YAML load.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = def.Embedding.APIKeyEnv
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = def.Retrieval.SimilarityThreshold
	}
	if cfg.Retrieval.ConfidentScore == 0 {
		cfg.Retrieval.ConfidentScore = def.Retrieval.ConfidentScore
	}
	if cfg.Retrieval.MinResults == 0 {
		cfg.Retrieval.MinResults = def.Retrieval.MinResults
	}
	if cfg.Retrieval.MaxContextTokens == 0 {
		cfg.Retrieval.MaxContextTokens = def.Retrieval.MaxContextTokens
	}
	if cfg.Structured.RowLimit == 0 {
		cfg.Structured.RowLimit = def.Structured.RowLimit
	}
	if cfg.Compose.StructuredTemperature == 0 {
		cfg.Compose.StructuredTemperature = def.Compose.StructuredTemperature
	}
	if cfg.Compose.SemanticTemperature == 0 {
		cfg.Compose.SemanticTemperature = def.Compose.SemanticTemperature
	}
	if cfg.Compose.HistoryLimit == 0 {
		cfg.Compose.HistoryLimit = def.Compose.HistoryLimit
	}
}

// #endregion
