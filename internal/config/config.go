// Package config loads the Run Execution Core's runtime configuration from
// an optional YAML file layered under environment-variable overrides,
// grounded on pkg/config/loader.go's YAML-plus-env-expand-plus-mergo
// pipeline (pkg/config/envexpand.go, pkg/config/merge.go) and
// pkg/config/queue.go's QueueConfig shape. Unlike the teacher, there is no
// agent/MCP/chain registry to build here — spec.md §6.5 names a flat list
// of provider, retrieval, evidence, draft and worker options, so this
// package stays a single merged struct rather than the teacher's
// multi-registry Config.
package config

import (
	"time"

	"github.com/researchops/runcore/internal/database"
	"github.com/researchops/runcore/internal/queue"
)

// Config is the fully resolved, ready-to-use configuration for both
// cmd/api and cmd/worker. Either entrypoint loads the same struct and
// reads only the sections it needs.
type Config struct {
	Database  database.Config `yaml:"database"`
	Queue     queue.Config    `yaml:"queue"`
	LLM       LLMConfig       `yaml:"llm"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Draft     DraftConfig     `yaml:"draft"`
	Server    ServerConfig    `yaml:"server"`
}

// LLMConfig selects and configures the generation provider (spec.md §6.5's
// LLM_PROVIDER/HOSTED_LLM_MODEL).
type LLMConfig struct {
	Provider  string `yaml:"provider"`   // "hosted" or "disabled"
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// RetrieverConfig mirrors spec.md §6.5's RETRIEVER_* options.
type RetrieverConfig struct {
	QueryCount     int     `yaml:"query_count"`
	RerankTopK     int     `yaml:"rerank_topk"`
	MinSources     int     `yaml:"min_sources"`
	MaxSources     int     `yaml:"max_sources"`
	WeightBM25     float64 `yaml:"weight_bm25"`
	WeightEmbed    float64 `yaml:"weight_embed"`
	WeightRecency  float64 `yaml:"weight_recency"`
	WeightCitation float64 `yaml:"weight_citation"`
}

// EvidenceConfig mirrors spec.md §6.5's EVIDENCE_* options.
type EvidenceConfig struct {
	SnippetMin    int     `yaml:"snippet_min"`
	SnippetMax    int     `yaml:"snippet_max"`
	PerSourceCap  int     `yaml:"per_source_cap"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// DraftConfig mirrors spec.md §6.5's DRAFT_SECTION_* options.
type DraftConfig struct {
	SectionMinWords  int `yaml:"section_min_words"`
	SectionMaxTokens int `yaml:"section_max_tokens"`
}

// ServerConfig configures the API entrypoint's HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults returns the built-in configuration every YAML file and
// environment override layers on top of, grounded on
// pkg/config/queue.go's DefaultQueueConfig idiom.
func Defaults() *Config {
	return &Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			User:            "runcore",
			Database:        "runcore",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		Queue: queue.Config{
			WorkerCount:        3,
			PollInterval:       2 * time.Second,
			PollIntervalJitter: 500 * time.Millisecond,
		},
		LLM: LLMConfig{
			Provider:  "hosted",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 2048,
		},
		Retriever: RetrieverConfig{
			QueryCount:     8,
			RerankTopK:     120,
			MinSources:     3,
			MaxSources:     12,
			WeightBM25:     0.55,
			WeightEmbed:    0.30,
			WeightRecency:  0.10,
			WeightCitation: 0.05,
		},
		Evidence: EvidenceConfig{
			SnippetMin:    3,
			SnippetMax:    10,
			PerSourceCap:  4,
			MinSimilarity: 0.55,
		},
		Draft: DraftConfig{
			SectionMinWords:  50,
			SectionMaxTokens: 1200,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
	}
}
