package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MilvusConfig holds the connection settings and collection names for Milvus.
type MilvusConfig struct {
	Address           string `yaml:"address"`           // Milvus service address
	Collection        string `yaml:"collection"`        // per-document chunk index collection
	CatalogCollection string `yaml:"catalogCollection"` // pre-built paper catalog collection
}

// LayoutConfig holds the settings for the external layout-parser service.
type LayoutConfig struct {
	BaseURL string `yaml:"baseURL"` // layout service endpoint
	APIKey  string `yaml:"apiKey"`  // optional bearer token
	Timeout int    `yaml:"timeout"` // request timeout in seconds
}

// EmbeddingConfig holds the settings for the dense embedding provider. The
// sparse half of the hybrid pair is computed locally and has no remote config.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // embedding provider (e.g. "ollama")
	Model    string `yaml:"model"`    // model name
	BaseURL  string `yaml:"baseURL"`  // provider base URL
}

// LLMConfig holds the settings for the OpenAI-compatible completion provider.
type LLMConfig struct {
	APIKey         string `yaml:"apiKey"`
	BaseURL        string `yaml:"baseURL"`        // empty means the provider default
	ExtractModel   string `yaml:"extractModel"`   // fast model for per-segment summaries and fact extraction
	SynthesisModel string `yaml:"synthesisModel"` // stronger model for drafting, validation, repair, chat
}

// PipelineConfig gathers every tunable of the ingestion and synthesis
// pipelines in one place so call sites never hardcode them.
type PipelineConfig struct {
	TokenBudget       int     `yaml:"tokenBudget"`       // max tokens per merged segment
	TokenOverlap      int     `yaml:"tokenOverlap"`      // overlap between consecutive segments
	MaxPerSection     int     `yaml:"maxPerSection"`     // segments kept per section
	MaxTotalSegments  int     `yaml:"maxTotalSegments"`  // global segment cap per document
	ConfidenceGate    float64 `yaml:"confidenceGate"`    // usefulness threshold for visuals
	UpsertBatchSize   int     `yaml:"upsertBatchSize"`   // points per Milvus upsert
	ExtractBatchSize  int     `yaml:"extractBatchSize"`  // retrieval results per fact-extraction call
	SummaryMaxTokens  int     `yaml:"summaryMaxTokens"`  // per-segment summary budget
	NotesMaxTokens    int     `yaml:"notesMaxTokens"`    // final notes budget
	MaxIterations     int     `yaml:"maxIterations"`     // validate/repair rounds
	NotesRetrievalK   int     `yaml:"notesRetrievalK"`   // top-k per battery query
	ChatRetrievalK    int     `yaml:"chatRetrievalK"`    // top-k for chat grounding
	SearchRetrievalK  int     `yaml:"searchRetrievalK"`  // top-k for catalog search
	RRFConstant       int     `yaml:"rrfConstant"`       // reciprocal rank fusion constant
	MaxVisuals        int     `yaml:"maxVisuals"`        // visual attachments on final notes
	JobPollIntervalMs int     `yaml:"jobPollIntervalMs"` // chat priming poll interval
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"` // listen address, e.g. ":8080"
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Layout    LayoutConfig    `yaml:"layout"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// DefaultPipeline returns the pipeline tuning used when the config file leaves
// a value unset. The per-section and global caps follow the v2 ingestion
// pipeline of the original deployment; both remain configurable.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		TokenBudget:       800,
		TokenOverlap:      100,
		MaxPerSection:     7,
		MaxTotalSegments:  100,
		ConfidenceGate:    0.6,
		UpsertBatchSize:   100,
		ExtractBatchSize:  15,
		SummaryMaxTokens:  50,
		NotesMaxTokens:    1000,
		MaxIterations:     2,
		NotesRetrievalK:   75,
		ChatRetrievalK:    100,
		SearchRetrievalK:  20,
		RRFConstant:       60,
		MaxVisuals:        5,
		JobPollIntervalMs: 500,
	}
}

// LoadConfig reads and parses the YAML configuration at path, filling unset
// pipeline values with defaults.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Pipeline = fillPipelineDefaults(cfg.Pipeline)
	return &cfg, nil
}

func fillPipelineDefaults(p PipelineConfig) PipelineConfig {
	d := DefaultPipeline()
	if p.TokenBudget <= 0 {
		p.TokenBudget = d.TokenBudget
	}
	if p.TokenOverlap <= 0 {
		p.TokenOverlap = d.TokenOverlap
	}
	if p.MaxPerSection <= 0 {
		p.MaxPerSection = d.MaxPerSection
	}
	if p.MaxTotalSegments <= 0 {
		p.MaxTotalSegments = d.MaxTotalSegments
	}
	if p.ConfidenceGate <= 0 {
		p.ConfidenceGate = d.ConfidenceGate
	}
	if p.UpsertBatchSize <= 0 {
		p.UpsertBatchSize = d.UpsertBatchSize
	}
	if p.ExtractBatchSize <= 0 {
		p.ExtractBatchSize = d.ExtractBatchSize
	}
	if p.SummaryMaxTokens <= 0 {
		p.SummaryMaxTokens = d.SummaryMaxTokens
	}
	if p.NotesMaxTokens <= 0 {
		p.NotesMaxTokens = d.NotesMaxTokens
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.NotesRetrievalK <= 0 {
		p.NotesRetrievalK = d.NotesRetrievalK
	}
	if p.ChatRetrievalK <= 0 {
		p.ChatRetrievalK = d.ChatRetrievalK
	}
	if p.SearchRetrievalK <= 0 {
		p.SearchRetrievalK = d.SearchRetrievalK
	}
	if p.RRFConstant <= 0 {
		p.RRFConstant = d.RRFConstant
	}
	if p.MaxVisuals <= 0 {
		p.MaxVisuals = d.MaxVisuals
	}
	if p.JobPollIntervalMs <= 0 {
		p.JobPollIntervalMs = d.JobPollIntervalMs
	}
	return p
}
