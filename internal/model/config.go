package model

import "time"

// Config holds the complete nesach configuration
type Config struct {
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Sink        SinkConfig        `yaml:"sink" mapstructure:"sink"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// SourceConfig controls how source documents are accepted and read
type SourceConfig struct {
	MinBytes    int64  `yaml:"min_bytes" mapstructure:"min_bytes"`         // Smaller objects are rejected before download
	SamplePages int    `yaml:"sample_pages" mapstructure:"sample_pages"`   // Pages sampled for the text/Hebrew checks
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`         // Pages scanned for labeled fields (0 = all)
	PDFEngine   string `yaml:"pdf_engine" mapstructure:"pdf_engine"`       // ledongthuc, docconv
	Parallel    bool   `yaml:"parallel" mapstructure:"parallel"`           // Scan pages concurrently
	Patterns    string `yaml:"patterns,omitempty" mapstructure:"patterns"` // YAML field table replacing the built-in labels
}

// StorageConfig configures the object store used for sources and outputs
type StorageConfig struct {
	Region        string `yaml:"region" mapstructure:"region"`
	Endpoint      string `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // S3-compatible endpoint (MinIO, LocalStack)
	UsePathStyle  bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
	AccessKey     string `yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey     string `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	OutBucket     string `yaml:"out_bucket" mapstructure:"out_bucket"`
	StagingPrefix string `yaml:"staging_prefix" mapstructure:"staging_prefix"`
}

// LLMConfig configures the optional enrichment step
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini, "" (disabled)
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxContextChars   int     `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// SinkConfig selects where extraction records are persisted
type SinkConfig struct {
	Kind  string `yaml:"kind" mapstructure:"kind"`         // object, postgres, sqlite, none
	DSN   string `yaml:"dsn,omitempty" mapstructure:"dsn"` // postgres URL or sqlite file path
	Table string `yaml:"table,omitempty" mapstructure:"table"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	JWTSecret      string        `yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// HTTPConfig holds outbound HTTP settings shared by LLM clients
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the enrichment response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls document-level parallelism
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per source bucket
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Indent  bool `yaml:"indent" mapstructure:"indent"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			MinBytes:    1024,
			SamplePages: 10,
			MaxPages:    10,
			PDFEngine:   "ledongthuc",
		},
		Storage: StorageConfig{
			Region:        "il-central-1",
			StagingPrefix: "staging",
		},
		LLM: LLMConfig{
			Timeout:           30,
			MaxTokens:         800,
			MaxContextChars:   12000,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Sink: SinkConfig{
			Kind:  "object",
			Table: "extractions",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".nesach-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			RequestsPerSecond: 10,
			Burst:             10,
		},
		Output: OutputConfig{
			Indent: true,
		},
	}
}
