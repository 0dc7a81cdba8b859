package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment" yaml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Storage     StorageConfig     `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	Chunking    ChunkingConfig    `toml:"chunking" yaml:"chunking"`
	Index       IndexConfig       `toml:"index" yaml:"index"`
	Rerank      RerankConfig      `toml:"rerank" yaml:"rerank"`
	LLM         LLMConfig         `toml:"llm" yaml:"llm"`
	Ollama      OpenAIConfig      `toml:"ollama" yaml:"ollama"` // Ollama is driven through its OpenAI-compatible API
	OpenAI      OpenAIConfig      `toml:"openai" yaml:"openai"`
	Gemini      GeminiConfig      `toml:"gemini" yaml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude" yaml:"claude"`
	Maintenance MaintenanceConfig `toml:"maintenance" yaml:"maintenance"`
}

type ServerConfig struct {
	Port          int    `toml:"port" yaml:"port" validate:"min=1,max=65535"`
	Host          string `toml:"host" yaml:"host" validate:"required"`
	ReadTimeout   string `toml:"read_timeout" yaml:"read_timeout"`       // e.g. "30s"
	WriteTimeout  string `toml:"write_timeout" yaml:"write_timeout"`     // must cover a full generation, e.g. "10m"
	MaxUploadSize int64  `toml:"max_upload_size" yaml:"max_upload_size"` // bytes accepted by POST /process
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger" yaml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" yaml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"`
	Dir        string   `toml:"dir" yaml:"dir"` // log directory, defaults to <executable dir>/logs
}

// ChunkingConfig controls how extracted page text is split into passages
type ChunkingConfig struct {
	ChunkSize    int      `toml:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	ChunkOverlap int      `toml:"chunk_overlap" yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Separators   []string `toml:"separators" yaml:"separators"`
}

// IndexConfig controls the vector collection
type IndexConfig struct {
	Collection string `toml:"collection" yaml:"collection" validate:"required"`
	NResults   int    `toml:"n_results" yaml:"n_results" validate:"min=1"`
}

// RerankConfig points at the cross-encoder scoring service
type RerankConfig struct {
	URL     string `toml:"url" yaml:"url" validate:"required,url"`
	Model   string `toml:"model" yaml:"model"`
	TopK    int    `toml:"top_k" yaml:"top_k" validate:"min=1"`
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// LLMConfig selects providers for chat and embeddings
type LLMConfig struct {
	Provider      string `toml:"provider" yaml:"provider" validate:"oneof=ollama openai gemini claude"`
	EmbedProvider string `toml:"embed_provider" yaml:"embed_provider" validate:"omitempty,oneof=ollama openai gemini"` // defaults to Provider
}

// OpenAIConfig configures an OpenAI-compatible endpoint (OpenAI itself or Ollama's /v1)
type OpenAIConfig struct {
	BaseURL     string  `toml:"base_url" yaml:"base_url"`
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	EmbedModel  string  `toml:"embed_model" yaml:"embed_model"`
	ChatModel   string  `toml:"chat_model" yaml:"chat_model"`
	Timeout     string  `toml:"timeout" yaml:"timeout"`
	RateLimit   string  `toml:"rate_limit" yaml:"rate_limit"` // minimum interval between calls, "0" disables
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key" yaml:"api_key"`
	EmbedModel     string  `toml:"embed_model" yaml:"embed_model"`
	ChatModel      string  `toml:"chat_model" yaml:"chat_model"`
	EmbedDimension int     `toml:"embed_dimension" yaml:"embed_dimension"`
	Timeout        string  `toml:"timeout" yaml:"timeout"`
	RateLimit      string  `toml:"rate_limit" yaml:"rate_limit"`
	Temperature    float32 `toml:"temperature" yaml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	Model       string  `toml:"model" yaml:"model"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
	Timeout     string  `toml:"timeout" yaml:"timeout"`
	RateLimit   string  `toml:"rate_limit" yaml:"rate_limit"`
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

// MaintenanceConfig schedules badger value log garbage collection
type MaintenanceConfig struct {
	Enabled      bool    `toml:"enabled" yaml:"enabled"`
	Schedule     string  `toml:"schedule" yaml:"schedule"` // cron format with seconds
	DiscardRatio float64 `toml:"discard_ratio" yaml:"discard_ratio" validate:"gt=0,lt=1"`
}

// DefaultSeparators is the recursive splitting order, coarsest first
var DefaultSeparators = []string{"\n\n", "\n", ".", "?", "!", " ", ""}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:          8001,
			Host:          "127.0.0.1",
			ReadTimeout:   "30s",
			WriteTimeout:  "10m",
			MaxUploadSize: 32 << 20,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./demo-rag-chroma",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Chunking: ChunkingConfig{
			ChunkSize:    500,
			ChunkOverlap: 100,
			Separators:   append([]string(nil), DefaultSeparators...),
		},
		Index: IndexConfig{
			Collection: "rag_app",
			NResults:   10,
		},
		Rerank: RerankConfig{
			URL:     "http://localhost:8080",
			Model:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
			TopK:    3,
			Timeout: "60s",
		},
		LLM: LLMConfig{
			Provider: "ollama",
		},
		Ollama: OpenAIConfig{
			BaseURL:    "http://localhost:11434/v1",
			APIKey:     "ollama",
			EmbedModel: "nomic-embed-text:latest",
			ChatModel:  "phi4",
			Timeout:    "5m",
			RateLimit:  "0",
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			EmbedModel:  "text-embedding-3-small",
			ChatModel:   "gpt-4o-mini",
			Timeout:     "5m",
			RateLimit:   "0",
			Temperature: 0.2,
		},
		Gemini: GeminiConfig{
			EmbedModel:     "gemini-embedding-001",
			ChatModel:      "gemini-2.0-flash",
			EmbedDimension: 768,
			Timeout:        "5m",
			RateLimit:      "4s",
			Temperature:    0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		Maintenance: MaintenanceConfig{
			Enabled:      true,
			Schedule:     "0 0 */6 * * *",
			DiscardRatio: 0.5,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// TOML is the primary format; files ending in .yaml or .yml are parsed as YAML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env only fills variables that are not already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EmbedProvider returns the provider used for embeddings
func (c *Config) EmbedProvider() string {
	if c.LLM.EmbedProvider != "" {
		return c.LLM.EmbedProvider
	}
	return c.LLM.Provider
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCQA_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("DOCQA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCQA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("DOCQA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("DOCQA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DOCQA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Index and rerank configuration
	if collection := os.Getenv("DOCQA_COLLECTION"); collection != "" {
		config.Index.Collection = collection
	}
	if rerankURL := os.Getenv("DOCQA_RERANK_URL"); rerankURL != "" {
		config.Rerank.URL = rerankURL
	}

	// LLM configuration
	if provider := os.Getenv("DOCQA_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if embedProvider := os.Getenv("DOCQA_EMBED_PROVIDER"); embedProvider != "" {
		config.LLM.EmbedProvider = embedProvider
	}
	if ollamaURL := os.Getenv("DOCQA_OLLAMA_URL"); ollamaURL != "" {
		config.Ollama.BaseURL = ollamaURL
	}
	if apiKey := firstEnv("DOCQA_OPENAI_API_KEY", "OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := firstEnv("DOCQA_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := firstEnv("DOCQA_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDuration parses a duration string, treating "" and "0" as zero
func ParseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
