package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"docembed/internal/chunker"
	"docembed/internal/domain"
	"docembed/internal/embedding/hashing"
	"docembed/internal/embedding/ollama"
	"docembed/internal/embedding/openai"
	"docembed/internal/pipeline"
)

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  *int   `yaml:"max_retries,omitempty"`
}

// OllamaEmbedderConfig points at a local Ollama server.
type OllamaEmbedderConfig struct {
	ServerURL string `yaml:"server_url"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Ollama  *OllamaEmbedderConfig  `yaml:"ollama,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxWordsPerChunk int `yaml:"max_words_per_chunk"`
}

// PipelineConfig tunes the embedding driver.
type PipelineConfig struct {
	ModelReadyCheckpoint *float64 `yaml:"model_ready_checkpoint,omitempty"`
}

// ExportConfig controls where and in which formats results are written.
type ExportConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder EmbedderConfig `yaml:"embedder"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

const defaultLogFile = "docembed.log"

var (
	knownEmbedders = map[string]bool{"hashing": true, "openai": true, "ollama": true}
	knownFormats   = map[string]bool{"json": true, "chromem": true}
	knownLevels    = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docembed/config.yaml.
// If neither exists, it writes defaults to ~/.config/docembed/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Checkpoint returns the configured model-ready progress value.
func (c *AppConfig) Checkpoint() float64 {
	if c.Pipeline.ModelReadyCheckpoint == nil {
		return pipeline.DefaultModelReadyCheckpoint
	}
	return *c.Pipeline.ModelReadyCheckpoint
}

// Validate reports the first setting that cannot be used.
func (c *AppConfig) Validate() error {
	if !knownEmbedders[c.Embedder.Type] {
		return fmt.Errorf("%w: unknown embedder type %q", domain.ErrInvalidConfiguration, c.Embedder.Type)
	}
	if c.Embedder.Type == "hashing" && c.Embedder.Hashing != nil && c.Embedder.Hashing.Dimension <= 0 {
		return fmt.Errorf("%w: hashing dimension must be positive", domain.ErrInvalidConfiguration)
	}
	if c.Embedder.Type == "openai" && c.Embedder.OpenAI != nil && c.Embedder.OpenAI.MaxRetries != nil && *c.Embedder.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("%w: openai max_retries must not be negative", domain.ErrInvalidConfiguration)
	}
	if c.Chunker.MaxWordsPerChunk <= 0 {
		return fmt.Errorf("%w: max_words_per_chunk must be positive, got %d", domain.ErrInvalidConfiguration, c.Chunker.MaxWordsPerChunk)
	}
	if cp := c.Checkpoint(); cp < 0 || cp >= 100 {
		return fmt.Errorf("%w: model_ready_checkpoint must be in [0,100), got %v", domain.ErrInvalidConfiguration, cp)
	}
	for _, f := range c.Export.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidConfiguration, f)
		}
	}
	if !knownLevels[c.Log.Level] {
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfiguration, c.Log.Level)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docembed", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "hashing"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	cfg.Embedder.Type = strings.ToLower(cfg.Embedder.Type)
	switch cfg.Embedder.Type {
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = hashing.DefaultDimension
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.MaxRetries == nil {
			retries := openai.DefaultMaxRetries
			cfg.Embedder.OpenAI.MaxRetries = &retries
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = openai.DefaultBaseURL
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = openai.DefaultModel
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.ServerURL == "" {
			cfg.Embedder.Ollama.ServerURL = ollama.DefaultServerURL
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = ollama.DefaultModel
		}
	}
	if cfg.Chunker.MaxWordsPerChunk == 0 {
		cfg.Chunker.MaxWordsPerChunk = chunker.DefaultMaxWordsPerChunk
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "."
	}
	if len(cfg.Export.Formats) == 0 {
		cfg.Export.Formats = []string{"json"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogFile
	}
}
