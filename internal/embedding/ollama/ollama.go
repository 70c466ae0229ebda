package ollama

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"docembed/internal/embedding"
)

const (
	DefaultServerURL = "http://localhost:11434"
	DefaultModel     = "nomic-embed-text"
)

// Config configures the Ollama embedder.
type Config struct {
	ServerURL string
	Model     string
}

// Embedder embeds text through a local Ollama server using langchaingo.
// The model is loaded lazily by Load, which also issues a warm-up request
// so the first chunk does not pay the load cost.
type Embedder struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	impl      *embeddings.EmbedderImpl
	dimension int
}

// New creates an Ollama embedder. No network traffic happens until Load or Embed.
func New(cfg Config, logger zerolog.Logger) *Embedder {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Embedder{cfg: cfg, logger: logger}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// Dimension returns the dimension observed during warm-up, or 0 before Load.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Load creates the langchaingo client and forces the model into memory.
// A failed load is retried on the next call.
func (e *Embedder) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.impl != nil {
		return nil
	}
	return e.load(ctx)
}

func (e *Embedder) load(ctx context.Context) error {
	e.logger.Debug().
		Str("server_url", e.cfg.ServerURL).
		Str("model", e.cfg.Model).
		Msg("Loading ollama embedding model")

	llm, err := ollama.New(
		ollama.WithServerURL(e.cfg.ServerURL),
		ollama.WithModel(e.cfg.Model),
	)
	if err != nil {
		return fmt.Errorf("init ollama client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return fmt.Errorf("create ollama embedder: %w", err)
	}
	warm, err := impl.EmbedQuery(ctx, "warm-up")
	if err != nil {
		return fmt.Errorf("warm up model %s: %w", e.cfg.Model, err)
	}
	e.impl = impl
	e.dimension = len(warm)
	e.logger.Info().Str("model", e.cfg.Model).Int("dimension", e.dimension).Msg("Ollama model ready")
	return nil
}

// Embed returns a unit-normalized embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.Load(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	impl := e.impl
	e.mu.Unlock()
	vec, err := impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return embedding.Normalize(vec), nil
}
