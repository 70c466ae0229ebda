package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"docembed/internal/domain"
	"docembed/internal/embedding"
)

// DefaultModelReadyCheckpoint is the progress reported once the model is
// loaded and before the first chunk is embedded.
const DefaultModelReadyCheckpoint = 20.0

// ProgressFunc receives progress values in [0,100].
type ProgressFunc = func(percent float64)

// Driver runs an embedder over chunks strictly one at a time.
type Driver struct {
	embedder   embedding.Embedder
	checkpoint float64
	logger     zerolog.Logger
}

// NewDriver returns a driver reporting checkpoint once the model is ready.
func NewDriver(embedder embedding.Embedder, checkpoint float64, logger zerolog.Logger) (*Driver, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", domain.ErrInvalidConfiguration)
	}
	if checkpoint < 0 || checkpoint >= 100 {
		return nil, fmt.Errorf("%w: model ready checkpoint must be in [0,100), got %v", domain.ErrInvalidConfiguration, checkpoint)
	}
	return &Driver{embedder: embedder, checkpoint: checkpoint, logger: logger}, nil
}

// EmbedAll embeds every chunk in order. It returns either one result per
// chunk or an error and no results. Cancellation of ctx is honoured between
// chunks; a call already sent to the model always runs to completion.
func (d *Driver) EmbedAll(ctx context.Context, chunks []domain.Chunk, onProgress ProgressFunc) ([]domain.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return []domain.EmbeddedChunk{}, nil
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedding cancelled: %w", err)
	}

	if loader, ok := d.embedder.(embedding.Loader); ok {
		d.logger.Debug().Str("embedder", d.embedder.Name()).Msg("Loading embedding model")
		if err := loader.Load(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("embedding cancelled during model load: %w", ctxErr)
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelUnavailable, d.embedder.Name(), err)
		}
	}
	onProgress(d.checkpoint)

	inference := context.WithoutCancel(ctx)
	results := make([]domain.EmbeddedChunk, 0, len(chunks))
	dimension := 0
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("embedding cancelled before chunk %d: %w", c.ID, err)
		}
		vec, err := d.embedder.Embed(inference, c.Text)
		if err != nil {
			return nil, &domain.EmbeddingFailedError{ChunkID: c.ID, Cause: err}
		}
		if len(vec) == 0 {
			return nil, &domain.EmbeddingFailedError{ChunkID: c.ID, Cause: errors.New("model returned an empty vector")}
		}
		if dimension == 0 {
			dimension = len(vec)
		} else if len(vec) != dimension {
			return nil, &domain.InconsistentDimensionError{ChunkID: c.ID, Want: dimension, Got: len(vec)}
		}
		results = append(results, domain.EmbeddedChunk{Chunk: c, Embedding: vec})

		p := progressAt(d.checkpoint, i+1, len(chunks))
		d.logger.Debug().Int("chunk_id", c.ID).Float64("progress", p).Msg("Embedded chunk")
		onProgress(p)
	}
	return results, nil
}

// progressAt spreads the span above checkpoint linearly over total chunks
// and pins the final value to exactly 100.
func progressAt(checkpoint float64, done, total int) float64 {
	if done >= total {
		return 100
	}
	return checkpoint + (100-checkpoint)*float64(done)/float64(total)
}
