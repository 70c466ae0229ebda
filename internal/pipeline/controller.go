package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docembed/internal/domain"
)

// Controller owns the state of one document's pipeline run:
// idle -> chunked -> embedding -> complete | failed.
type Controller struct {
	chunker domain.Chunker
	driver  *Driver
	logger  zerolog.Logger

	mu    sync.Mutex
	state domain.PipelineState
}

// NewController wires a chunker and an embedding driver into a state machine.
func NewController(chunker domain.Chunker, driver *Driver, logger zerolog.Logger) *Controller {
	return &Controller{
		chunker: chunker,
		driver:  driver,
		logger:  logger,
		state:   domain.PipelineState{Phase: domain.PhaseIdle},
	}
}

// SubmitDocument discards any previous run and chunks text. It is rejected
// while an embedding run is in flight.
func (c *Controller) SubmitDocument(name, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == domain.PhaseEmbedding {
		return domain.ErrOperationInProgress
	}
	c.state = domain.PipelineState{
		RunID:      uuid.NewString(),
		SourceName: name,
		Phase:      domain.PhaseIdle,
	}
	log := c.logger.With().Str("run_id", c.state.RunID).Str("source", name).Logger()

	chunks, err := c.chunker.Chunk(text)
	if err != nil {
		c.state.LastError = err
		log.Error().Err(err).Msg("Chunking failed")
		return fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		c.state.LastError = domain.ErrEmptyDocument
		log.Warn().Msg("Document produced no chunks")
		return domain.ErrEmptyDocument
	}
	c.state.Chunks = chunks
	c.state.Phase = domain.PhaseChunked
	log.Info().Int("chunks", len(chunks)).Msg("Document chunked")
	return nil
}

// StartEmbedding embeds the current chunks. It is a no-op while a run is in
// flight or already complete. Cancelling ctx stops the run between chunks
// and returns the pipeline to the chunked phase.
func (c *Controller) StartEmbedding(ctx context.Context, onProgress ProgressFunc) error {
	c.mu.Lock()
	switch c.state.Phase {
	case domain.PhaseEmbedding, domain.PhaseComplete:
		phase := c.state.Phase
		c.mu.Unlock()
		c.logger.Debug().Stringer("phase", phase).Msg("Ignoring duplicate embedding request")
		return nil
	case domain.PhaseChunked:
	default:
		phase := c.state.Phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start embedding while %s", domain.ErrInvalidPhase, phase)
	}
	c.state.Phase = domain.PhaseEmbedding
	c.state.Progress = 0
	c.state.Results = nil
	c.state.LastError = nil
	chunks := c.state.Chunks
	log := c.logger.With().Str("run_id", c.state.RunID).Str("source", c.state.SourceName).Logger()
	c.mu.Unlock()

	log.Info().Int("chunks", len(chunks)).Msg("Embedding started")
	results, err := c.driver.EmbedAll(ctx, chunks, func(p float64) {
		c.mu.Lock()
		if p > c.state.Progress {
			c.state.Progress = p
		}
		c.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.state.Phase = domain.PhaseComplete
		c.state.Results = results
		c.state.Progress = 100
		log.Info().Int("results", len(results)).Msg("Embedding complete")
		return nil
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		c.state.Phase = domain.PhaseChunked
		c.state.Progress = 0
		c.state.Results = nil
		log.Warn().Err(err).Msg("Embedding cancelled")
		return err
	default:
		c.state.Phase = domain.PhaseFailed
		c.state.Results = nil
		c.state.LastError = err
		ev := log.Error().Err(err).Float64("progress", c.state.Progress)
		if id, ok := domain.FailedChunkID(err); ok {
			ev = ev.Int("chunk_id", id)
		}
		ev.Msg("Embedding failed")
		return err
	}
}

// Export assembles the completed run. It does not modify the state.
func (c *Controller) Export() (domain.ExportableDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != domain.PhaseComplete {
		return domain.ExportableDocument{}, fmt.Errorf("%w: cannot export while %s", domain.ErrInvalidPhase, c.state.Phase)
	}
	return Assemble(c.state.Results, c.state.SourceName)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Chunks = append([]domain.Chunk(nil), c.state.Chunks...)
	s.Results = append([]domain.EmbeddedChunk(nil), c.state.Results...)
	return s
}
