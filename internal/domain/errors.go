package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrEmptyDocument         = errors.New("document has no content to chunk")
	ErrEmbeddingFailed       = errors.New("embedding failed")
	ErrInconsistentDimension = errors.New("inconsistent embedding dimension")
	ErrEmptyResultSet        = errors.New("no embedded chunks to export")
	ErrOperationInProgress   = errors.New("operation in progress")
	ErrInvalidPhase          = errors.New("operation not valid in current phase")
	ErrModelUnavailable      = errors.New("embedding model unavailable")
)

// EmbeddingFailedError reports the chunk whose embedding call failed.
type EmbeddingFailedError struct {
	ChunkID int
	Cause   error
}

func (e *EmbeddingFailedError) Error() string {
	return fmt.Sprintf("embedding failed for chunk %d: %v", e.ChunkID, e.Cause)
}

func (e *EmbeddingFailedError) Unwrap() error { return e.Cause }

func (e *EmbeddingFailedError) Is(target error) bool { return target == ErrEmbeddingFailed }

// InconsistentDimensionError reports a vector whose length differs from
// the first vector of the run.
type InconsistentDimensionError struct {
	ChunkID int
	Want    int
	Got     int
}

func (e *InconsistentDimensionError) Error() string {
	return fmt.Sprintf("chunk %d: embedding has %d dimensions, expected %d", e.ChunkID, e.Got, e.Want)
}

func (e *InconsistentDimensionError) Is(target error) bool { return target == ErrInconsistentDimension }

// FailedChunkID extracts the chunk id carried by a pipeline error, if any.
func FailedChunkID(err error) (int, bool) {
	var ef *EmbeddingFailedError
	if errors.As(err, &ef) {
		return ef.ChunkID, true
	}
	var ed *InconsistentDimensionError
	if errors.As(err, &ed) {
		return ed.ChunkID, true
	}
	return 0, false
}
