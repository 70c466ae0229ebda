package domain

// Phase is the lifecycle position of a pipeline run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChunked
	PhaseEmbedding
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChunked:
		return "chunked"
	case PhaseEmbedding:
		return "embedding"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PipelineState is a point-in-time view of a pipeline run.
// Progress is in [0,100].
type PipelineState struct {
	RunID      string
	SourceName string
	Phase      Phase
	Chunks     []Chunk
	Results    []EmbeddedChunk
	Progress   float64
	LastError  error
}
