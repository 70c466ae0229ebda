package domain

// Chunk is one bounded window of document text. ID is 1-based and
// encodes the chunk's position in document order.
type Chunk struct {
	ID   int
	Text string
}

// EmbeddedChunk pairs a chunk with the vector the model produced for it.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// ExportItem is the serialized form of an embedded chunk.
type ExportItem struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ExportableDocument is the aggregate handed to export sinks.
type ExportableDocument struct {
	Items      []ExportItem `json:"items"`
	Dimension  int          `json:"-"`
	SourceName string       `json:"-"`
}

// Chunker splits raw document text into ordered chunks.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
}
