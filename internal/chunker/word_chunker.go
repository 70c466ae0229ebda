package chunker

import (
	"fmt"
	"strings"

	"docembed/internal/domain"
)

// DefaultMaxWordsPerChunk is used when the configuration leaves the window size unset.
const DefaultMaxWordsPerChunk = 500

// WordChunker splits text into consecutive windows of whole words.
type WordChunker struct {
	maxWords int
}

// NewWordChunker returns a chunker producing windows of at most maxWords words.
func NewWordChunker(maxWords int) (*WordChunker, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: max words per chunk must be positive, got %d", domain.ErrInvalidConfiguration, maxWords)
	}
	return &WordChunker{maxWords: maxWords}, nil
}

// MaxWords returns the configured window size.
func (c *WordChunker) MaxWords() int { return c.maxWords }

// Chunk splits text into windows of at most MaxWords words. Windows that
// hold no words are skipped; ids count only the windows kept.
func (c *WordChunker) Chunk(text string) ([]domain.Chunk, error) {
	return Split(text, c.maxWords)
}

// Split tokenizes text on whitespace and groups the words into
// non-overlapping windows of at most maxWords words. Windows that are
// empty after trimming are dropped and ids count only surviving windows.
func Split(text string, maxWords int) ([]domain.Chunk, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("%w: max words per chunk must be positive, got %d", domain.ErrInvalidConfiguration, maxWords)
	}
	words := strings.Fields(text)
	chunks := make([]domain.Chunk, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		joined := strings.TrimSpace(strings.Join(words[start:end], " "))
		if joined == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{ID: len(chunks) + 1, Text: joined})
	}
	return chunks, nil
}
