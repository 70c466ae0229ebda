package pipeline

import (
	"docembed/internal/domain"
)

// Assemble converts embedded chunks into an exportable document, keeping
// their order. The dimension is taken from the first result.
func Assemble(results []domain.EmbeddedChunk, sourceName string) (domain.ExportableDocument, error) {
	if len(results) == 0 {
		return domain.ExportableDocument{}, domain.ErrEmptyResultSet
	}
	items := make([]domain.ExportItem, len(results))
	for i, r := range results {
		items[i] = domain.ExportItem{
			ID:        r.ID,
			Text:      r.Text,
			Embedding: append([]float32(nil), r.Embedding...),
		}
	}
	return domain.ExportableDocument{
		Items:      items,
		Dimension:  len(results[0].Embedding),
		SourceName: sourceName,
	}, nil
}
