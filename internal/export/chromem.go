package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docembed/internal/domain"
)

// CollectionName is the chromem-go collection holding exported chunks.
const CollectionName = "docembed"

// ChromemFileName returns the chromem export file name for a source document.
func ChromemFileName(source string) string {
	return "embeddings_" + baseName(source) + ".chromem.gob.gz"
}

// WriteChromem stores doc's items in an in-memory chromem-go collection and
// exports it, gzip-compressed, to path. The file can be loaded with
// chromem.DB.ImportFromFile.
func WriteChromem(ctx context.Context, path string, doc domain.ExportableDocument, runID string) error {
	if len(doc.Items) == 0 {
		return domain.ErrEmptyResultSet
	}
	db := chromem.NewDB()
	meta := map[string]string{
		"source":    doc.SourceName,
		"run_id":    runID,
		"dimension": strconv.Itoa(doc.Dimension),
	}
	col, err := db.CreateCollection(CollectionName, meta, unusedEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(doc.Items))
	for i, item := range doc.Items {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(item.ID),
			Content:   item.Text,
			Embedding: item.Embedding,
			Metadata:  map[string]string{"source": doc.SourceName, "chunk_id": strconv.Itoa(item.ID)},
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	if err := db.ExportToFile(path, true, "", CollectionName); err != nil {
		return fmt.Errorf("export chromem db: %w", err)
	}
	return nil
}

// Every exported document carries its own embedding, so chromem never has
// to compute one.
func unusedEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem export: embeddings must be precomputed")
}
