package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"docembed/internal/domain"
)

// FileName returns the export file name for a source document,
// embeddings_<base name>.json.
func FileName(source string) string {
	return "embeddings_" + baseName(source) + ".json"
}

// WriteJSON writes doc as {"items":[{"id","text","embedding"}]} with
// two-space indentation and a trailing newline.
func WriteJSON(w io.Writer, doc domain.ExportableDocument) error {
	if len(doc.Items) == 0 {
		return domain.ErrEmptyResultSet
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func baseName(source string) string {
	// accept both separators so names coming from other platforms stay flat
	name := filepath.Base(strings.ReplaceAll(source, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
