package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"docembed/internal/domain"
)

// Supported formats.
const (
	FormatJSON    = "json"
	FormatChromem = "chromem"
)

// Writer saves a completed document in every configured format.
type Writer struct {
	Dir     string
	Formats []string
	Logger  zerolog.Logger
}

// Save writes doc to w.Dir and returns the paths written, in format order.
func (w Writer) Save(ctx context.Context, doc domain.ExportableDocument, runID string) ([]string, error) {
	if len(doc.Items) == 0 {
		return nil, domain.ErrEmptyResultSet
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	formats := w.Formats
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}

	var paths []string
	for _, format := range formats {
		var path string
		var err error
		switch format {
		case FormatJSON:
			path = filepath.Join(dir, FileName(doc.SourceName))
			err = writeJSONFile(path, doc)
		case FormatChromem:
			path = filepath.Join(dir, ChromemFileName(doc.SourceName))
			err = WriteChromem(ctx, path, doc, runID)
		default:
			err = fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			return paths, err
		}
		w.Logger.Info().Str("format", format).Str("path", path).Int("items", len(doc.Items)).Msg("Export written")
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJSONFile(path string, doc domain.ExportableDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
