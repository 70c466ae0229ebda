package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"docembed/internal/domain"
	"docembed/internal/embedding/hashing"
)

func sampleDoc() domain.ExportableDocument {
	return domain.ExportableDocument{
		Items: []domain.ExportItem{
			{ID: 1, Text: "a b", Embedding: []float32{1, 0}},
			{ID: 2, Text: "<c> & d", Embedding: []float32{0, 1}},
		},
		Dimension:  2,
		SourceName: "/tmp/in/report.pdf",
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":            "embeddings_report.pdf.json",
		"/home/u/docs/notes.md": "embeddings_notes.md.json",
		`C:\Users\u\memo.txt`:   "embeddings_memo.txt.json",
		"":                      "embeddings_document.json",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ChromemFileName("report.pdf"); got != "embeddings_report.pdf.chromem.gob.gz" {
		t.Fatalf("ChromemFileName() = %q", got)
	}
}

func TestWriteJSON_StableShape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	want := `{
  "items": [
    {
      "id": 1,
      "text": "a b",
      "embedding": [
        1,
        0
      ]
    },
    {
      "id": 2,
      "text": "<c> & d",
      "embedding": [
        0,
        1
      ]
    }
  ]
}
`
	if got := buf.String(); got != want {
		t.Fatalf("WriteJSON() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	if err := WriteJSON(&bytes.Buffer{}, domain.ExportableDocument{}); !errors.Is(err, domain.ErrEmptyResultSet) {
		t.Fatalf("WriteJSON() error = %v, want ErrEmptyResultSet", err)
	}
}

func TestWriter_SaveAllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := Writer{Dir: dir, Formats: []string{FormatJSON, FormatChromem}, Logger: zerolog.Nop()}
	paths, err := w.Save(context.Background(), sampleDoc(), "run-1")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "embeddings_report.pdf.json"),
		filepath.Join(dir, "embeddings_report.pdf.chromem.gob.gz"),
	}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("Save() paths = %v, want %v", paths, want)
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Fatalf("stat %s: info=%v err=%v", p, info, err)
		}
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(paths[1], ""); err != nil {
		t.Fatalf("ImportFromFile() error = %v", err)
	}
	col := db.GetCollection(CollectionName, nil)
	if col == nil {
		t.Fatalf("collection %q missing after import", CollectionName)
	}
	if col.Count() != 2 {
		t.Fatalf("collection count = %d, want 2", col.Count())
	}
	res, err := col.QueryEmbedding(context.Background(), []float32{0, 1}, 1, nil, nil)
	if err != nil {
		t.Fatalf("QueryEmbedding() error = %v", err)
	}
	if len(res) != 1 || res[0].ID != "2" || res[0].Content != "<c> & d" {
		t.Fatalf("QueryEmbedding() = %+v", res)
	}
}

func TestWriter_UnknownFormat(t *testing.T) {
	w := Writer{Dir: t.TempDir(), Formats: []string{FormatJSON, "parquet"}, Logger: zerolog.Nop()}
	paths, err := w.Save(context.Background(), sampleDoc(), "run-1")
	if err == nil {
		t.Fatal("Save() error = nil, want unknown format error")
	}
	if len(paths) != 1 {
		t.Fatalf("Save() paths = %v, want the json file only", paths)
	}
}

func TestWriteChromem_StopwordChunkQueriesWithoutNaN(t *testing.T) {
	ctx := context.Background()
	emb := hashing.NewEmbedder(64)
	texts := []string{"the and of a", "quarterly revenue grew"}
	doc := domain.ExportableDocument{SourceName: "memo.txt", Dimension: 64}
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatalf("Embed(%q) error = %v", text, err)
		}
		doc.Items = append(doc.Items, domain.ExportItem{ID: i + 1, Text: text, Embedding: vec})
	}

	path := filepath.Join(t.TempDir(), ChromemFileName(doc.SourceName))
	if err := WriteChromem(ctx, path, doc, "run-1"); err != nil {
		t.Fatalf("WriteChromem() error = %v", err)
	}
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		t.Fatalf("ImportFromFile() error = %v", err)
	}
	col := db.GetCollection(CollectionName, nil)
	if col == nil {
		t.Fatalf("collection %q missing after import", CollectionName)
	}
	res, err := col.QueryEmbedding(ctx, doc.Items[0].Embedding, 2, nil, nil)
	if err != nil {
		t.Fatalf("QueryEmbedding() error = %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("QueryEmbedding() returned %d results, want 2", len(res))
	}
	for _, r := range res {
		if math.IsNaN(float64(r.Similarity)) {
			t.Fatalf("result %s has NaN similarity", r.ID)
		}
	}
	if res[0].ID != "1" {
		t.Fatalf("best match = %s, want the stopword chunk itself", res[0].ID)
	}
}
