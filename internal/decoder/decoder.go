package decoder

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Supported MIME types.
const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEUnknown  = "application/octet-stream"
)

// ErrUnsupportedFormat is returned for content types with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var byExtension = map[string]string{
	".txt":      MIMEText,
	".text":     MIMEText,
	".log":      MIMEText,
	".csv":      MIMEText,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
	".xlsx":     MIMEXLSX,
	".pptx":     MIMEPPTX,
}

// DetectMIME guesses a content type from the file name, falling back to
// sniffing the content.
func DetectMIME(name string, data []byte) string {
	if m, ok := byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return MIMEPDF
	case utf8.Valid(data):
		return MIMEText
	}
	return MIMEUnknown
}

// Decode extracts plain text from data. Extraction from binary formats is
// best effort.
func Decode(data []byte, mimeType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch mt {
	case MIMEText:
		return decodeText(data), nil
	case MIMEMarkdown, "text/x-markdown":
		return decodeMarkdown(data), nil
	case MIMEPDF:
		return decodePDF(data)
	case MIMEDOCX:
		return decodeDOCX(data)
	case MIMEXLSX:
		return decodeXLSX(data)
	case MIMEPPTX:
		return decodePPTX(data)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}

// decodeMarkdown walks the goldmark AST and keeps only the readable text.
func decodeMarkdown(data []byte) string {
	src := []byte(decodeText(data))
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.URL(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

func decodePDF(data []byte) (out string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

func decodeDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()
	return xmlText(strings.NewReader(r.Editable().GetContent()))
}

func decodeXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read xlsx sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

func decodePPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pptx: %w", err)
	}
	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "ppt/slides/slide")
		if name == f.Name || !strings.HasSuffix(name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("read pptx slide %d: %w", s.n, err)
		}
		t, err := xmlText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read pptx slide %d: %w", s.n, err)
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n"), nil
}

// xmlText collects the character data of OOXML text runs (<w:t>, <a:t>)
// and ends a line at every paragraph (<w:p>, <a:p>).
func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inRun = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				buf.Write(el)
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
