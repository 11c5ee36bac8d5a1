package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
)

// DocxParser reads word/document.xml out of the docx zip container and
// chunks paragraph-first: whole paragraphs accumulate up to the size
// ceiling, oversized paragraphs fall through to sentence chunking.
type DocxParser struct {
	chunkSize int
}

func NewDocxParser() *DocxParser {
	return &DocxParser{chunkSize: defaultChunkSize}
}

func (p *DocxParser) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docx file: %w", err)
	}

	paragraphs, err := extractDocxParagraphs(raw)
	if err != nil {
		return ensureChunks(nil, path, err.Error()), nil
	}

	source := filepath.Base(path)
	spans := chunkParagraphs(paragraphs, p.chunkSize)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, domain.Chunk{
			Text:       span,
			ChunkIndex: i,
			Metadata: map[string]any{
				"source":       source,
				"chunk":        i + 1,
				"total_chunks": len(spans),
				"format":       "docx",
			},
		})
	}
	return ensureChunks(chunks, path, "no text in document"), nil
}

// extractDocxParagraphs gathers the <w:t> runs of each <w:p> paragraph.
func extractDocxParagraphs(raw []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("not a valid docx container: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("docx missing word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()
	xmlBytes, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read document.xml: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	var paragraphs []string
	var current strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				var v string
				_ = dec.DecodeElement(&v, &t)
				current.WriteString(v)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return paragraphs, nil
}

func chunkParagraphs(paragraphs []string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for _, para := range paragraphs {
		if len(para) > chunkSize {
			flush()
			out = append(out, chunkText(para, chunkSize)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(para) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(para)
	}
	flush()
	return out
}
