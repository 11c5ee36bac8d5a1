package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// PDFParser extracts page chunks from a PDF. The external processor is the
// primary path; any contract violation there degrades transparently to the
// in-process extractor. Callers see one return contract either way.
type PDFParser struct {
	log     *logger.Logger
	primary Parser
}

func NewPDFParser(log *logger.Logger) (*PDFParser, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	runner, err := NewSubprocessRunner(log)
	if err != nil {
		return nil, err
	}
	return &PDFParser{
		log:     log.With("service", "PDFParser"),
		primary: runner,
	}, nil
}

func (p *PDFParser) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	chunks, err := p.primary.Parse(ctx, path)
	if err == nil && len(chunks) > 0 {
		// Both extraction paths share one size ceiling; a page that blows
		// past it is re-chunked before it reaches the embedder.
		return ensureChunks(splitOversized(chunks, defaultChunkSize), path, "no extractable text"), nil
	}
	if err != nil {
		p.log.Warn("External processor degraded to in-process extraction",
			"file", filepath.Base(path),
			"error", err.Error(),
		)
	}

	chunks, err = p.extractInProcess(ctx, path)
	if err != nil {
		p.log.Warn("In-process PDF extraction failed",
			"file", filepath.Base(path),
			"error", err.Error(),
		)
		return ensureChunks(nil, path, err.Error()), nil
	}
	return ensureChunks(splitOversized(chunks, defaultChunkSize), path, "no extractable text"), nil
}

func (p *PDFParser) extractInProcess(ctx context.Context, path string) ([]domain.Chunk, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	chunks := make([]domain.Chunk, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One bad page does not spoil the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:       text,
			PageNumber: pageNum,
			ChunkIndex: len(chunks),
			Metadata: map[string]any{
				"source":      filepath.Base(path),
				"page":        pageNum,
				"total_pages": total,
				"format":      "pdf",
			},
		})
	}
	return chunks, nil
}
