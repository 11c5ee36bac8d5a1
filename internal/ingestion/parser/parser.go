package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

const (
	DocTypePDF  = "pdf"
	DocTypeText = "txt"
	DocTypeJSON = "json"
	DocTypeDocx = "docx"
)

// Parser extracts bounded text chunks from one document file. Parsers degrade
// instead of failing: unextractable content yields a single fallback chunk so
// the job pipeline never dies on a bad file.
type Parser interface {
	Parse(ctx context.Context, path string) ([]domain.Chunk, error)
}

// Registry maps document types to their parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// NewDefaultRegistry wires every supported document type.
func NewDefaultRegistry(log *logger.Logger) (*Registry, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	pdfParser, err := NewPDFParser(log)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	r.Register(DocTypePDF, pdfParser)
	r.Register(DocTypeText, NewTextParser())
	r.Register(DocTypeJSON, NewJSONParser())
	r.Register(DocTypeDocx, NewDocxParser())
	return r, nil
}

func (r *Registry) Register(docType string, p Parser) {
	docType = strings.ToLower(strings.TrimSpace(docType))
	r.mu.Lock()
	r.parsers[docType] = p
	r.mu.Unlock()
}

func (r *Registry) Get(docType string) (Parser, error) {
	docType = strings.ToLower(strings.TrimSpace(docType))
	r.mu.RLock()
	p, ok := r.parsers[docType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no parser registered for doc type %q", apperrors.ErrInvalidArgument, docType)
	}
	return p, nil
}

// DocTypeForPath maps a file extension to a registered document type.
func DocTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return DocTypePDF
	case ".json":
		return DocTypeJSON
	case ".docx":
		return DocTypeDocx
	default:
		return DocTypeText
	}
}

// splitOversized re-chunks any chunk whose text exceeds the size ceiling,
// carrying the page and source metadata onto every piece. Chunk indexes are
// reassigned sequentially so the result stays contiguous.
func splitOversized(chunks []domain.Chunk, chunkSize int) []domain.Chunk {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Text) <= chunkSize {
			c.ChunkIndex = len(out)
			out = append(out, c)
			continue
		}
		for _, span := range chunkText(c.Text, chunkSize) {
			piece := c
			piece.Text = span
			piece.ChunkIndex = len(out)
			piece.Metadata = cloneMetadata(c.Metadata)
			out = append(out, piece)
		}
	}
	return out
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// ensureChunks upholds the degradation contract: a parse that produced no
// usable text still yields exactly one fallback chunk.
func ensureChunks(chunks []domain.Chunk, path string, reason string) []domain.Chunk {
	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		return kept
	}
	return []domain.Chunk{{
		Text:       fmt.Sprintf("Unable to extract text from %s", filepath.Base(path)),
		ChunkIndex: 0,
		IsFallback: true,
		Metadata: map[string]any{
			"source": filepath.Base(path),
			"reason": reason,
		},
	}}
}
