package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
)

const defaultChunkSize = 1000

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+\s*)`)

// TextParser chunks plain text at sentence boundaries into spans of roughly
// chunkSize characters. A single sentence longer than the ceiling is
// hard-wrapped; sentences are never split otherwise.
type TextParser struct {
	chunkSize int
}

func NewTextParser() *TextParser {
	return &TextParser{chunkSize: defaultChunkSize}
}

func (p *TextParser) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	source := filepath.Base(path)
	spans := chunkText(string(raw), p.chunkSize)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, domain.Chunk{
			Text:       span,
			ChunkIndex: i,
			Metadata: map[string]any{
				"source":       source,
				"chunk":        i + 1,
				"total_chunks": len(spans),
				"format":       "txt",
			},
		})
	}
	return ensureChunks(chunks, path, "empty text file"), nil
}

// chunkText accumulates whole sentences up to the size ceiling.
func chunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	sentences := sentenceSplitter.FindAllString(trimmed, -1)
	if len(sentences) == 0 {
		sentences = []string{trimmed}
	} else if consumed := len(strings.Join(sentences, "")); consumed < len(trimmed) {
		// Trailing text without terminal punctuation is still a sentence.
		tail := strings.TrimSpace(trimmed[consumed:])
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if len(sentence) > chunkSize {
			flush()
			// Wrap on rune boundaries so a multibyte character is never
			// torn across two chunks.
			runes := []rune(sentence)
			for start := 0; start < len(runes); start += chunkSize {
				end := start + chunkSize
				if end > len(runes) {
					end = len(runes)
				}
				out = append(out, string(runes[start:end]))
			}
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return out
}
