package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestChunkTextKeepsSentencesWhole(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("This sentence is about sixty characters long, give or take. ", 40))

	spans := chunkText(text, 1000)
	require.Greater(t, len(spans), 1)
	for _, span := range spans {
		require.LessOrEqual(t, len(span), 1000)
		require.True(t, strings.HasSuffix(span, "."), "span should end at a sentence boundary: %q", span[len(span)-20:])
	}
	require.Equal(t, strings.Count(text, "."), strings.Count(strings.Join(spans, " "), "."), "no sentence lost")
}

func TestChunkTextHardWrapsOversizedSentence(t *testing.T) {
	long := strings.Repeat("a", 2500) + "."

	spans := chunkText(long, 1000)
	require.Len(t, spans, 3)
	for _, span := range spans {
		require.LessOrEqual(t, len(span), 1000)
	}
}

func TestChunkTextHardWrapsOnRuneBoundaries(t *testing.T) {
	// Every byte of this sentence is part of a multibyte rune; a byte-offset
	// wrap would tear one apart at the chunk boundary.
	long := strings.Repeat("é", 1500) + "."

	spans := chunkText(long, 1000)
	require.Greater(t, len(spans), 1)
	for i, span := range spans {
		require.True(t, utf8.ValidString(span), "span %d is not valid UTF-8", i)
		require.LessOrEqual(t, utf8.RuneCountInString(span), 1000)
	}
	require.Equal(t, long, strings.Join(spans, ""))
}

func TestChunkTextKeepsUnterminatedTail(t *testing.T) {
	spans := chunkText("First sentence. trailing fragment without punctuation", 1000)
	require.Len(t, spans, 1)
	require.Contains(t, spans[0], "trailing fragment")
}

func TestTextParserProducesIndexedChunks(t *testing.T) {
	path := writeTempFile(t, "notes.txt", strings.Repeat("A short sentence. ", 200))

	chunks, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		require.Equal(t, i, c.ChunkIndex)
		require.False(t, c.IsFallback)
		require.Equal(t, "notes.txt", c.Metadata["source"])
		require.Equal(t, "txt", c.Metadata["format"])
	}
}

func TestTextParserEmptyFileYieldsSingleFallbackChunk(t *testing.T) {
	path := writeTempFile(t, "empty.txt", "   \n\t  ")

	chunks, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.True(t, chunks[0].IsFallback)
	require.NotEmpty(t, chunks[0].Text)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
