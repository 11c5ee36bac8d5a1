package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/aquib-J/mysecondbrain-backend/internal/pkg/errors"
)

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	p := NewTextParser()
	r.Register("TXT", p)

	got, err := r.Get("txt")
	require.NoError(t, err)
	require.Same(t, p, got)

	_, err = r.Get("csv")
	require.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestDefaultRegistryCoversAllDocTypes(t *testing.T) {
	r, err := NewDefaultRegistry(newParserTestLogger(t))
	require.NoError(t, err)

	for _, docType := range []string{DocTypePDF, DocTypeText, DocTypeJSON, DocTypeDocx} {
		p, err := r.Get(docType)
		require.NoError(t, err, docType)
		require.NotNil(t, p, docType)
	}
}

func TestDocTypeForPath(t *testing.T) {
	cases := map[string]string{
		"report.PDF":       DocTypePDF,
		"data.json":        DocTypeJSON,
		"letter.docx":      DocTypeDocx,
		"notes.txt":        DocTypeText,
		"README.md":        DocTypeText,
		"no-extension":     DocTypeText,
		"/tmp/a/b/doc.pdf": DocTypePDF,
	}
	for path, want := range cases {
		require.Equal(t, want, DocTypeForPath(path), path)
	}
}
