package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLocalStore_Save(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStore(base)

	ref, err := s.Save(context.Background(), "job-1", "Product Hunt", "submitted", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "jobs", "job-1", "product-hunt-bce87942-submitted.png"), ref)

	got, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}

func TestLocalStore_SameSlugDoesNotOverwrite(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	first := []byte("\x89PNG\r\n\x1a\nfirst")
	second := []byte("\x89PNG\r\n\x1a\nsecond")

	a, err := s.Save(context.Background(), "job-1", "Product Hunt", "filled", first)
	require.NoError(t, err)
	b, err := s.Save(context.Background(), "job-1", "Product-Hunt", "filled", second)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	assert.Equal(t, "product-hunt-d6aead98-filled.png", filepath.Base(b))

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestLocalStore_RejectsNonPNG(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Save(context.Background(), "job-1", "X", "filled", []byte("<html></html>"))
	assert.Error(t, err)
	_, err = s.Save(context.Background(), "job-1", "X", "filled", nil)
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "betalist", Slug("BetaList"))
	assert.Equal(t, "saas-hub-2-0", Slug("  SaaS Hub 2.0! "))
	assert.Equal(t, "unnamed", Slug("???"))
}
