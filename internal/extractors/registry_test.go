package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

type fakeExtractor struct {
	kind  driven.ExtractorKind
	types []string
}

func (f *fakeExtractor) Kind() driven.ExtractorKind   { return f.kind }
func (f *fakeExtractor) SupportedMIMETypes() []string { return f.types }
func (f *fakeExtractor) Extract(context.Context, domain.SourceFile) ([]domain.Page, error) {
	return nil, nil
}

func TestRegistry_DispatchesByMIMEType(t *testing.T) {
	doc := &fakeExtractor{kind: driven.ExtractorDocument, types: []string{"application/pdf"}}
	img := &fakeExtractor{kind: driven.ExtractorVision, types: []string{"image/png", "image/jpeg", "image/jpg"}}
	r := NewRegistry(doc, img, nil)

	e, ok := r.Get("application/pdf")
	require.True(t, ok)
	assert.Equal(t, driven.ExtractorDocument, e.Kind())

	e, ok = r.Get("IMAGE/JPG")
	require.True(t, ok)
	assert.Equal(t, driven.ExtractorVision, e.Kind())

	e, ok = r.Get("application/pdf; charset=binary")
	require.True(t, ok)
	assert.Equal(t, driven.ExtractorDocument, e.Kind())

	_, ok = r.Get("text/plain")
	assert.False(t, ok)
}

func TestRegistry_SupportedMIMETypesSorted(t *testing.T) {
	r := NewRegistry(
		&fakeExtractor{types: []string{"image/png"}},
		&fakeExtractor{types: []string{"application/pdf"}},
	)

	assert.Equal(t, []string{"application/pdf", "image/png"}, r.SupportedMIMETypes())
}

func TestNormaliseMIME(t *testing.T) {
	assert.Equal(t, "image/png", NormaliseMIME(" Image/PNG "))
	assert.Equal(t, "text/html", NormaliseMIME("text/html; charset=utf-8"))
	assert.Equal(t, "", NormaliseMIME(""))
}

func TestMIMEFromPath(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEFromPath("/uploads/Brief.PDF"))
	assert.Equal(t, "image/jpeg", MIMEFromPath("shot.jpg"))
	assert.Equal(t, "image/jpeg", MIMEFromPath("shot.jpeg"))
	assert.Equal(t, "image/png", MIMEFromPath("a.png"))
	assert.Equal(t, "", MIMEFromPath("noext"))
}
