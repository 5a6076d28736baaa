package driven

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// ExtractorKind tags the extractor variants.
type ExtractorKind string

// Extractor variants.
const (
	// ExtractorDocument parses paginated text locally.
	ExtractorDocument ExtractorKind = "document"

	// ExtractorVision transcribes an image through a remote model.
	ExtractorVision ExtractorKind = "vision"
)

// Extractor produces ordered pages of text from a stored file.
type Extractor interface {
	// Kind returns the extractor variant.
	Kind() ExtractorKind

	// SupportedMIMETypes returns the media types this extractor accepts.
	SupportedMIMETypes() []string

	// Extract reads the file and returns its pages.
	// Failures are returned as extraction errors.
	Extract(ctx context.Context, file domain.SourceFile) ([]domain.Page, error)
}

// ExtractorRegistry selects an extractor by declared media type.
type ExtractorRegistry interface {
	// Register adds an extractor for all its supported media types.
	Register(e Extractor)

	// Get returns the extractor for a media type, or false if none accepts it.
	Get(mimeType string) (Extractor, bool)

	// SupportedMIMETypes returns every registered media type.
	SupportedMIMETypes() []string
}
