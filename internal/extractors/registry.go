package extractors

import (
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// extensionTypes maps file extensions to the media types we ingest.
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Registry selects an extractor by declared media type.
// It implements the ExtractorRegistry interface.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string]driven.Extractor
}

var _ driven.ExtractorRegistry = (*Registry)(nil)

// NewRegistry creates a registry holding the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byMIME: make(map[string]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for all its supported media types.
// A later registration for the same media type replaces the earlier one.
func (r *Registry) Register(e driven.Extractor) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range e.SupportedMIMETypes() {
		r.byMIME[NormaliseMIME(m)] = e
	}
}

// Get returns the extractor for a media type.
func (r *Registry) Get(mimeType string) (driven.Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byMIME[NormaliseMIME(mimeType)]
	return e, ok
}

// SupportedMIMETypes returns every registered media type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byMIME))
	for m := range r.byMIME {
		types = append(types, m)
	}
	sort.Strings(types)
	return types
}

// NormaliseMIME lowercases a media type and strips parameters.
func NormaliseMIME(m string) string {
	m = strings.TrimSpace(m)
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		return mt
	}
	return strings.ToLower(m)
}

// MIMEFromPath infers a media type from a file extension.
// Returns "" when the extension is unknown.
func MIMEFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if m, ok := extensionTypes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return NormaliseMIME(m)
	}
	return ""
}
