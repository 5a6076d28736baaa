package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Metadata is the primitive-only metadata stored with a chunk.
// Values are string, int64, float64 or bool. Only the sanitizer
// produces Metadata from arbitrary values.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value for key rendered as a string.
// Missing keys and empty strings both return "".
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether the value of key equals want when rendered as a string.
func (m Metadata) Matches(key, want string) bool {
	if _, ok := m[key]; !ok {
		return false
	}
	return m.String(key) == want
}

// DecodeMetadata parses stored JSON metadata. Integral numbers come back
// as int64 and other numbers as float64, so values round-trip through
// backends that persist metadata as JSON.
func DecodeMetadata(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	m := make(Metadata, len(raw))
	for k, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			m[k] = v
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		} else {
			m[k] = n.String()
		}
	}
	return m, nil
}

// Page is one ordered unit of extracted text. A PDF yields one Page per
// page; an image yields a single Page holding the transcription.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the extracted text content.
	Text string

	// Metadata is raw, unsanitised metadata from the extractor.
	Metadata map[string]any
}

// Chunk represents a searchable unit within a document.
// Chunks are immutable once the pipeline has sanitised them.
type Chunk struct {
	// ID is the deterministic identifier for the chunk.
	ID string

	// DocumentID links to the source document.
	DocumentID string

	// Text is the window of page text.
	Text string

	// Page is the 1-based page the chunk was cut from.
	Page int

	// Index is the ordinal position within its page.
	Index int

	// Position is the ordinal position within the document.
	Position int

	// Metadata is the sanitised metadata, set by the sanitizer stage.
	Metadata Metadata

	// Raw holds unsanitised metadata between extraction and sanitising.
	Raw map[string]any
}

// VectorRecord is one persisted (text, vector, metadata) tuple.
type VectorRecord struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// VectorMatch is one nearest-neighbour hit. Distance is nil when the
// backend did not report one.
type VectorMatch struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance *float64
}

// MetadataFilter is an equality filter on one metadata field.
type MetadataFilter struct {
	Field string
	Value string
}
