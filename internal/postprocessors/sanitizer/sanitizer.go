// Package sanitizer coerces metadata into the primitive-only form that
// vector stores accept and merges it with document tags.
package sanitizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// Name is the registered processor name.
const Name = "sanitizer"

// Sanitize keeps strings, booleans and numbers, drops nil values and
// stringifies everything else. Integers become int64 and floats become
// float64. Sanitize(Sanitize(x)) equals Sanitize(x).
func Sanitize(raw map[string]any) domain.Metadata {
	out := make(domain.Metadata, len(raw))
	for k, v := range raw {
		if s, ok := Value(v); ok {
			out[k] = s
		}
	}
	return out
}

// Merge overlays tags on page metadata. Tags win on key collision.
func Merge(page, tags map[string]any) map[string]any {
	out := make(map[string]any, len(page)+len(tags))
	for k, v := range page {
		out[k] = v
	}
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// Value converts one metadata value. It reports false when the value
// should be dropped.
func Value(v any) (any, bool) {
	if isNil(v) {
		return nil, false
	}

	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return t, true
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return unsigned(uint64(t)), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return unsigned(t), true
	case float32:
		return float(float64(t)), true
	case float64:
		return float(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return float(f), true
		}
		return t.String(), true
	case time.Time:
		return t.Format(time.RFC3339Nano), true
	case error:
		return t.Error(), true
	case fmt.Stringer:
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return Value(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		return stringify(v), true
	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%T", v), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return float(rv.Float()), true
	default:
		return stringify(v), true
	}
}

// isNil reports untyped nil and typed nil references. It runs before the
// error and Stringer cases because pointer-receiver methods on a nil
// pointer would dereference it.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// unsigned keeps values that fit in int64 numeric.
func unsigned(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

// float keeps finite values numeric. NaN and infinities cannot be stored
// or filtered on, so they are kept as text.
func float(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// stringify renders composite values as compact JSON, falling back to
// fmt when the value cannot be marshalled.
func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Processor sanitises chunk metadata. It is always the final stage of a
// pipeline, so no chunk reaches a store unsanitised.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a sanitizer processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process merges each chunk's raw metadata with the document tags and
// replaces it with the sanitised result.
func (p *Processor) Process(_ context.Context, doc *domain.ExtractedDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	tags := doc.Tags.Map()
	out := make([]domain.Chunk, len(chunks))

	for i, c := range chunks {
		base := c.Raw
		if base == nil && c.Metadata != nil {
			base = c.Metadata
		}
		c.Metadata = Sanitize(Merge(base, tags))
		c.Raw = nil
		out[i] = c
	}

	return out, nil
}
