package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata_String(t *testing.T) {
	m := Metadata{
		"s":   "text",
		"i":   int64(42),
		"f":   1.5,
		"b":   true,
		"nil": nil,
	}

	assert.Equal(t, "text", m.String("s"))
	assert.Equal(t, "42", m.String("i"))
	assert.Equal(t, "1.5", m.String("f"))
	assert.Equal(t, "true", m.String("b"))
	assert.Empty(t, m.String("nil"))
	assert.Empty(t, m.String("missing"))
}

func TestMetadata_CloneIsIndependent(t *testing.T) {
	m := Metadata{"a": "1"}
	c := m.Clone()
	c["a"] = "2"
	c["b"] = "3"

	assert.Equal(t, "1", m["a"])
	assert.NotContains(t, m, "b")
}

func TestMetadata_KeysSorted(t *testing.T) {
	m := Metadata{"b": 1, "a": 2, "c": 3}

	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}

func TestDecodeMetadata(t *testing.T) {
	m, err := DecodeMetadata([]byte(`{"page":3,"score":0.5,"name":"a.pdf","ok":true}`))
	if err != nil {
		t.Fatalf("DecodeMetadata() error = %v", err)
	}
	if m["page"] != int64(3) {
		t.Errorf("page = %#v, want int64(3)", m["page"])
	}
	if m["score"] != 0.5 {
		t.Errorf("score = %#v, want 0.5", m["score"])
	}
	if m["name"] != "a.pdf" || m["ok"] != true {
		t.Errorf("unexpected metadata %#v", m)
	}

	empty, err := DecodeMetadata(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("DecodeMetadata(nil) = %v, %v", empty, err)
	}

	if _, err := DecodeMetadata([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object metadata")
	}
}

func TestMetadata_Matches(t *testing.T) {
	m := Metadata{"project_id": "p1", "page": int64(2)}
	if !m.Matches("project_id", "p1") {
		t.Error("expected project_id to match")
	}
	if !m.Matches("page", "2") {
		t.Error("expected numeric value to match its string form")
	}
	if m.Matches("project_id", "p2") || m.Matches("missing", "") {
		t.Error("unexpected match")
	}
}
