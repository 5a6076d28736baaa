package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.ExtractedDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func testDoc() *domain.ExtractedDocument {
	return &domain.ExtractedDocument{
		ID:    "doc-1",
		Pages: []domain.Page{{Number: 1, Text: "hello world"}},
		Tags:  domain.DocumentTags{DocumentID: "doc-1", UserID: "u", ProjectID: "p", Filename: "f.pdf"},
	}
}

func TestNewPipeline_AlwaysEndsWithSanitizer(t *testing.T) {
	p := NewPipeline()
	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}

	p.Add(&mockProcessor{name: "test"})
	names := p.Names()
	if len(names) != 2 || names[0] != "test" || names[1] != "sanitizer" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestPipeline_Add_IgnoresExtraSanitizer(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "sanitizer"}, nil)
	if p.Len() != 1 {
		t.Errorf("expected only the built-in sanitizer, got %v", p.Names())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil document")
	}
}

func TestPipeline_Process_SanitizesChunks(t *testing.T) {
	created := []domain.Chunk{
		{ID: "chunk-1", Text: "test", Raw: map[string]any{"nested": []int{1}, "null": nil}},
	}
	p := NewPipeline(&mockProcessor{name: "creator", chunks: created})

	chunks, err := p.Process(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	md := chunks[0].Metadata
	if md["nested"] != "[1]" {
		t.Errorf("expected nested value stringified, got %v", md["nested"])
	}
	if _, ok := md["null"]; ok {
		t.Error("expected null value dropped")
	}
	if md["project_id"] != "p" {
		t.Errorf("expected tags merged, got %v", md)
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "failing", err: errors.New("boom")})

	_, err := p.Process(context.Background(), testDoc())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "processor failing: boom" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPipeline_ProcessWithHook_ReportsEachStage(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "creator", chunks: []domain.Chunk{{ID: "c", Text: "t"}}})

	var seen []string
	_, err := p.ProcessWithHook(context.Background(), testDoc(), func(name string, chunks []domain.Chunk) {
		seen = append(seen, name)
		if len(chunks) != 1 {
			t.Errorf("%s: expected 1 chunk, got %d", name, len(chunks))
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != "creator" || seen[1] != "sanitizer" {
		t.Errorf("unexpected hook calls: %v", seen)
	}
}
