package postprocessors

import (
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/postprocessors/chunker"
	"github.com/custodia-labs/contextkb/internal/postprocessors/sanitizer"
)

// RegisterDefaults registers the chunker and sanitizer.
func RegisterDefaults(r *Registry) {
	r.Register(chunker.Name, buildChunker)
	r.Register(sanitizer.Name, func(map[string]any) (driven.PostProcessor, error) {
		return sanitizer.New(), nil
	})
}

// ChunkerStage is the chunker stage for the configured sizes.
func ChunkerStage(c domain.ChunkerSettings) Stage {
	return Stage{
		Name: chunker.Name,
		Config: map[string]any{
			"chunk_size": c.Size,
			"overlap":    c.Overlap,
		},
	}
}

// buildChunker reads chunk_size, overlap and break_points. Missing keys
// keep the chunker defaults.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := intValue(cfg["chunk_size"]); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := intValue(cfg["overlap"]); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if breaks, ok := cfg["break_points"].(bool); ok {
		opts = append(opts, chunker.WithBreakPoints(breaks))
	}
	return chunker.New(opts...)
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
