// Package postprocessors provides chunk processing implementations.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/postprocessors/sanitizer"
)

// Pipeline chains multiple PostProcessors and runs them in order.
// The sanitizer always runs last; it cannot be removed or reordered.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
	sanitizer  driven.PostProcessor
}

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided, followed by the sanitizer.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	p := &Pipeline{sanitizer: sanitizer.New()}
	for _, proc := range processors {
		p.Add(proc)
	}
	return p
}

// Process runs the document through all processors in order.
// The first processor receives nil chunks and should create them.
// Subsequent processors receive and may modify the chunks.
func (p *Pipeline) Process(ctx context.Context, doc *domain.ExtractedDocument) ([]domain.Chunk, error) {
	return p.ProcessWithHook(ctx, doc, nil)
}

// ProcessWithHook runs the pipeline, calling hook after each processor.
func (p *Pipeline) ProcessWithHook(
	ctx context.Context,
	doc *domain.ExtractedDocument,
	hook driven.ProcessorHook,
) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var chunks []domain.Chunk

	for _, processor := range p.stages() {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
		if hook != nil {
			hook(processor.Name(), chunks)
		}
	}

	return chunks, nil
}

func (p *Pipeline) stages() []driven.PostProcessor {
	stages := make([]driven.PostProcessor, 0, len(p.processors)+1)
	stages = append(stages, p.processors...)
	return append(stages, p.sanitizer)
}

// Add appends a processor to the pipeline, ahead of the sanitizer.
// Additional sanitizers are ignored.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	if processor == nil || processor.Name() == sanitizer.Name {
		return
	}
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline, including the sanitizer.
func (p *Pipeline) Len() int {
	return len(p.processors) + 1
}

// Names returns processor names in execution order.
func (p *Pipeline) Names() []string {
	stages := p.stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return names
}
