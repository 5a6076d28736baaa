// Package vision provides the image extractor. Images are transcribed by
// a multimodal model and the whole transcription becomes a single page.
package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Instruction is the fixed transcription request sent with every image.
const Instruction = "Extract all information from this image. It may contain requirements for a project, " +
	"discussions with clients from platforms like Upwork, Discord, Slack, etc. " +
	"Provide a detailed response with all relevant information."

// DefaultTimeout bounds a transcription call.
const DefaultTimeout = 120 * time.Second

// Page metadata keys.
const (
	MetaSource      = "source"
	MetaTotalPages  = "total_pages"
	MetaVisionModel = "vision_model"
)

var supportedTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp"}

// Extractor transcribes images through a VisionModel.
type Extractor struct {
	model       driven.VisionModel
	timeout     time.Duration
	instruction string
}

var _ driven.Extractor = (*Extractor)(nil)

// New creates a vision extractor. A zero timeout selects DefaultTimeout.
func New(model driven.VisionModel, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{model: model, timeout: timeout, instruction: Instruction}
}

// WithInstruction replaces the transcription request. Blank values keep the default.
func (e *Extractor) WithInstruction(instruction string) *Extractor {
	if strings.TrimSpace(instruction) != "" {
		e.instruction = instruction
	}
	return e
}

// Kind returns the vision variant.
func (e *Extractor) Kind() driven.ExtractorKind {
	return driven.ExtractorVision
}

// SupportedMIMETypes returns the image media types.
func (e *Extractor) SupportedMIMETypes() []string {
	out := make([]string, len(supportedTypes))
	copy(out, supportedTypes)
	return out
}

// Extract sends the image to the model and returns its transcription as
// one page. Remote failures, timeouts and empty responses are reported as
// remote extraction errors, distinct from an unreadable local file.
func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile) ([]domain.Page, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, domain.NewExtractionError("Source file is unreadable", err)
	}
	if len(data) == 0 {
		return nil, domain.NewExtractionError("Source file is empty", nil)
	}

	mimeType := canonicalType(file.MIMEType)
	logger.Debug("vision: transcribing %s (%s, %d bytes) with %s", file.Path, mimeType, len(data), e.model.ModelName())

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.model.Describe(callCtx, e.instruction, data, mimeType)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewRemoteExtractionError(
				fmt.Sprintf("Vision model timed out after %s", e.timeout), err)
		}
		return nil, domain.NewRemoteExtractionError("Vision model request failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewRemoteExtractionError("Vision model returned empty content", nil)
	}

	logger.Debug("vision: extracted %d characters in %s", len(text), time.Since(start))

	return []domain.Page{{
		Number: 1,
		Text:   text,
		Metadata: map[string]any{
			MetaSource:      file.Path,
			MetaTotalPages:  1,
			MetaVisionModel: e.model.ModelName(),
		},
	}}, nil
}

// canonicalType maps the non-standard image/jpg alias and unknown
// declarations to what model APIs accept.
func canonicalType(m string) string {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/jpg", "image/jpeg", "":
		return "image/jpeg"
	default:
		return strings.ToLower(strings.TrimSpace(m))
	}
}
