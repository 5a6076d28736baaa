// Package chunker provides a break-aware, overlapping text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Name is the registered processor name.
const Name = "chunker"

// Metadata keys written on every chunk.
const (
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
	MetaPosition   = "position"
)

// separators are tried in order when pulling a window end back to a
// natural break. Paragraphs first, then lines, sentences, words.
var separators = []string{"\n\n", "\n", ". ", " "}

// idNamespace scopes deterministic chunk IDs.
var idNamespace = uuid.MustParse("6f3c1f2e-8d4b-4a57-9a0e-2b7c5d1e9f40")

// Processor splits page text into overlapping windows.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize   int
	overlap     int
	breakPoints bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithBreakPoints enables or disables snapping window ends to paragraph,
// line, sentence or word boundaries. When disabled every non-final
// window is exactly chunkSize characters. Enabled by default.
func WithBreakPoints(enabled bool) Option {
	return func(p *Processor) {
		p.breakPoints = enabled
	}
}

// New creates a new chunker processor with the given options.
// chunkSize must be greater than overlap; violating that is a
// configuration error.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize:   DefaultChunkSize,
		overlap:     DefaultChunkOverlap,
		breakPoints: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, p.chunkSize)
	}
	if p.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidInput, p.overlap)
	}
	if p.chunkSize <= p.overlap {
		return nil, fmt.Errorf("%w: chunk size (%d) must be greater than overlap (%d)",
			domain.ErrInvalidInput, p.chunkSize, p.overlap)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// ChunkSize returns the configured window size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Split cuts text into windows of at most chunkSize characters.
// Consecutive windows share exactly overlap characters and together cover
// the whole input. Whitespace-only windows are not returned.
// Empty input yields nil.
func (p *Processor) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var windows []string
	start := 0
	for {
		end := start + p.chunkSize
		if end >= n {
			windows = appendWindow(windows, runes[start:n])
			return windows
		}

		if p.breakPoints {
			end = p.breakBefore(runes, start, end)
		}

		windows = appendWindow(windows, runes[start:end])
		start = end - p.overlap
	}
}

// breakBefore returns the latest separator boundary in the window that
// keeps the window at least half full and strictly past the overlap, so
// the next window always advances. Falls back to the hard cut.
func (p *Processor) breakBefore(runes []rune, start, end int) int {
	minEnd := start + p.overlap + 1
	if half := start + p.chunkSize/2; half > minEnd {
		minEnd = half
	}

	for _, sep := range separators {
		sr := []rune(sep)
		for i := end - len(sr); i+len(sr) >= minEnd && i >= start; i-- {
			if hasPrefix(runes[i:], sr) {
				return i + len(sr)
			}
		}
	}
	return end
}

func hasPrefix(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i := range prefix {
		if runes[i] != prefix[i] {
			return false
		}
	}
	return true
}

func appendWindow(windows []string, w []rune) []string {
	if strings.IndexFunc(string(w), func(r rune) bool { return !unicode.IsSpace(r) }) < 0 {
		return windows
	}
	return append(windows, string(w))
}

// Process splits every page of the document into chunks.
// Input chunks are ignored; this processor creates new chunks from page text.
// Each chunk carries the page's raw metadata plus its page number,
// per-page index and per-document position.
func (p *Processor) Process(ctx context.Context, doc *domain.ExtractedDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	position := 0

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for idx, text := range p.Split(page.Text) {
			raw := make(map[string]any, len(page.Metadata)+3)
			for k, v := range page.Metadata {
				raw[k] = v
			}
			raw[MetaPage] = page.Number
			raw[MetaChunkIndex] = idx
			raw[MetaPosition] = position

			chunks = append(chunks, domain.Chunk{
				ID:         ChunkID(doc.ID, page.Number, idx),
				DocumentID: doc.ID,
				Text:       text,
				Page:       page.Number,
				Index:      idx,
				Position:   position,
				Raw:        raw,
			})
			position++
		}
	}

	return chunks, nil
}

// ChunkID returns the deterministic ID of a chunk. Re-ingesting the same
// document yields the same IDs, so stores upsert rather than append.
func ChunkID(documentID string, page, index int) string {
	name := fmt.Sprintf("%s/%d/%d", documentID, page, index)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
