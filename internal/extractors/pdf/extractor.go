// Package pdf provides the document extractor for PDF files.
// pdfcpu validates the file structure and reports the page count;
// page text is read with ledongthuc/pdf.
package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// MIMEType is the media type handled by this extractor.
const MIMEType = "application/pdf"

// Page metadata keys.
const (
	MetaSource     = "source"
	MetaTotalPages = "total_pages"
)

// Extractor parses PDF files into one page of text per PDF page.
type Extractor struct{}

var _ driven.Extractor = (*Extractor)(nil)

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the document variant.
func (e *Extractor) Kind() driven.ExtractorKind {
	return driven.ExtractorDocument
}

// SupportedMIMETypes returns the PDF media type.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Extract reads every page of the file. Unreadable or malformed files
// fail with an extraction error.
func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile) ([]domain.Page, error) {
	if _, err := os.Stat(file.Path); err != nil {
		return nil, domain.NewExtractionError("Source file is unreadable", err)
	}

	pdfCtx, err := api.ReadContextFile(file.Path)
	if err != nil {
		return nil, domain.NewExtractionError("Source file is not a valid PDF", err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, domain.NewExtractionError("Encrypted PDFs are not supported", nil)
	}

	f, r, err := lpdf.Open(file.Path)
	if err != nil {
		return nil, domain.NewExtractionError("Source file is not a valid PDF", err)
	}
	defer f.Close()

	total := r.NumPage()
	if total != pdfCtx.PageCount {
		logger.Warn("pdf %s: page count mismatch (%d vs %d)", file.Path, total, pdfCtx.PageCount)
	}
	logger.Debug("pdf %s: %d pages", file.Path, total)

	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(r, i)
		if err != nil {
			return nil, domain.NewExtractionError(fmt.Sprintf("Failed to read page %d", i), err)
		}

		pages = append(pages, domain.Page{
			Number: i,
			Text:   text,
			Metadata: map[string]any{
				MetaSource:     file.Path,
				MetaTotalPages: total,
			},
		})
	}

	return pages, nil
}

func pageText(r *lpdf.Reader, n int) (string, error) {
	p := r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(text, " \t\r\n"), nil
}
