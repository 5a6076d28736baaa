package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Public messages for ingestion failures.
const (
	msgFileNotFound = "File not found on server"
	msgNoText       = "No text could be extracted from the document"
	msgExtraction   = "Failed to extract text from the document"
)

// IngestionService runs the ingestion state machine for one document:
// received, extracted, chunked, sanitized, embedded-and-stored, ingested.
// Any failure moves to failed and leaves the document pending, so
// re-running ingestion for the document is always safe.
type IngestionService struct {
	extractors driven.ExtractorRegistry
	pipeline   driven.PostProcessorPipeline
	gateway    *VectorGateway
	status     driven.IngestionStatusStore
	validate   *validator.Validate
	observer   driving.StageObserver
	now        func() time.Time
}

// NewIngestionService creates an ingestion service.
// The status store is optional; without it statuses are not recorded.
func NewIngestionService(
	extractors driven.ExtractorRegistry,
	pipeline driven.PostProcessorPipeline,
	gateway *VectorGateway,
	status driven.IngestionStatusStore,
) *IngestionService {
	return &IngestionService{
		extractors: extractors,
		pipeline:   pipeline,
		gateway:    gateway,
		status:     status,
		validate:   newValidator(),
		now:        time.Now,
	}
}

// SetObserver registers a callback for stage transitions.
func (s *IngestionService) SetObserver(observer driving.StageObserver) {
	s.observer = observer
}

// SupportedMIMETypes returns the media types that can be ingested.
func (s *IngestionService) SupportedMIMETypes() []string {
	return s.extractors.SupportedMIMETypes()
}

// Ingest runs the pipeline for one document.
func (s *IngestionService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	started := s.now()
	docID := req.Tags.DocumentID

	if err := s.validateRequest(req); err != nil {
		s.emit(docID, domain.StageFailed, "", err)
		return nil, err
	}

	logger.Section("Ingest " + docID)
	s.emit(docID, domain.StageReceived, req.StoragePath, nil)

	extractor, ok := s.extractors.Get(req.MIMEType)
	if !ok {
		err := domain.NewValidationError("Unsupported file type %q for ingestion. Supported types: %s",
			req.MIMEType, strings.Join(s.SupportedMIMETypes(), ", "))
		s.emit(docID, domain.StageFailed, "", err)
		return nil, err
	}

	result, err := s.run(ctx, req, extractor)
	if err != nil {
		return nil, s.fail(ctx, req, err)
	}

	result.Duration = s.now().Sub(started)
	logger.Info("Ingested %s: %d pages, %d chunks in %s", docID, result.PageCount, result.ChunkCount, result.Duration)
	return result, nil
}

// run executes the stages after media type dispatch. Each stage consumes
// only the output of the previous one.
func (s *IngestionService) run(
	ctx context.Context, req domain.IngestRequest, extractor driven.Extractor,
) (*domain.IngestResult, error) {
	docID := req.Tags.DocumentID

	if _, err := os.Stat(req.StoragePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewExtractionError(msgFileNotFound, fmt.Errorf("%w: %s", domain.ErrNotFound, req.StoragePath))
		}
		return nil, domain.NewExtractionError(msgExtraction, err)
	}

	pages, err := extractor.Extract(ctx, req.Source())
	if err != nil {
		var classified *domain.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, domain.NewExtractionError(msgExtraction, err)
	}
	s.emit(docID, domain.StageExtracted, fmt.Sprintf("%d pages (%s)", len(pages), extractor.Kind()), nil)

	doc := &domain.ExtractedDocument{ID: docID, Pages: pages, Tags: req.Tags}

	chunked := false
	chunks, err := s.pipeline.ProcessWithHook(ctx, doc, func(_ string, out []domain.Chunk) {
		if !chunked {
			chunked = true
			s.emit(docID, domain.StageChunked, fmt.Sprintf("%d chunks", len(out)), nil)
		}
	})
	if err != nil {
		return nil, domain.Classify("chunk "+docID, err)
	}
	if len(chunks) == 0 {
		return nil, domain.NewExtractionError(msgNoText, nil)
	}
	s.emit(docID, domain.StageSanitized, "", nil)

	stored, err := s.gateway.AddChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.emit(docID, domain.StageEmbeddedAndStored, fmt.Sprintf("%d records", stored), nil)

	if s.status != nil {
		err := s.status.SetStatus(ctx, domain.DocumentStatus{
			DocumentID: docID,
			Status:     domain.StatusIngested,
			ChunkCount: stored,
			UpdatedAt:  s.now(),
		})
		if err != nil {
			return nil, domain.Classify("record status "+docID, err)
		}
	}
	s.emit(docID, domain.StageIngested, "", nil)

	return &domain.IngestResult{
		DocumentID: docID,
		PageCount:  len(pages),
		ChunkCount: stored,
		Status:     domain.StatusIngested,
	}, nil
}

// fail records the document as pending with the public error message and
// logs the failure. Internal errors are logged with their full chain.
func (s *IngestionService) fail(ctx context.Context, req domain.IngestRequest, err error) error {
	docID := req.Tags.DocumentID
	classified := domain.Classify("ingest "+docID, err)
	s.emit(docID, domain.StageFailed, "", classified)

	if classified.Kind == domain.KindInternal {
		logger.ErrorFields(classified, "ingestion failed", logger.Fields{
			"document_id": docID,
			"path":        req.StoragePath,
			"mime_type":   req.MIMEType,
		})
	} else {
		logger.Warn("Ingestion of %s failed (%s): %v", docID, classified.Kind, classified)
	}

	if s.status != nil {
		// The caller's context may be what failed; the pending record must still land.
		statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := s.status.SetStatus(statusCtx, domain.DocumentStatus{
			DocumentID: docID,
			Status:     domain.StatusPending,
			LastError:  domain.PublicMessage(classified),
			UpdatedAt:  s.now(),
		})
		if err != nil {
			logger.Warn("Failed to record pending status for %s: %v", docID, err)
		}
	}
	return classified
}

// Status returns the recorded status of a document.
func (s *IngestionService) Status(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.NewValidationError("Document ID cannot be empty")
	}
	if s.status == nil {
		return nil, fmt.Errorf("%w: ingestion status is not recorded", domain.ErrNotFound)
	}
	return s.status.GetStatus(ctx, documentID)
}

// Remove deletes every chunk of a document and forgets its status.
func (s *IngestionService) Remove(ctx context.Context, documentID string) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, domain.NewValidationError("Document ID cannot be empty")
	}

	n, err := s.gateway.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}

	if s.status != nil {
		if err := s.status.DeleteStatus(ctx, documentID); err != nil {
			return n, domain.Classify("delete status "+documentID, err)
		}
	}
	logger.Info("Removed %d chunks of %s", n, documentID)
	return n, nil
}

func (s *IngestionService) emit(docID string, stage domain.Stage, detail string, err error) {
	if err != nil {
		logger.Debug("[%s] %s: %v", docID, stage, err)
	} else {
		logger.Debug("[%s] %s %s", docID, stage, detail)
	}
	if s.observer != nil {
		s.observer(domain.StageEvent{DocumentID: docID, Stage: stage, Detail: detail, Err: err})
	}
}

func (s *IngestionService) validateRequest(req domain.IngestRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("Invalid ingest request")
	}

	names := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		names[i] = fe.Field()
	}
	return domain.NewValidationError("Missing required fields: %s", strings.Join(names, ", "))
}

// newValidator reports fields by their JSON names so messages match the
// wire shape callers send. Whitespace-only values count as missing.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
