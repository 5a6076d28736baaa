package domain

import "time"

// Tag keys attached to every chunk of a document.
const (
	TagDocumentID = "document_id"
	TagUserID     = "user_id"
	TagProjectID  = "project_id"
	TagFilename   = "filename"
)

// DocumentTags is the caller-supplied tag set attached to every chunk
// derived from one source file. Tags win over page metadata on collision.
type DocumentTags struct {
	DocumentID string `json:"document_id" validate:"required,notblank"`
	UserID     string `json:"user_id" validate:"required,notblank"`
	ProjectID  string `json:"project_id" validate:"required,notblank"`
	Filename   string `json:"filename" validate:"required,notblank"`
}

// Map returns the tags as a metadata bag.
func (t DocumentTags) Map() map[string]any {
	return map[string]any{
		TagDocumentID: t.DocumentID,
		TagUserID:     t.UserID,
		TagProjectID:  t.ProjectID,
		TagFilename:   t.Filename,
	}
}

// SourceFile references a stored file awaiting extraction.
type SourceFile struct {
	// Path is the storage path of the file.
	Path string

	// MIMEType is the declared media type.
	MIMEType string
}

// IngestRequest is the inbound call from the document collaborator.
type IngestRequest struct {
	StoragePath string       `json:"storage_path" validate:"required,notblank"`
	MIMEType    string       `json:"mime_type" validate:"required,notblank"`
	Tags        DocumentTags `json:"tags"`
}

// Source returns the file reference for extraction.
func (r IngestRequest) Source() SourceFile {
	return SourceFile{Path: r.StoragePath, MIMEType: r.MIMEType}
}

// IngestResult summarises a completed ingestion.
type IngestResult struct {
	DocumentID string          `json:"document_id"`
	PageCount  int             `json:"page_count"`
	ChunkCount int             `json:"chunk_count"`
	Status     IngestionStatus `json:"status"`
	Duration   time.Duration   `json:"duration"`
}

// IngestionStatus is the externally visible state of a document.
type IngestionStatus string

// Ingestion statuses.
const (
	// StatusPending means the document has not completed ingestion.
	StatusPending IngestionStatus = "pending"

	// StatusIngested means every chunk was embedded and stored.
	StatusIngested IngestionStatus = "ingested"
)

// IsValid returns true if the status is recognised.
func (s IngestionStatus) IsValid() bool {
	return s == StatusPending || s == StatusIngested
}

// String returns the string representation.
func (s IngestionStatus) String() string {
	return string(s)
}

// DocumentStatus records the ingestion state of one document.
type DocumentStatus struct {
	DocumentID string          `json:"document_id"`
	Status     IngestionStatus `json:"status"`
	ChunkCount int             `json:"chunk_count"`
	LastError  string          `json:"last_error,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Stage is a state of the ingestion state machine.
type Stage string

// Ingestion stages, in order. Failed may follow any non-terminal stage.
const (
	StageReceived          Stage = "received"
	StageExtracted         Stage = "extracted"
	StageChunked           Stage = "chunked"
	StageSanitized         Stage = "sanitized"
	StageEmbeddedAndStored Stage = "embedded-and-stored"
	StageIngested          Stage = "ingested"
	StageFailed            Stage = "failed"
)

// IsTerminal returns true for ingested and failed.
func (s Stage) IsTerminal() bool {
	return s == StageIngested || s == StageFailed
}

// Next returns the stage that follows s on success.
// Terminal stages return themselves.
func (s Stage) Next() Stage {
	switch s {
	case StageReceived:
		return StageExtracted
	case StageExtracted:
		return StageChunked
	case StageChunked:
		return StageSanitized
	case StageSanitized:
		return StageEmbeddedAndStored
	case StageEmbeddedAndStored:
		return StageIngested
	default:
		return s
	}
}

// StageEvent reports a state machine transition.
type StageEvent struct {
	DocumentID string
	Stage      Stage
	Detail     string
	Err        error
}

// ExtractedDocument is the sole input to the chunking stage: the pages
// produced by an extractor plus the tag set of the document.
type ExtractedDocument struct {
	ID    string
	Pages []Page
	Tags  DocumentTags
}
