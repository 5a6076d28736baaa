package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or media type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVisionUnavailable indicates the vision model is not configured.
	// Image ingestion is disabled without it.
	ErrVisionUnavailable = errors.New("vision model unavailable")

	// ErrRateLimited indicates a provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ErrorKind classifies failures crossing the ingestion and query boundaries.
type ErrorKind string

// Error kinds.
const (
	// KindValidation is malformed caller input. Never retried.
	KindValidation ErrorKind = "validation"

	// KindExtraction is an unreadable source file or a failed transcription.
	KindExtraction ErrorKind = "extraction"

	// KindEmbedding is a failed embedding call or malformed provider output.
	KindEmbedding ErrorKind = "embedding"

	// KindStore is a vector store connectivity or collection failure.
	KindStore ErrorKind = "store"

	// KindInternal is anything unexpected.
	KindInternal ErrorKind = "internal"
)

// StoreCondition narrows a store error so operators can act on it.
type StoreCondition string

// Store conditions.
const (
	// StoreUnreachable is transient: the store is down or timed out.
	StoreUnreachable StoreCondition = "unreachable"

	// StoreCollectionMissing is structural: nothing has been ingested yet.
	StoreCollectionMissing StoreCondition = "collection_missing"

	// StoreDimensionMismatch means a vector does not fit the collection.
	StoreDimensionMismatch StoreCondition = "dimension_mismatch"

	// StoreContractMismatch means the collection was created with a
	// different embedding model or dimensionality.
	StoreContractMismatch StoreCondition = "contract_mismatch"

	// StoreRejected means the store refused a record or batch.
	StoreRejected StoreCondition = "rejected"
)

// InternalMessage is the only message an internal error exposes outward.
const InternalMessage = "Internal error"

// Error is a classified failure. Message is safe to show to callers;
// Err holds the underlying cause and is only logged.
type Error struct {
	Kind      ErrorKind
	Op        string
	Message   string
	Condition StoreCondition

	// Remote marks extraction failures caused by a remote model call
	// rather than by parsing the local file.
	Remote bool

	Err error
}

// Kind-level sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrExtraction = &Error{Kind: KindExtraction}
	ErrEmbedding  = &Error{Kind: KindEmbedding}
	ErrStore      = &Error{Kind: KindStore}
	ErrInternal   = &Error{Kind: KindInternal}

	ErrStoreUnreachable  = &Error{Kind: KindStore, Condition: StoreUnreachable}
	ErrCollectionMissing = &Error{Kind: KindStore, Condition: StoreCollectionMissing}
	ErrDimensionMismatch = &Error{Kind: KindStore, Condition: StoreDimensionMismatch}
	ErrContractMismatch  = &Error{Kind: KindStore, Condition: StoreContractMismatch}
	ErrRemoteExtraction  = &Error{Kind: KindExtraction, Remote: true}
)

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on condition or remote flag when the target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Condition != "" && t.Condition != e.Condition {
		return false
	}
	if t.Remote && !e.Remote {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// NewValidationError creates a validation error whose message is shown verbatim.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewExtractionError creates an extraction error for a local parse failure.
func NewExtractionError(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

// NewRemoteExtractionError creates an extraction error for a failed,
// timed out or empty remote transcription.
func NewRemoteExtractionError(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Remote: true, Err: err}
}

// NewEmbeddingError creates an embedding error.
func NewEmbeddingError(msg string, err error) *Error {
	return &Error{Kind: KindEmbedding, Message: msg, Err: err}
}

// NewStoreError creates a store error with the given condition.
func NewStoreError(cond StoreCondition, msg string, err error) *Error {
	return &Error{Kind: KindStore, Condition: cond, Message: msg, Err: err}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: InternalMessage, Err: err}
}

// KindOf returns the taxonomy kind of err. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ConditionOf returns the store condition carried by err, if any.
func ConditionOf(err error) StoreCondition {
	var e *Error
	if errors.As(err, &e) {
		return e.Condition
	}
	return ""
}

// PublicMessage returns the message that may cross an outward boundary.
// Causes and internal details are never included.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return InternalMessage
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind) + " error"
}

// Classify returns err as a taxonomy error, wrapping unclassified
// errors as internal under op.
func Classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalError(op, err)
}

// ErrorPayload is the stable error shape returned to callers.
type ErrorPayload struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// ToPayload renders err as an outward error payload.
func ToPayload(err error) ErrorPayload {
	return ErrorPayload{Error: true, Message: PublicMessage(err)}
}
