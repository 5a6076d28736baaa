// Package messages defines Bubbletea message types for terminal views.
// Messages represent events that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// StageChanged is sent when an ingestion moves to a new stage.
type StageChanged struct {
	Event domain.StageEvent
}

// IngestCompleted carries the ingestion outcome back to the model.
type IngestCompleted struct {
	Result *domain.IngestResult
	Err    error
}
