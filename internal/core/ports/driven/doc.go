// Package driven declares what the core needs from infrastructure.
//
// Ingestion and query cannot run without an EmbeddingService, a
// VectorBackend, at least one Extractor and a PostProcessorPipeline.
// The rest may be nil:
//
//   - VisionModel: without it image files are rejected as unsupported.
//   - IngestionStatusStore: without it document status is not tracked.
//   - FileWatcher: only the watch command uses one.
//
// Ports here may reference domain types but no adapter package.
package driven
