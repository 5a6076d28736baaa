package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// DocumentIDForPath derives a stable document ID from a file path, so a
// rewritten file replaces its own chunks and a deleted one can be removed.
func DocumentIDForPath(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// WatchOptions are the tags and behaviour applied to watched files.
type WatchOptions struct {
	UserID    string
	ProjectID string

	// Initial ingests files already in the directory before watching.
	// Files ingested since their last modification are skipped.
	Initial bool
}

// WatchStats counts what a watch run did.
type WatchStats struct {
	Ingested int
	Skipped  int
	Removed  int
	Failed   int
}

// WatchService keeps the knowledge base in step with a directory. Each
// file's document ID is derived from its path.
type WatchService struct {
	ingest driving.IngestionService
}

// NewWatchService creates a watch service.
func NewWatchService(ingest driving.IngestionService) *WatchService {
	return &WatchService{ingest: ingest}
}

// Run applies an optional initial scan and then every change until ctx is
// cancelled. Per-file failures are logged and counted, not returned.
func (s *WatchService) Run(ctx context.Context, w driven.FileWatcher, opts WatchOptions) (WatchStats, error) {
	var stats WatchStats

	if opts.Initial {
		changes, err := w.Scan(ctx)
		if err != nil {
			return stats, fmt.Errorf("scan %s: %w", w.Root(), err)
		}
		logger.Info("Found %d files in %s", len(changes), w.Root())
		for _, c := range changes {
			if ctx.Err() != nil {
				return stats, nil
			}
			if s.fresh(ctx, c.Path) {
				stats.Skipped++
				continue
			}
			s.record(&stats, c, s.Apply(ctx, c, opts))
		}
	}

	changes, err := w.Watch(ctx)
	if err != nil {
		return stats, fmt.Errorf("watch %s: %w", w.Root(), err)
	}
	logger.Info("Watching %s", w.Root())

	for c := range changes {
		s.record(&stats, c, s.Apply(ctx, c, opts))
	}
	return stats, nil
}

// Apply ingests a created or updated file, or removes a deleted one.
func (s *WatchService) Apply(ctx context.Context, c domain.FileChange, opts WatchOptions) error {
	docID := DocumentIDForPath(c.Path)

	if c.Type == domain.ChangeDeleted {
		_, err := s.ingest.Remove(ctx, docID)
		return err
	}

	_, err := s.ingest.Ingest(ctx, domain.IngestRequest{
		StoragePath: c.Path,
		MIMEType:    c.MIMEType,
		Tags: domain.DocumentTags{
			DocumentID: docID,
			UserID:     opts.UserID,
			ProjectID:  opts.ProjectID,
			Filename:   filepath.Base(c.Path),
		},
	})
	return err
}

func (s *WatchService) record(stats *WatchStats, c domain.FileChange, err error) {
	switch {
	case err != nil:
		stats.Failed++
		if !errors.Is(err, context.Canceled) {
			logger.Warn("%s %s: %s", c.Type, c.Path, domain.PublicMessage(err))
		}
	case c.Type == domain.ChangeDeleted:
		stats.Removed++
	default:
		stats.Ingested++
	}
}

// fresh reports whether path was ingested after it was last modified.
func (s *WatchService) fresh(ctx context.Context, path string) bool {
	status, err := s.ingest.Status(ctx, DocumentIDForPath(path))
	if err != nil || status == nil || status.Status != domain.StatusIngested {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().After(status.UpdatedAt)
}
