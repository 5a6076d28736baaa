package driven

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// FileWatcher reports files in a directory and changes to them.
type FileWatcher interface {
	// Root returns the watched directory.
	Root() string

	// Scan lists every ingestible file currently in the directory as a
	// ChangeCreated change.
	Scan(ctx context.Context) ([]domain.FileChange, error)

	// Watch listens for changes until ctx is cancelled, then closes the
	// channel.
	Watch(ctx context.Context) (<-chan domain.FileChange, error)

	// Close releases resources.
	Close() error
}
