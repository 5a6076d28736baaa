// Package filesystem watches a local directory for documents to ingest.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/extractors"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// DefaultSettle is how long a file must be quiet before its change is
// reported. Copies produce a burst of write events.
const DefaultSettle = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher is closed")

// Watcher reports ingestible files under a root directory.
// Hidden files and directories are skipped.
type Watcher struct {
	root      string
	supported map[string]bool
	settle    time.Duration

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a watcher for root that reports files whose inferred media
// type is in mimeTypes.
func New(root string, mimeTypes []string) *Watcher {
	supported := make(map[string]bool, len(mimeTypes))
	for _, m := range mimeTypes {
		supported[extractors.NormaliseMIME(m)] = true
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Watcher{
		root:      root,
		supported: supported,
		settle:    DefaultSettle,
	}
}

// WithSettle sets the quiet period before a change is reported.
// Zero reports every event immediately.
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	if d >= 0 {
		w.settle = d
	}
	return w
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) validate() error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.root)
	}
	return nil
}

// Scan lists every ingestible file under the root.
func (w *Watcher) Scan(ctx context.Context) ([]domain.FileChange, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	var changes []domain.FileChange
	err := w.walk(ctx, w.root, nil, func(c domain.FileChange) {
		changes = append(changes, c)
	})
	return changes, err
}

// walk visits the tree under dir, adding directories to fw when it is
// non-nil and calling found for each ingestible file.
func (w *Watcher) walk(ctx context.Context, dir string, fw *fsnotify.Watcher, found func(domain.FileChange)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("filesystem: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if w.hidden(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if fw != nil {
				if err := fw.Add(path); err != nil {
					return fmt.Errorf("watch %s: %w", path, err)
				}
			}
			return nil
		}
		if mimeType := w.mimeType(path); mimeType != "" && d.Type().IsRegular() {
			found(domain.FileChange{Type: domain.ChangeCreated, Path: path, MIMEType: mimeType})
		}
		return nil
	})
}

// Watch reports changes until ctx is cancelled or the watcher is closed.
// The returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.FileChange, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.walk(ctx, w.root, fw, func(domain.FileChange) {}); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.watcher = fw

	out := make(chan domain.FileChange)
	go w.loop(ctx, fw, out)
	return out, nil
}

// loop debounces events per path and forwards settled changes.
func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- domain.FileChange) {
	defer close(out)
	defer fw.Close()

	pending := make(map[string]domain.FileChange)
	due := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	queue := func(c domain.FileChange) {
		prev, ok := pending[c.Path]
		pending[c.Path] = merge(prev, c, ok)
		due[c.Path] = time.Now().Add(w.settle)
		timer.Reset(w.settle)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && w.isNewDir(ev.Name) {
				if err := w.walk(ctx, ev.Name, fw, queue); err != nil {
					logger.Warn("filesystem: %v", err)
				}
				continue
			}
			if c := w.handleFsEvent(ev); c != nil {
				queue(*c)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem: watch error: %v", err)

		case <-timer.C:
			now := time.Now()
			var next time.Duration
			for path, at := range due {
				if wait := at.Sub(now); wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				c := pending[path]
				delete(pending, path)
				delete(due, path)
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
			if next > 0 {
				timer.Reset(next)
			}
		}
	}
}

// merge combines a pending change with a newer one for the same path.
// A file created then written is still new; anything else takes the
// newer type.
func merge(prev, next domain.FileChange, hasPrev bool) domain.FileChange {
	if hasPrev && prev.Type == domain.ChangeCreated && next.Type == domain.ChangeUpdated {
		next.Type = domain.ChangeCreated
	}
	return next
}

// handleFsEvent converts an fsnotify event into a change, or nil when the
// event is not of interest.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) *domain.FileChange {
	if w.hidden(ev.Name) {
		return nil
	}
	mimeType := w.mimeType(ev.Name)
	if mimeType == "" {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &domain.FileChange{Type: domain.ChangeDeleted, Path: ev.Name, MIMEType: mimeType}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		t := domain.ChangeUpdated
		if ev.Has(fsnotify.Create) {
			t = domain.ChangeCreated
		}
		return &domain.FileChange{Type: t, Path: ev.Name, MIMEType: mimeType}
	default:
		return nil
	}
}

func (w *Watcher) isNewDir(path string) bool {
	if w.hidden(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// mimeType returns the inferred media type of path if it is supported.
func (w *Watcher) mimeType(path string) string {
	m := extractors.MIMEFromPath(path)
	if m == "" || !w.supported[m] {
		return ""
	}
	return m
}

// hidden reports whether path, relative to the root, has a dot-prefixed
// element.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return isHidden(path)
	}
	return isHidden(rel)
}

// isHidden checks if a path contains a hidden element. "." and ".." are
// not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

// Close stops any running watch. It is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
