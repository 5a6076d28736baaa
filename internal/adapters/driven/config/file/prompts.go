package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/extractors/vision"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// builtinPrompts are written out as <name>.txt the first time a prompt is
// loaded, giving operators a file to edit.
var builtinPrompts = map[string]string{
	driven.PromptVisionTranscribe: vision.Instruction,
}

// PromptStore reads prompts from <dir>/<name>.txt.
type PromptStore struct {
	dir string
}

// NewPromptStore creates a prompt store rooted at dir, defaulting to
// ~/.contextkb/prompts. Nothing is read or written until Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".contextkb", "prompts")
	}
	return &PromptStore{dir: dir}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Path returns the file a prompt is read from.
func (s *PromptStore) Path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// Load returns the trimmed contents of the prompt file. A missing file is
// created from the built-in prompt; a blank one falls back to it.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompts[name]

	data, err := os.ReadFile(s.Path(name))
	switch {
	case err == nil:
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
		if known {
			logger.Warn("Prompt file %s is empty, using built-in prompt", s.Path(name))
			return builtin, nil
		}
		return "", fmt.Errorf("prompt %q is empty: %w", name, domain.ErrNotFound)

	case errors.Is(err, fs.ErrNotExist):
		if !known {
			return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
		}
		if werr := s.writeBuiltin(name, builtin); werr != nil {
			logger.Debug("Could not write default prompt %s: %v", s.Path(name), werr)
		}
		return builtin, nil

	default:
		if known {
			logger.Warn("Reading %s failed, using built-in prompt: %v", s.Path(name), err)
			return builtin, nil
		}
		return "", fmt.Errorf("read prompt %q: %w", name, err)
	}
}

func (s *PromptStore) writeBuiltin(name, text string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(s.Path(name), []byte(text+"\n"), 0600)
}
