package app

import (
	"context"
	"os"
	"strings"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/config/file"
)

// ResolveConfigPath picks the configuration file: the explicit path,
// then CONTEXTKB_CONFIG, then contextkb.toml in the working directory.
func ResolveConfigPath(explicit string, getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(getenv(EnvConfig)); p != "" {
		return p
	}
	return file.FileName
}

// OpenConfig opens the configuration file resolved from explicit.
// A missing file is created empty on first write.
func OpenConfig(explicit string) (*file.ConfigStore, error) {
	return file.NewConfigStoreAt(ResolveConfigPath(explicit, os.Getenv))
}

// Load reads configuration and the environment, then builds the App.
func Load(ctx context.Context, configPath string, opts Options) (*App, error) {
	store, err := OpenConfig(configPath)
	if err != nil {
		return nil, err
	}

	settings, err := LoadSettings(store, os.Getenv)
	if err != nil {
		return nil, err
	}

	if opts.PromptsDir == "" {
		opts.PromptsDir = store.GetString(KeyPromptsDir)
	}
	return New(ctx, settings, opts)
}
