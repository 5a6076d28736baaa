package app

import (
	"context"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/cli"
)

// CLIBootstrap builds CLI dependencies from the configuration file.
func CLIBootstrap() cli.Bootstrap {
	return cli.Bootstrap{
		Config: func(path string) (cli.ConfigEditor, error) {
			return OpenConfig(path)
		},
		Services: func(ctx context.Context, path string, ingestion bool) (*cli.Services, error) {
			a, err := Load(ctx, path, Options{Ingestion: ingestion})
			if err != nil {
				return nil, err
			}
			return a.CLIServices(), nil
		},
	}
}

// CLIServices exposes the App's services to the CLI.
func (a *App) CLIServices() *cli.Services {
	s := &cli.Services{
		Query:    a.Query,
		Health:   a.Health,
		Settings: a.Settings,
		Close:    a.Close,
	}
	// A nil *IngestionService must not become a non-nil interface.
	if a.Ingestion != nil {
		s.Ingestion = a.Ingestion
	}
	return s
}
