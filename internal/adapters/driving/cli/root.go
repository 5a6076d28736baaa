// Package cli provides the contextkb command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Services holds the driving ports commands call.
type Services struct {
	Ingestion driving.IngestionService
	Query     driving.QueryService
	Health    driving.HealthService
	Settings  domain.Settings

	// Close releases clients. Optional.
	Close func() error
}

// ConfigEditor reads and writes the configuration file.
type ConfigEditor interface {
	driven.ConfigStore
	Keys() []string
}

// Bootstrap builds what commands need on first use, so commands that do
// not touch the store never connect to it.
type Bootstrap struct {
	// Config opens the configuration file at path ("" for the default).
	Config func(path string) (ConfigEditor, error)

	// Services builds the driving ports. ingestion is false for commands
	// that only query.
	Services func(ctx context.Context, path string, ingestion bool) (*Services, error)
}

var (
	bootstrap Bootstrap

	// active is injected by SetServices or built by bootstrap.
	active       *Services
	bootstrapped bool
)

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets how commands build their dependencies.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices injects ready-made services, bypassing bootstrap.
func SetServices(s *Services) {
	active = s
	bootstrapped = false
}

var rootCmd = &cobra.Command{
	Use:   "contextkb",
	Short: "Contextual knowledge base ingestion and retrieval",
	Long: `contextkb turns stored documents into a searchable knowledge base.

PDFs and images are extracted page by page, chunked, embedded and stored in
a vector collection. Agents query the collection over MCP; operators use
this command to ingest, query and inspect it.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeServices()
	},
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ./contextkb.toml or $CONTEXTKB_CONFIG)")
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadServices returns the services, building them on first use.
func loadServices(cmd *cobra.Command, ingestion bool) (*Services, error) {
	if active == nil {
		if bootstrap.Services == nil {
			return nil, errors.New("services not configured")
		}
		s, err := bootstrap.Services(commandContext(cmd), configPath, ingestion)
		if err != nil {
			return nil, err
		}
		active = s
		bootstrapped = true
	}
	if ingestion && active.Ingestion == nil {
		return nil, errors.New("ingestion service not configured")
	}
	return active, nil
}

// closeServices releases services built by bootstrap.
func closeServices() error {
	if !bootstrapped || active == nil {
		return nil
	}
	s := active
	active = nil
	bootstrapped = false
	if s.Close != nil {
		return s.Close()
	}
	return nil
}

func openConfig() (ConfigEditor, error) {
	if bootstrap.Config == nil {
		return nil, errors.New("configuration not available")
	}
	return bootstrap.Config(configPath)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
