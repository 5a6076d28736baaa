// Command contextkb-mcp runs the knowledge base MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/cli"
	"github.com/custodia-labs/contextkb/internal/app"
	"github.com/custodia-labs/contextkb/internal/logger"
)

var version = "dev"

func main() {
	if err := app.LoadDotEnv(app.DotEnvFiles...); err != nil {
		logger.Warn("Failed to load .env: %v", err)
	}

	cli.SetVersion(version)
	cli.SetBootstrap(app.CLIBootstrap())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewMCPCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
