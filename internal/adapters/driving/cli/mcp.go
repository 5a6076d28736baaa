package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/mcp"
	"github.com/custodia-labs/contextkb/internal/logger"
)

const mcpServeLong = `Start the Model Context Protocol server for AI agents.

The server exposes one tool, query_knowledge_base, which runs semantic
search over the knowledge base.

By default the server listens for streamable HTTP on server.mcp_port
($MCP_PORT, default 3000) at /mcp, with a JSON health check at /health.
Use --stdio for clients that launch the server as a subprocess.

Examples:
  # HTTP mode (MCP Inspector, remote agents)
  contextkb mcp serve --port 3000

  # Stdio mode
  contextkb mcp serve --stdio

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "contextkb": {
        "command": "/path/to/contextkb-mcp",
        "args": ["--stdio"]
      }
    }
  }`

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  mcpServeLong,
	Args:  cobra.NoArgs,
	RunE:  runMCPServe,
}

func init() {
	addMCPFlags(mcpServeCmd)
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// NewMCPCommand returns a standalone root command that runs the MCP
// server, for the contextkb-mcp executable.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "contextkb-mcp",
		Short:        "Knowledge base MCP server",
		Long:         mcpServeLong,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      version,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.SetVerbose(verbose)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return closeServices()
		},
		RunE: runMCPServe,
	}
	addGlobalFlags(cmd)
	addMCPFlags(cmd)
	return cmd
}

func addMCPFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 0, "HTTP port (default: server.mcp_port)")
	cmd.Flags().Bool("stdio", false, "serve over stdio instead of HTTP")
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	stdio, err := cmd.Flags().GetBool("stdio")
	if err != nil {
		return fmt.Errorf("getting stdio flag: %w", err)
	}

	svc, err := loadServices(cmd, false)
	if err != nil {
		return err
	}
	if svc.Query == nil {
		return errors.New("query service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Query:  svc.Query,
		Health: svc.Health,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if port == 0 {
		port = svc.Settings.Server.MCPPort
	}
	if stdio || port == 0 {
		go server.CheckConnection(ctx)
		return server.Run(ctx)
	}

	addr := fmt.Sprintf(":%d", port)
	logger.Info("%s v%s ready", mcp.Name, mcp.Version)
	logger.Info("MCP endpoint: http://localhost%s%s", addr, mcp.EndpointPath)
	logger.Info("Health check: http://localhost%s%s", addr, mcp.HealthPath)
	go server.CheckConnection(ctx)
	return server.RunHTTP(ctx, addr)
}
