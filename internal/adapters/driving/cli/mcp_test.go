package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)

	stdio := mcpServeCmd.Flags().Lookup("stdio")
	require.NotNil(t, stdio)
	assert.Equal(t, "false", stdio.DefValue)
}

func TestNewMCPCommand(t *testing.T) {
	cmd := NewMCPCommand()

	assert.Equal(t, "contextkb-mcp", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("port"))
	assert.NotNil(t, cmd.Flags().Lookup("stdio"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestMCPServeCmd_RequiresQueryService(t *testing.T) {
	SetServices(&Services{})
	defer SetServices(nil)

	_, err := execute(t, "mcp", "serve", "--stdio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query service not configured")
}

func TestServeCmd_AddrFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCmd_RequiresIngestion(t *testing.T) {
	SetServices(&Services{Query: &mockQueryService{}})
	defer SetServices(nil)

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion service not configured")
}
