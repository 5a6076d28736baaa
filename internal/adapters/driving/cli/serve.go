package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/ingestapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion HTTP API",
	Long: `Starts the HTTP API the document management service calls after a file
is stored:

  POST   /v1/ingest                 ingest a stored file
  GET    /v1/ingest/{document_id}   ingestion status
  DELETE /v1/ingest/{document_id}   remove a document's chunks
  GET    /health                    vector store health`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.ingest_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, true)
	if err != nil {
		return err
	}

	server, err := ingestapi.NewServer(svc.Ingestion, svc.Health)
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = svc.Settings.Server.IngestAddr
	}
	return server.Run(commandContext(cmd), addr)
}
