package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/styles"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <document-id>",
	Short: "Show the ingestion status of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var removeCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove a document from the knowledge base",
	Long: `Deletes every stored chunk of a document and forgets its ingestion status.
Removing a document that was never ingested is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(removeCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, true)
	if err != nil {
		return err
	}

	status, err := svc.Ingestion.Status(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("status of %s: %w", args[0], err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Document: %s\n", status.DocumentID)
	cmd.Printf("  Status: %s\n", styles.DefaultStyles().Status(status.Status))
	cmd.Printf("  Chunks: %d\n", status.ChunkCount)
	if status.LastError != "" {
		cmd.Printf("  Last error: %s\n", status.LastError)
	}
	if !status.UpdatedAt.IsZero() {
		cmd.Printf("  Updated: %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, true)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd, svc)
	defer cancel()

	n, err := svc.Ingestion.Remove(ctx, args[0])
	if err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	cmd.Printf("Removed %d chunks of %s\n", n, args[0])
	return nil
}
