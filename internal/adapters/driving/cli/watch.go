package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/connectors/filesystem"
	"github.com/custodia-labs/contextkb/internal/core/services"
)

var (
	watchUserID    string
	watchProjectID string
	watchNoInitial bool
	watchSettle    = filesystem.DefaultSettle
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep the knowledge base in step with a directory",
	Long: `Ingests PDFs and images already in a directory, then watches it and
ingests files as they are written and removes them when they are deleted.

Each file's document ID is derived from its absolute path, so rewriting a
file replaces its chunks. Hidden files and directories are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchUserID, "user-id", "", "owning user ID (default: $USER)")
	watchCmd.Flags().StringVar(&watchProjectID, "project-id", "default", "project ID used for query filtering")
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false, "skip files already in the directory")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", filesystem.DefaultSettle, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, true)
	if err != nil {
		return err
	}

	w := filesystem.New(args[0], svc.Ingestion.SupportedMIMETypes()).WithSettle(watchSettle)
	defer w.Close()

	userID := watchUserID
	if userID == "" {
		userID = defaultUserID()
	}

	stats, err := services.NewWatchService(svc.Ingestion).Run(commandContext(cmd), w, services.WatchOptions{
		UserID:    userID,
		ProjectID: watchProjectID,
		Initial:   !watchNoInitial,
	})
	cmd.Printf("Ingested %d, skipped %d, removed %d, failed %d\n",
		stats.Ingested, stats.Skipped, stats.Removed, stats.Failed)
	return err
}
