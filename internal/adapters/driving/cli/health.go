package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/styles"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the vector store and collection",
	Long: `Checks that the vector store is reachable and the collection exists,
and reports how many chunks it holds. Exits non-zero when unhealthy.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output report as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, false)
	if err != nil {
		return err
	}
	if svc.Health == nil {
		return errors.New("health service not configured")
	}

	ctx, cancel := withTimeout(cmd, svc)
	defer cancel()
	report := svc.Health.Check(ctx)

	if healthJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
	} else {
		st := styles.DefaultStyles()
		cmd.Println(st.Check(report.Success, report.Message))
		if report.Collection != "" {
			cmd.Printf("  Collection: %s\n", report.Collection)
		}
		if report.CollectionCount != nil {
			cmd.Printf("  Chunks:     %d\n", *report.CollectionCount)
		}
	}

	if !report.Success {
		return errors.New("vector store is not healthy")
	}
	return nil
}
