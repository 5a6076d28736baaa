package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// snippetLength bounds the text shown per result in table output.
const snippetLength = 300

var (
	queryProject string
	queryLimit   int
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the knowledge base",
	Long: `Runs a semantic query against the knowledge base and prints the most
relevant chunks with their metadata and relevance scores.

This is the same search agents run through the query_knowledge_base tool.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryProject, "project", "p", "", "only return chunks from this project")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", domain.DefaultQueryLimit,
		fmt.Sprintf("number of results (%d-%d)", domain.MinQueryLimit, domain.MaxQueryLimit))
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, false)
	if err != nil {
		return err
	}

	req := domain.QueryRequest{Query: strings.Join(args, " ")}
	if cmd.Flags().Changed("project") {
		project := queryProject
		req.ProjectName = &project
	}
	if cmd.Flags().Changed("limit") {
		limit := queryLimit
		req.Limit = &limit
	}

	ctx, cancel := withTimeout(cmd, svc)
	defer cancel()

	resp, err := svc.Query.Query(ctx, req)
	if queryJSON {
		return printQueryJSON(cmd, resp, err)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	printQueryResults(cmd, resp)
	return nil
}

func printQueryJSON(cmd *cobra.Command, resp *domain.QueryResponse, queryErr error) error {
	var v any = resp
	if queryErr != nil {
		v = domain.ToPayload(queryErr)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	if queryErr != nil {
		return fmt.Errorf("query failed: %w", queryErr)
	}
	return nil
}

func printQueryResults(cmd *cobra.Command, resp *domain.QueryResponse) {
	st := styles.DefaultStyles()

	if resp.ResultCount == 0 {
		cmd.Println(st.Muted.Render("No results found."))
		return
	}

	cmd.Println(st.Title.Render(fmt.Sprintf("%d results for %q", resp.ResultCount, resp.Query)))
	cmd.Println()
	for i, r := range resp.Results {
		heading := fmt.Sprintf("[%d] %v", i+1, r.Metadata[domain.TagFilename])
		if page, ok := r.Metadata["page"]; ok {
			heading += fmt.Sprintf(", page %v", page)
		}

		body := []string{
			st.Subtitle.Render(heading) + "  " + st.Score(r.RelevanceScore),
			st.Normal.Render(snippet(r.Text)),
			st.Muted.Render(formatMetadata(r.Metadata)),
		}
		cmd.Println(st.Result.Render(strings.Join(body, "\n")))
		cmd.Println()
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= snippetLength {
		return text
	}
	return string(r[:snippetLength]) + "..."
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
