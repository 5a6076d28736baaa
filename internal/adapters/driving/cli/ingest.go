package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
	"github.com/custodia-labs/contextkb/internal/extractors"
)

var (
	ingestMIME       string
	ingestDocumentID string
	ingestUserID     string
	ingestProjectID  string
	ingestFilename   string
	ingestJSON       bool
)

// isTerminal reports whether progress can be drawn on stderr.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// observable is implemented by ingestion services that report stages.
type observable interface {
	SetObserver(observer driving.StageObserver)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest a document into the knowledge base",
	Long: `Extracts, chunks, embeds and stores one PDF or image file.

The media type is inferred from the file extension unless --mime is given.
Re-ingesting a document with the same --document-id replaces its chunks.

Examples:
  contextkb ingest ./handbook.pdf --project-id onboarding
  contextkb ingest scan.png --document-id 6650f1 --user-id u42 --project-id p7`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMIME, "mime", "", "media type (default: inferred from extension)")
	ingestCmd.Flags().StringVar(&ingestDocumentID, "document-id", "", "document ID (default: random UUID)")
	ingestCmd.Flags().StringVar(&ingestUserID, "user-id", "", "owning user ID (default: $USER)")
	ingestCmd.Flags().StringVar(&ingestProjectID, "project-id", "default", "project ID used for query filtering")
	ingestCmd.Flags().StringVar(&ingestFilename, "filename", "", "display filename (default: base name of path)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, true)
	if err != nil {
		return err
	}

	req, err := buildIngestRequest(args[0])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var result *domain.IngestResult
	if o, ok := svc.Ingestion.(observable); ok && !ingestJSON && isTerminal() {
		result, err = progress.Run(ctx, cmd.ErrOrStderr(), req.Tags.DocumentID,
			func(observer driving.StageObserver) (*domain.IngestResult, error) {
				o.SetObserver(observer)
				defer o.SetObserver(nil)
				return svc.Ingestion.Ingest(ctx, req)
			})
	} else {
		result, err = svc.Ingestion.Ingest(ctx, req)
	}

	if ingestJSON {
		return printIngestJSON(cmd, result, err)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Println("Document successfully ingested into vector store")
	cmd.Printf("  Document: %s\n", result.DocumentID)
	cmd.Printf("  Pages:    %d\n", result.PageCount)
	cmd.Printf("  Chunks:   %d\n", result.ChunkCount)
	return nil
}

// buildIngestRequest fills defaults from the path and environment.
func buildIngestRequest(path string) (domain.IngestRequest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.IngestRequest{}, fmt.Errorf("resolving %s: %w", path, err)
	}

	mimeType := strings.TrimSpace(ingestMIME)
	if mimeType == "" {
		mimeType = extractors.MIMEFromPath(abs)
	}
	docID := ingestDocumentID
	if docID == "" {
		docID = uuid.NewString()
	}
	userID := ingestUserID
	if userID == "" {
		userID = defaultUserID()
	}
	filename := ingestFilename
	if filename == "" {
		filename = filepath.Base(abs)
	}

	return domain.IngestRequest{
		StoragePath: abs,
		MIMEType:    mimeType,
		Tags: domain.DocumentTags{
			DocumentID: docID,
			UserID:     userID,
			ProjectID:  ingestProjectID,
			Filename:   filename,
		},
	}, nil
}

func defaultUserID() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func printIngestJSON(cmd *cobra.Command, result *domain.IngestResult, ingestErr error) error {
	var v any
	if ingestErr != nil {
		v = domain.ToPayload(ingestErr)
	} else {
		v = map[string]any{
			"message":     "Document successfully ingested into vector store",
			"document_id": result.DocumentID,
			"page_count":  result.PageCount,
			"chunk_count": result.ChunkCount,
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	if ingestErr != nil {
		return fmt.Errorf("ingest failed: %w", ingestErr)
	}
	return nil
}

// withTimeout is used by commands that make a single bounded call.
func withTimeout(cmd *cobra.Command, s *Services) (context.Context, context.CancelFunc) {
	timeout := s.Settings.Store.Timeout + s.Settings.Embedding.Timeout
	if timeout <= 0 {
		return context.WithCancel(commandContext(cmd))
	}
	return context.WithTimeout(commandContext(cmd), timeout)
}
