// Package gemini provides a vision model adapter using the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// Ensure Model implements the interface.
var _ driven.VisionModel = (*Model)(nil)

// Default configuration values.
const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Gemini vision model.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the multimodal model to use (default: gemini-2.0-flash).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Model transcribes images with a Gemini multimodal model.
type Model struct {
	client *genai.Client
	model  string
}

// New creates a Gemini vision model.
func New(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: initialise client: %w", err)
	}
	return &Model{client: client, model: cfg.Model}, nil
}

// Describe sends the instruction followed by the image and returns the response text.
func (m *Model) Describe(ctx context.Context, instruction string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromBytes(image, mimeType),
		},
	}}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Text()), nil
}

// ModelName returns the name of the model being used.
func (m *Model) ModelName() string {
	return m.model
}

// Close releases resources.
func (m *Model) Close() error {
	return nil
}
