// Package openai provides a vision model adapter for OpenAI-compatible
// chat completion APIs such as OpenAI and OpenRouter.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/contextkb/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

var _ driven.VisionModel = (*Model)(nil)

// Defaults applied by New.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel      = "gpt-4o-mini"
	DefaultTimeout    = 120 * time.Second
)

// Config selects the endpoint and multimodal model. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Model transcribes images through POST /chat/completions.
type Model struct {
	client *httpjson.Client
	model  string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	ImageURL *imagePart `json:"image_url,omitempty"`
}

type imagePart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// New creates a vision model for an OpenAI-compatible API.
func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL, timeout := cfg.BaseURL, cfg.Timeout
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Model{
		client: httpjson.New("openai", baseURL, timeout).WithBearer(cfg.APIKey),
		model:  model,
	}, nil
}

// Describe sends the instruction plus the image as a data URL. An empty
// choice list yields empty text.
func (m *Model) Describe(ctx context.Context, instruction string, image []byte, mimeType string) (string, error) {
	req := chatRequest{
		Model: m.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &imagePart{URL: dataURL(mimeType, image)}},
			},
		}},
	}

	var resp chatResponse
	if err := m.client.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ModelName returns the multimodal model.
func (m *Model) ModelName() string { return m.model }

// Close drops idle connections.
func (m *Model) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
