package driven

import "context"

// VisionModel transcribes images with a multimodal model.
type VisionModel interface {
	// Describe sends the instruction and image to the model and returns
	// the text of its response.
	Describe(ctx context.Context, instruction string, image []byte, mimeType string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
