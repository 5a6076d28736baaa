package driven

// PromptStore supplies the instructions sent to models during ingestion,
// so operators can tune them without a rebuild.
type PromptStore interface {
	// Load returns the named prompt. Known prompts fall back to their
	// built-in text; unknown names return an error wrapping
	// domain.ErrNotFound.
	Load(name string) (string, error)
}

// PromptVisionTranscribe is the instruction sent with every image to the
// vision model. It has no placeholders.
const PromptVisionTranscribe = "vision_transcribe"
