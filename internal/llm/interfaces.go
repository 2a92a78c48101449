// Package llm provides the embedding, completion, and streaming-chat clients
// used by the memory subsystem. All outbound calls are wrapped in a circuit
// breaker to prevent cascading failures.
package llm

import "context"

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Embedder converts text to a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// TextGenerator is the interface for single-turn LLM completion. Profile
// delta generation uses completion style, not chat.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// ChatStreamer streams a chat completion. The fn callback is invoked once
// per text fragment as it arrives; returning a non-nil error aborts the
// stream. The assembled full response is returned after the stream ends.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []ChatMessage, fn func(fragment string) error) (string, error)
	GetModel() string
}
