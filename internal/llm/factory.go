package llm

import "fmt"

// Clients bundles the LLM-facing interfaces a provider supplies.
type Clients struct {
	Embedder  Embedder
	Generator TextGenerator
	Streamer  ChatStreamer
}

// NewClients constructs the embedding, completion, and streaming clients for
// the named provider. Supported providers are "openai" and "ollama".
func NewClients(provider string, openaiCfg OpenAIConfig, ollamaCfg OllamaConfig) (*Clients, error) {
	switch provider {
	case "openai":
		if openaiCfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		chat := NewOpenAIClient(openaiCfg)
		return &Clients{
			Embedder:  NewOpenAIEmbeddingClient(openaiCfg),
			Generator: chat,
			Streamer:  chat,
		}, nil
	case "ollama":
		chat := NewOllamaClient(ollamaCfg)
		return &Clients{
			Embedder:  NewOllamaEmbeddingClient(ollamaCfg),
			Generator: chat,
			Streamer:  chat,
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", provider)
	}
}
