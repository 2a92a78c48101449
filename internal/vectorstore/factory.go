package vectorstore

import "fmt"

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Backend string // pinecone, pgvector, or chromem

	Pinecone    PineconeConfig
	PostgresDSN string
	ChromemPath string // empty means in-memory
}

// NewProvider constructs the configured backend.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Backend {
	case "pinecone":
		if cfg.Pinecone.APIKey == "" {
			return nil, fmt.Errorf("pinecone backend requires an API key")
		}
		return NewPineconeProvider(cfg.Pinecone), nil
	case "pgvector":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("pgvector backend requires a DSN")
		}
		return NewPgVectorProvider(cfg.PostgresDSN)
	case "chromem":
		return NewChromemProvider(cfg.ChromemPath)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %q", cfg.Backend)
	}
}
