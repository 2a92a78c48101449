// Package config provides configuration management for recall. Settings are
// read from an optional YAML file first, then environment variables with the
// RECALL_ prefix override file values, with sensible defaults for everything.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the recall service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Vector   VectorConfig   `yaml:"vector"`
	LLM      LLMConfig      `yaml:"llm"`
	Memory   MemoryConfig   `yaml:"memory"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`              // default: 8480
	Host            string  `yaml:"host"`              // default: 127.0.0.1
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"` // default: 10
	RateLimitBurst  int     `yaml:"rate_limit_burst"`  // default: 20
}

// StorageConfig contains profile database configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	SQLitePath  string `yaml:"sqlite_path"`  // default: ./data/recall.db
	PostgresDSN string `yaml:"postgres_dsn"` //
}

// VectorConfig contains vector store configuration.
type VectorConfig struct {
	Backend     string `yaml:"backend"`      // pinecone, pgvector, or chromem (default: chromem)
	SharedIndex string `yaml:"shared_index"` // default: chat-shared
	Dimension   int    `yaml:"dimension"`    // default: 512

	PineconeAPIKey string `yaml:"pinecone_api_key"`
	PineconeCloud  string `yaml:"pinecone_cloud"`  // default: aws
	PineconeRegion string `yaml:"pinecone_region"` // default: us-east-1
	PostgresDSN    string `yaml:"postgres_dsn"`
	ChromemPath    string `yaml:"chromem_path"` // empty means in-memory
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider         string `yaml:"provider"`           // openai or ollama (default: ollama)
	OpenAIAPIKey     string `yaml:"openai_api_key"`     //
	OpenAIModel      string `yaml:"openai_model"`       // default: gpt-4o
	OpenAIEmbedModel string `yaml:"openai_embed_model"` // default: text-embedding-3-small
	OllamaURL        string `yaml:"ollama_url"`         // default: http://localhost:11434
	OllamaModel      string `yaml:"ollama_model"`       // default: llama3.2
	OllamaEmbedModel string `yaml:"ollama_embed_model"` // default: nomic-embed-text
}

// MemoryConfig tunes retrieval and enrichment.
type MemoryConfig struct {
	TopK            int `yaml:"top_k"`            // default: 10
	NumWorkers      int `yaml:"num_workers"`      // default: 2
	QueueSize       int `yaml:"queue_size"`       // default: 100
	ShutdownTimeout int `yaml:"shutdown_timeout"` // seconds, default: 10
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	APIToken string `yaml:"api_token"` // empty disables auth
}

// LoadConfig loads configuration. When path is non-empty the YAML file is
// read first; RECALL_ environment variables override whatever it sets.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8480,
			Host:            "127.0.0.1",
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
		},
		Storage: StorageConfig{
			Engine:     "sqlite",
			SQLitePath: "./data/recall.db",
		},
		Vector: VectorConfig{
			Backend:        "chromem",
			SharedIndex:    "chat-shared",
			Dimension:      512,
			PineconeCloud:  "aws",
			PineconeRegion: "us-east-1",
		},
		LLM: LLMConfig{
			Provider:         "ollama",
			OpenAIModel:      "gpt-4o",
			OpenAIEmbedModel: "text-embedding-3-small",
			OllamaURL:        "http://localhost:11434",
			OllamaModel:      "llama3.2",
			OllamaEmbedModel: "nomic-embed-text",
		},
		Memory: MemoryConfig{
			TopK:            10,
			NumWorkers:      2,
			QueueSize:       100,
			ShutdownTimeout: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnvInt("RECALL_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("RECALL_HOST", cfg.Server.Host)
	cfg.Server.RateLimitPerSec = getEnvFloat("RECALL_RATE_LIMIT_PER_SEC", cfg.Server.RateLimitPerSec)
	cfg.Server.RateLimitBurst = getEnvInt("RECALL_RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)

	cfg.Storage.Engine = getEnv("RECALL_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.SQLitePath = getEnv("RECALL_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.PostgresDSN = getEnv("RECALL_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Vector.Backend = getEnv("RECALL_VECTOR_BACKEND", cfg.Vector.Backend)
	cfg.Vector.SharedIndex = getEnv("RECALL_SHARED_INDEX", cfg.Vector.SharedIndex)
	cfg.Vector.Dimension = getEnvInt("RECALL_VECTOR_DIMENSION", cfg.Vector.Dimension)
	cfg.Vector.PineconeAPIKey = getEnv("RECALL_PINECONE_API_KEY", cfg.Vector.PineconeAPIKey)
	cfg.Vector.PineconeCloud = getEnv("RECALL_PINECONE_CLOUD", cfg.Vector.PineconeCloud)
	cfg.Vector.PineconeRegion = getEnv("RECALL_PINECONE_REGION", cfg.Vector.PineconeRegion)
	cfg.Vector.PostgresDSN = getEnv("RECALL_VECTOR_POSTGRES_DSN", cfg.Vector.PostgresDSN)
	cfg.Vector.ChromemPath = getEnv("RECALL_CHROMEM_PATH", cfg.Vector.ChromemPath)

	cfg.LLM.Provider = getEnv("RECALL_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OpenAIAPIKey = getEnv("RECALL_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("RECALL_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.OpenAIEmbedModel = getEnv("RECALL_OPENAI_EMBED_MODEL", cfg.LLM.OpenAIEmbedModel)
	cfg.LLM.OllamaURL = getEnv("RECALL_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("RECALL_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OllamaEmbedModel = getEnv("RECALL_OLLAMA_EMBED_MODEL", cfg.LLM.OllamaEmbedModel)

	cfg.Memory.TopK = getEnvInt("RECALL_TOP_K", cfg.Memory.TopK)
	cfg.Memory.NumWorkers = getEnvInt("RECALL_NUM_WORKERS", cfg.Memory.NumWorkers)
	cfg.Memory.QueueSize = getEnvInt("RECALL_QUEUE_SIZE", cfg.Memory.QueueSize)
	cfg.Memory.ShutdownTimeout = getEnvInt("RECALL_SHUTDOWN_TIMEOUT", cfg.Memory.ShutdownTimeout)

	cfg.Security.APIToken = getEnv("RECALL_API_TOKEN", cfg.Security.APIToken)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
