package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        LLMConfig
	Embeddings EmbeddingConfig

	DataDir string

	// Chunking and retrieval knobs. Sizes are in characters; MaxHistory
	// counts user/assistant exchange pairs kept per session.
	ChunkSize      int
	ChunkOverlap   int
	MaxResults     int
	MaxHistory     int
	MaxToolRounds  int
	ScoreThreshold float64
}

func Load() (Config, error) {
	cfg := Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/course-agent?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
		},
		Embeddings: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", ProviderOllama),
			Model:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		},

		DataDir: getEnv("DATA_DIR", "./docs"),
	}

	var err error
	if cfg.Embeddings.Dimension, err = getEnvInt("EMBEDDING_DIMENSION", 768); err != nil {
		return Config{}, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 800); err != nil {
		return Config{}, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 100); err != nil {
		return Config{}, err
	}
	if cfg.MaxResults, err = getEnvInt("MAX_RESULTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MaxHistory, err = getEnvInt("MAX_HISTORY", 2); err != nil {
		return Config{}, err
	}
	if cfg.MaxToolRounds, err = getEnvInt("MAX_TOOL_ROUNDS", 2); err != nil {
		return Config{}, err
	}
	if cfg.ScoreThreshold, err = getEnvFloat("SCORE_THRESHOLD", 0); err != nil {
		return Config{}, err
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
