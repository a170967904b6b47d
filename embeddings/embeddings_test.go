package embeddings_test

import (
	"testing"

	"github.com/fabfab/course-agent/config"
	"github.com/fabfab/course-agent/embeddings"
)

func TestNewEmbedderOllamaDefault(t *testing.T) {
	cfg := config.Config{
		OllamaHost: "http://localhost:11434",
		Embeddings: config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text", Dimension: 768},
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected an embedder")
	}
}

func TestNewEmbedderOpenAIRequiresKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small"},
	}

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error when OPENAI_API_KEY is missing")
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	cfg := config.Config{Embeddings: config.EmbeddingConfig{Provider: "vertex"}}

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
