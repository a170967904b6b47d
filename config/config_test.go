package config_test

import (
	"testing"

	"github.com/fabfab/course-agent/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderOllama {
		t.Fatalf("unexpected default llm provider: %q", cfg.LLM.Provider)
	}
	if cfg.Embeddings.Provider != config.ProviderOllama {
		t.Fatalf("unexpected default embedding provider: %q", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimension != 768 {
		t.Fatalf("unexpected default embedding dimension: %d", cfg.Embeddings.Dimension)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 100 {
		t.Fatalf("unexpected chunking defaults: size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MaxResults != 5 || cfg.MaxHistory != 2 || cfg.MaxToolRounds != 2 {
		t.Fatalf("unexpected retrieval defaults: results=%d history=%d rounds=%d",
			cfg.MaxResults, cfg.MaxHistory, cfg.MaxToolRounds)
	}
	if cfg.ScoreThreshold != 0 {
		t.Fatalf("expected score threshold disabled by default, got %v", cfg.ScoreThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("CHUNK_SIZE", "1200")
	t.Setenv("SCORE_THRESHOLD", "0.25")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != config.ProviderOpenAI || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("llm overrides not applied: %+v", cfg.LLM)
	}
	if cfg.ChunkSize != 1200 {
		t.Fatalf("chunk size override not applied: %d", cfg.ChunkSize)
	}
	if cfg.ScoreThreshold != 0.25 {
		t.Fatalf("score threshold override not applied: %v", cfg.ScoreThreshold)
	}
}

func TestLoadRejectsUnparseableInt(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unparseable CHUNK_SIZE")
	}
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when overlap is not smaller than chunk size")
	}
}
