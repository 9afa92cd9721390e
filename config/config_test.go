package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.MinAcceptableCandidates != 2 {
		t.Fatalf("expected default min_acceptable_candidates 2, got %d", cfg.Pipeline.MinAcceptableCandidates)
	}
	if cfg.Pipeline.MaxRetries != 2 || cfg.Pipeline.TopK != 3 || cfg.Pipeline.MaxQueries != 5 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.TitleSimilarityCutoff != 0.3 {
		t.Fatalf("expected similarity cutoff 0.3, got %v", cfg.Pipeline.TitleSimilarityCutoff)
	}
	if cfg.Search.Provider != "tavily" || cfg.Search.MaxResultsPerQuery != 3 || cfg.Search.RecencyDays != 730 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address :8080, got %s", cfg.Server.Address)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{
		"search": {"provider": "brave", "max_results_per_query": 5},
		"pipeline": {"top_k": 2}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Provider != "brave" || cfg.Search.MaxResultsPerQuery != 5 {
		t.Fatalf("file values should override defaults: %+v", cfg.Search)
	}
	if cfg.Pipeline.TopK != 2 {
		t.Fatalf("expected top_k 2, got %d", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.MaxRetries != 2 {
		t.Fatalf("untouched keys keep defaults, got %d", cfg.Pipeline.MaxRetries)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, `{"search": {"provider": "bing"}}`)); err == nil {
		t.Fatalf("unknown search provider must fail validation")
	}
	if _, err := LoadConfig(writeConfig(t, `{"pipeline": {"top_k": 0}}`)); err == nil {
		t.Fatalf("top_k 0 must fail validation")
	}
	if _, err := LoadConfig(writeConfig(t, `{"pipeline": {"title_similarity_cutoff": 1.5}}`)); err == nil {
		t.Fatalf("cutoff above 1 must fail validation")
	}
	if _, err := LoadConfig(writeConfig(t, `{"pipeline": {"query_length_cap": 10}}`)); err == nil {
		t.Fatalf("query_length_cap below 30 must fail validation")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
