package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ksattari/souschef/internal/llm"
	"github.com/ksattari/souschef/internal/search"
)

// fakeLLM routes completions to a per-stage handler. Unhandled stages fail.
type fakeLLM struct {
	handle func(req llm.Request) (string, error)
	calls  int
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, llm.Usage, error) {
	f.calls++
	if f.handle == nil {
		return "", llm.Usage{}, fmt.Errorf("no handler configured")
	}
	content, err := f.handle(req)
	return content, llm.Usage{}, err
}

// failingLLM always errors, for fallback paths.
func failingLLM() *fakeLLM {
	return &fakeLLM{handle: func(llm.Request) (string, error) {
		return "", fmt.Errorf("llm unavailable")
	}}
}

// fakeSearcher routes queries to a handler.
type fakeSearcher struct {
	handle func(query string) ([]search.Result, error)
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]search.Result, error) {
	f.calls++
	return f.handle(query)
}

// extractionJSON builds a canned extraction response for a result.
func extractionJSON(title string, techniques ...string) string {
	body := map[string]any{
		"title":         title,
		"difficulty":    "intermediate",
		"time_estimate": "30 minutes",
		"techniques":    techniques,
		"ingredients":   []string{"shallots", "butter", "stock"},
		"steps":         []string{"sear", "deglaze", "reduce"},
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func mkRecipe(title, url string, opts ...func(*RecipeRecord)) RecipeRecord {
	r := RecipeRecord{
		Title:          title,
		SourceURL:      url,
		SourceName:     "Test Kitchen",
		Author:         "Unknown",
		Difficulty:     DifficultyIntermediate,
		TimeEstimate:   "30 minutes",
		Techniques:     []string{"deglazing", "reduction"},
		Ingredients:    []string{"shallots", "butter", "stock"},
		Steps:          []string{"sear", "deglaze", "reduce"},
		RelevanceScore: 0.5,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}
