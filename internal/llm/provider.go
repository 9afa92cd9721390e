package llm

import (
	"context"
)

// Stage names the pipeline step asking for a completion. Routing config maps
// each stage to a model, so cheap stages can run on cheap models.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageExtraction Stage = "extraction"
	StageReasoning  Stage = "reasoning"
	StageNutrition  Stage = "nutrition"
	StageIntent     Stage = "intent"
)

// Request is a single completion request.
type Request struct {
	Stage       Stage
	System      string
	Prompt      string
	JSONMode    bool // ask the provider for a JSON-only response
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption and the estimated cost of one call.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

// Provider is the narrow LLM surface the pipeline depends on.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, Usage, error)
}
