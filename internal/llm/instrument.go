package llm

import "context"

// UsageRecorder receives per-call token usage and estimated cost.
// Satisfied by telemetry.Telemetry.
type UsageRecorder interface {
	RecordLLMCall(stage, model string, tokens int, cost float64)
}

type recordedProvider struct {
	next     Provider
	recorder UsageRecorder
}

// WithUsageRecording wraps provider so every completion reports its usage.
// Failed calls are reported too, they still count against quota.
func WithUsageRecording(p Provider, rec UsageRecorder) Provider {
	if rec == nil {
		return p
	}
	return &recordedProvider{next: p, recorder: rec}
}

func (r *recordedProvider) Complete(ctx context.Context, req Request) (string, Usage, error) {
	content, usage, err := r.next.Complete(ctx, req)
	r.recorder.RecordLLMCall(string(req.Stage), usage.Model, usage.TotalTokens, usage.Cost)
	return content, usage, err
}
