// Package search wraps the external web-search providers behind a single
// Searcher interface. All providers honor the same per-call caps: result
// count, recency window, and optional domain allow-list.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ksattari/souschef/config"
	"github.com/ksattari/souschef/internal/gateway"
)

// Result is one web search hit. RelevanceScore and PublishedDate are zero
// when the provider does not report them.
type Result struct {
	URL            string
	Title          string
	Snippet        string
	RelevanceScore float64
	PublishedDate  time.Time
}

// Searcher is the narrow search surface the pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Options fixes the per-call parameters for a provider instance. The
// pipeline never varies these per query.
type Options struct {
	MaxResults      int
	RecencyDays     int
	DomainAllowlist []string
}

// CallRecorder counts outbound search calls. Satisfied by
// telemetry.Telemetry.
type CallRecorder interface {
	RecordSearchCall()
}

type recordedSearcher struct {
	next Searcher
	rec  CallRecorder
}

// WithCallRecording wraps s so every outbound search is counted.
func WithCallRecording(s Searcher, rec CallRecorder) Searcher {
	if rec == nil {
		return s
	}
	return &recordedSearcher{next: s, rec: rec}
}

func (r *recordedSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	r.rec.RecordSearchCall()
	return r.next.Search(ctx, query)
}

// NewSearcher builds the configured provider.
func NewSearcher(cfg config.SearchConfig) (Searcher, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := gateway.NewHTTPClient(timeout, cfg.MaxRetries, 400*time.Millisecond)
	opts := Options{
		MaxResults:      cfg.MaxResultsPerQuery,
		RecencyDays:     cfg.RecencyDays,
		DomainAllowlist: cfg.DomainAllowlist,
	}
	switch cfg.Provider {
	case "tavily":
		return &Tavily{APIKey: cfg.APIKey, Opts: opts, Client: client}, nil
	case "brave":
		return &Brave{APIKey: cfg.APIKey, Opts: opts, Client: client}, nil
	case "serper":
		return &Serper{APIKey: cfg.APIKey, Opts: opts, Client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
