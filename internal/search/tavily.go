package search

import (
	"context"
	"net/http"
	"time"

	"github.com/ksattari/souschef/internal/gateway"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily implements Searcher over the Tavily search API. It is the only
// provider that reports a relevance score and a published date, which the
// selector uses directly.
type Tavily struct {
	APIKey string
	Opts   Options
	Client *gateway.HTTPClient
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	Days           int      `json:"days,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	body := tavilyRequest{
		Query:          query,
		MaxResults:     t.Opts.MaxResults,
		Days:           t.Opts.RecencyDays,
		IncludeDomains: t.Opts.DomainAllowlist,
		SearchDepth:    "basic",
	}
	headers := map[string]string{"Authorization": "Bearer " + t.APIKey}

	var raw tavilyResponse
	if err := t.Client.DoJSON(ctx, "search", http.MethodPost, tavilyEndpoint, headers, body, &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if i >= t.Opts.MaxResults {
			break
		}
		res := Result{
			URL:            r.URL,
			Title:          r.Title,
			Snippet:        r.Content,
			RelevanceScore: r.Score,
		}
		if r.PublishedDate != "" {
			for _, layout := range []string{time.RFC3339, "2006-01-02", "Mon, 02 Jan 2006 15:04:05 MST"} {
				if ts, err := time.Parse(layout, r.PublishedDate); err == nil {
					res.PublishedDate = ts
					break
				}
			}
		}
		out = append(out, res)
	}
	return out, nil
}
