package search

import (
	"context"
	"net/http"
	"strings"

	"github.com/ksattari/souschef/internal/gateway"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper implements Searcher over the serper.dev Google search API.
type Serper struct {
	APIKey string
	Opts   Options
	Client *gateway.HTTPClient
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string) ([]Result, error) {
	payload := map[string]any{"q": query, "num": s.Opts.MaxResults}
	if len(s.Opts.DomainAllowlist) > 0 {
		var sites []string
		for _, d := range s.Opts.DomainAllowlist {
			sites = append(sites, "site:"+d)
		}
		payload["q"] = query + " (" + strings.Join(sites, " OR ") + ")"
	}
	if s.Opts.RecencyDays > 0 && s.Opts.RecencyDays <= 365 {
		payload["tbs"] = "qdr:y"
	}
	headers := map[string]string{"X-API-KEY": s.APIKey}

	var raw serperResponse
	if err := s.Client.DoJSON(ctx, "search", http.MethodPost, serperEndpoint, headers, payload, &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Organic))
	for i, r := range raw.Organic {
		if i >= s.Opts.MaxResults {
			break
		}
		out = append(out, Result{URL: r.Link, Title: r.Title, Snippet: r.Snippet})
	}
	return out, nil
}
