package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ksattari/souschef/internal/gateway"
)

// Brave implements Searcher over the Brave web search API.
// https://api.search.brave.com/app/documentation/web-search
type Brave struct {
	APIKey string
	Opts   Options
	Client *gateway.HTTPClient
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	q := query
	if len(b.Opts.DomainAllowlist) > 0 {
		var sites []string
		for _, d := range b.Opts.DomainAllowlist {
			sites = append(sites, "site:"+d)
		}
		q = q + " (" + strings.Join(sites, " OR ") + ")"
	}
	endpoint := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d",
		url.QueryEscape(q), b.Opts.MaxResults)
	if b.Opts.RecencyDays > 0 {
		// Brave freshness takes a date range, not a day count.
		endpoint += "&freshness=" + braveFreshness(b.Opts.RecencyDays)
	}
	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": b.APIKey,
	}

	var raw braveResponse
	if err := b.Client.DoJSON(ctx, "search", http.MethodGet, endpoint, headers, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= b.Opts.MaxResults {
			break
		}
		out = append(out, Result{URL: r.URL, Title: r.Title, Snippet: r.Snippet})
	}
	return out, nil
}

func braveFreshness(days int) string {
	switch {
	case days <= 1:
		return "pd"
	case days <= 7:
		return "pw"
	case days <= 31:
		return "pm"
	default:
		return "py"
	}
}
