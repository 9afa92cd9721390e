package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/ksattari/souschef/internal/gateway"
	"github.com/ksattari/souschef/internal/llm"
	"github.com/ksattari/souschef/internal/search"
)

// Retriever issues the planned queries against the search gateway and asks
// the LLM to turn each hit into a structured RecipeRecord. Individual parse
// failures are skipped; a dead search gateway is fatal for the run.
type Retriever struct {
	searcher   search.Searcher
	llm        llm.Provider
	logger     *log.Logger
	maxQueries int
}

// NewRetriever creates a recipe retriever.
func NewRetriever(searcher search.Searcher, provider llm.Provider, maxQueries int) *Retriever {
	if maxQueries <= 0 {
		maxQueries = 5
	}
	return &Retriever{
		searcher:   searcher,
		llm:        provider,
		logger:     log.New(log.Writer(), "[RETRIEVER] ", log.LstdFlags),
		maxQueries: maxQueries,
	}
}

// Retrieve runs the queries and returns the deduplicated candidates.
// Results keep query order then rank order, so downstream scoring is
// reproducible.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, restrictions []string, diag *Diagnostics) ([]RecipeRecord, error) {
	if len(queries) > r.maxQueries {
		queries = queries[:r.maxQueries]
	}

	var candidates []RecipeRecord
	seen := make(map[string]struct{})
	anySearchSucceeded := false

	for _, q := range queries {
		diag.SearchCallCount++
		results, err := r.searcher.Search(ctx, q)
		if err != nil {
			if gateway.IsFatal(err) {
				return nil, fmt.Errorf("search gateway failure on %q: %w", q, err)
			}
			diag.AddError("search failed for %q: %v", q, err)
			continue
		}
		anySearchSucceeded = true

		for _, res := range results {
			if res.URL == "" {
				continue
			}
			if _, dup := seen[res.URL]; dup {
				continue
			}
			diag.LLMCallCount++
			record, err := r.parseResult(ctx, res, restrictions)
			if err != nil {
				diag.AddError("parse failed for %s: %v", res.URL, err)
				continue
			}
			seen[res.URL] = struct{}{}
			candidates = append(candidates, record)
		}
	}

	if !anySearchSucceeded && len(queries) > 0 {
		return nil, fmt.Errorf("all %d search queries failed", len(queries))
	}

	r.logger.Printf("retrieved %d candidates from %d queries", len(candidates), len(queries))
	return candidates, nil
}

type extractedRecipe struct {
	Title        string            `json:"title"`
	Difficulty   string            `json:"difficulty"`
	TimeEstimate string            `json:"time_estimate"`
	Techniques   []json.RawMessage `json:"techniques"`
	Ingredients  []json.RawMessage `json:"ingredients"`
	Steps        []json.RawMessage `json:"steps"`
}

func (r *Retriever) parseResult(ctx context.Context, res search.Result, restrictions []string) (RecipeRecord, error) {
	prompt := buildExtractionPrompt(res, restrictions)
	content, _, err := r.llm.Complete(ctx, llm.Request{
		Stage:     llm.StageExtraction,
		Prompt:    prompt,
		JSONMode:  true,
		MaxTokens: 800,
	})
	if err != nil {
		return RecipeRecord{}, err
	}

	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return RecipeRecord{}, err
	}
	var ext extractedRecipe
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return RecipeRecord{}, fmt.Errorf("malformed extraction JSON: %w", err)
	}

	title := strings.TrimSpace(ext.Title)
	if title == "" {
		title = strings.TrimSpace(res.Title)
	}
	if title == "" {
		return RecipeRecord{}, fmt.Errorf("missing title")
	}
	ingredients := flattenStrings(ext.Ingredients)
	if len(ingredients) == 0 {
		return RecipeRecord{}, fmt.Errorf("missing ingredients")
	}

	relevance := res.RelevanceScore
	if relevance == 0 {
		relevance = 0.5 // provider reported no score; treat as middling
	}
	var published *time.Time
	if !res.PublishedDate.IsZero() {
		d := res.PublishedDate
		published = &d
	}

	return RecipeRecord{
		Title:          title,
		SourceURL:      res.URL,
		SourceName:     sourceNameFromURL(res.URL),
		Author:         "Unknown",
		PublishedDate:  published,
		Difficulty:     NormalizeDifficulty(strings.ToLower(strings.TrimSpace(ext.Difficulty))),
		TimeEstimate:   strings.TrimSpace(ext.TimeEstimate),
		Techniques:     flattenStrings(ext.Techniques),
		Ingredients:    ingredients,
		Steps:          flattenStrings(ext.Steps),
		RelevanceScore: relevance,
	}, nil
}

func buildExtractionPrompt(res search.Result, restrictions []string) string {
	var b strings.Builder
	b.WriteString("Extract a structured recipe from this search result. If the text describes a recipe, fill every field you can; use sensible defaults otherwise.\n\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nContent:\n%s\n\n", res.Title, res.URL, res.Snippet)
	if len(restrictions) > 0 {
		fmt.Fprintf(&b, "Note the user's dietary restrictions: %s.\n\n", strings.Join(restrictions, ", "))
	}
	b.WriteString(`Return ONLY valid JSON:
{
  "title": "recipe title",
  "difficulty": "beginner|intermediate|advanced",
  "time_estimate": "e.g. 45 minutes",
  "techniques": ["technique", ...],
  "ingredients": ["ingredient", ...],
  "steps": ["step", ...]
}`)
	return b.String()
}

// flattenStrings decodes a JSON array whose elements may be strings or
// nested string arrays, flattening one level. Extraction models sometimes
// collapse grouped ingredient markup into lists of lists.
func flattenStrings(items []json.RawMessage) []string {
	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var nested []string
		if err := json.Unmarshal(item, &nested); err == nil {
			for _, n := range nested {
				if n = strings.TrimSpace(n); n != "" {
					out = append(out, n)
				}
			}
		}
	}
	return out
}

var sourceNames = map[string]string{
	"seriouseats.com":      "Serious Eats",
	"bonappetit.com":       "Bon Appetit",
	"foodnetwork.com":      "Food Network",
	"allrecipes.com":       "Allrecipes",
	"epicurious.com":       "Epicurious",
	"kingarthurbaking.com": "King Arthur Baking",
	"nytimes.com":          "NY Times Cooking",
	"cooking.nytimes.com":  "NY Times Cooking",
}

// sourceNameFromURL maps a recipe URL to a display name, title-casing the
// bare domain for unknown sites.
func sourceNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "Unknown"
	}
	host := strings.ToLower(u.Host)
	if name, ok := sourceNames[host]; ok {
		return name
	}
	trimmed := strings.TrimPrefix(host, "www.")
	if name, ok := sourceNames[trimmed]; ok {
		return name
	}
	base := strings.SplitN(trimmed, ".", 2)[0]
	if base == "" {
		return "Unknown"
	}
	return strings.ToUpper(base[:1]) + base[1:]
}
