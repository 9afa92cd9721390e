package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/ksattari/souschef/internal/llm"
)

// Planner turns a learning goal into a small set of search queries. It
// never fails: on any LLM problem it falls back to deterministic templated
// queries so the pipeline always has something to search for.
type Planner struct {
	llm        llm.Provider
	logger     *log.Logger
	minQueries int
	maxQueries int
	lengthCap  int
}

// NewPlanner creates a query planner.
func NewPlanner(provider llm.Provider, maxQueries, lengthCap int) *Planner {
	if maxQueries < 3 {
		maxQueries = 5
	}
	// The cap must leave room for the padded variant suffixes, otherwise
	// truncation could collapse them into duplicates.
	if lengthCap < 30 {
		lengthCap = 120
	}
	return &Planner{
		llm:        provider,
		logger:     log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
		minQueries: 3,
		maxQueries: maxQueries,
		lengthCap:  lengthCap,
	}
}

// Plan generates 3-5 queries for the goal. When strategy is broadened,
// priorQueries are the queries already tried; the returned set contains
// none of them.
func (p *Planner) Plan(ctx context.Context, req Request, strategy Strategy, priorQueries []string, diag *Diagnostics) []string {
	queries, err := p.planWithLLM(ctx, req, strategy, priorQueries, diag)
	if err != nil {
		diag.AddError("query planning failed, using templated queries: %v", err)
		p.logger.Printf("falling back to templated queries: %v", err)
		queries = nil
	}

	queries = p.sanitize(queries, priorQueries)
	if len(queries) < p.minQueries {
		queries = p.pad(queries, req, strategy, priorQueries)
	}
	if len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}
	return queries
}

func (p *Planner) planWithLLM(ctx context.Context, req Request, strategy Strategy, priorQueries []string, diag *Diagnostics) ([]string, error) {
	prompt := p.buildPrompt(req, strategy, priorQueries)
	diag.LLMCallCount++
	content, _, err := p.llm.Complete(ctx, llm.Request{
		Stage:     llm.StagePlanning,
		Prompt:    prompt,
		JSONMode:  false,
		MaxTokens: 300,
	})
	if err != nil {
		return nil, err
	}
	raw, err := llm.ExtractJSONArray(content)
	if err != nil {
		return nil, fmt.Errorf("no query array in response: %w", err)
	}
	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}
	return queries, nil
}

func (p *Planner) buildPrompt(req Request, strategy Strategy, priorQueries []string) string {
	goal := req.LearningGoal
	if len(req.DietaryRestrictions) > 0 {
		goal = strings.Join(req.DietaryRestrictions, " ") + " " + goal
	}

	var b strings.Builder
	b.WriteString("You are a culinary education expert. Generate 3-5 web search queries that find COMPLETE RECIPE DISHES (not technique tutorials) teaching this skill.\n\n")
	fmt.Fprintf(&b, "Learning goal: %s\nSkill level: %s\n\n", goal, req.SkillLevel)

	if strategy == StrategyBroadened {
		b.WriteString("The previous search found too few results. Broaden the queries:\n")
		b.WriteString("- Use more general terms (e.g. \"pan sauce\" becomes \"sauce techniques\")\n")
		b.WriteString("- Include related or adjacent techniques\n")
		b.WriteString("- Drop skill-level qualifiers that over-narrow results\n")
		b.WriteString("- Include at least one beginner-friendly variant\n")
		if len(priorQueries) > 0 {
			b.WriteString("\nDo NOT repeat any of these already-tried queries:\n")
			for _, q := range priorQueries {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
	} else {
		b.WriteString("Requirements:\n")
		b.WriteString("- Each query should find a complete recipe for a specific dish\n")
		b.WriteString("- Include dish names, the technique, and the skill level\n")
		b.WriteString("- Maximize variety: different ingredients, proteins, flavor profiles\n")
	}

	b.WriteString("\nReturn ONLY a JSON array of query strings, nothing else.")
	return b.String()
}

// sanitize trims, dedupes, enforces the length cap, and removes any exact
// overlap with priorQueries.
func (p *Planner) sanitize(queries, priorQueries []string) []string {
	prior := make(map[string]struct{}, len(priorQueries))
	for _, q := range priorQueries {
		prior[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
	}
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if len(q) > p.lengthCap {
			q = strings.TrimSpace(truncateRunes(q, p.lengthCap))
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		if _, tried := prior[key]; tried {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// pad fills the query set from deterministic templates until minQueries is
// reached. Broadened templates use wider terms than the initial ones so the
// retry set stays disjoint from a templated first attempt; once the fixed
// templates are spent on earlier attempts, numbered variants keep every
// planning pass at minQueries or more.
func (p *Planner) pad(queries []string, req Request, strategy Strategy, priorQueries []string) []string {
	goal := strings.TrimSpace(req.LearningGoal)
	// Leave room under the length cap so variant suffixes survive
	// truncation and stay distinct.
	if len(goal) > p.lengthCap-24 {
		goal = strings.TrimSpace(truncateRunes(goal, p.lengthCap-24))
	}
	var templates []string
	if strategy == StrategyBroadened {
		templates = []string{
			fmt.Sprintf("easy %s recipes", goal),
			fmt.Sprintf("simple %s recipe for beginners", goal),
			fmt.Sprintf("%s basics recipe", goal),
			fmt.Sprintf("popular %s dishes", goal),
			fmt.Sprintf("%s home cooking recipe", goal),
		}
	} else {
		templates = []string{
			fmt.Sprintf("%s recipe %s", goal, req.SkillLevel),
			fmt.Sprintf("%s technique guide", goal),
			fmt.Sprintf("best %s recipes", goal),
			fmt.Sprintf("classic %s recipe step by step", goal),
			fmt.Sprintf("%s recipe with instructions", goal),
		}
	}
	merged := append(append([]string{}, queries...), templates...)
	out := p.sanitize(merged, priorQueries)
	for n := 2; len(out) < p.minQueries; n++ {
		variants := []string{
			fmt.Sprintf("%s recipe ideas %d", goal, n),
			fmt.Sprintf("%s dishes to try %d", goal, n),
			fmt.Sprintf("%s cooking inspiration %d", goal, n),
		}
		out = append(out, p.sanitize(variants, append(priorQueries, out...))...)
	}
	return out
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
