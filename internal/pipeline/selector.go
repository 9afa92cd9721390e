package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ksattari/souschef/internal/llm"
)

// Selector filters candidates by hard constraints, ranks the survivors
// with the scoring policy, and picks a diverse top-K with per-pick
// reasoning text.
type Selector struct {
	policy           ScoringPolicy
	llm              llm.Provider
	logger           *log.Logger
	topK             int
	similarityCutoff float64
	now              func() time.Time
}

// NewSelector creates a selector with the given policy.
func NewSelector(policy ScoringPolicy, provider llm.Provider, topK int, similarityCutoff float64) *Selector {
	if topK <= 0 {
		topK = 3
	}
	if similarityCutoff <= 0 {
		similarityCutoff = 0.3
	}
	return &Selector{
		policy:           policy,
		llm:              provider,
		logger:           log.New(log.Writer(), "[SELECTOR] ", log.LstdFlags),
		topK:             topK,
		similarityCutoff: similarityCutoff,
		now:              time.Now,
	}
}

// Select returns at most topK scored recipes, distinct by source URL. It is
// well-defined for zero candidates and never fails the run: reasoning-text
// failures fall back to a template.
func (s *Selector) Select(ctx context.Context, candidates []RecipeRecord, req Request, diag *Diagnostics) []ScoredRecipe {
	filtered := s.filter(candidates, req, diag)
	if len(filtered) == 0 {
		return nil
	}

	now := s.now()
	ranked := make([]rankedRecipe, 0, len(filtered))
	for _, c := range filtered {
		ranked = append(ranked, rankedRecipe{recipe: c, score: s.policy.Score(c, req, now)})
	}
	// Stable keeps insertion order as the final tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].recipe.RelevanceScore > ranked[j].recipe.RelevanceScore
	})

	picked := s.pickDiverse(ranked)

	out := make([]ScoredRecipe, 0, len(picked))
	for _, p := range picked {
		reasoning, highlights := s.reasoning(ctx, p.recipe, req, diag)
		out = append(out, ScoredRecipe{
			Recipe:              p.recipe,
			Score:               p.score,
			Reasoning:           reasoning,
			TechniqueHighlights: highlights,
		})
	}
	s.logger.Printf("selected %d of %d candidates", len(out), len(candidates))
	return out
}

func (s *Selector) filter(candidates []RecipeRecord, req Request, diag *Diagnostics) []RecipeRecord {
	forbidden := s.policy.ForbiddenKeywords(req.DietaryRestrictions)
	excluded := make(map[string]struct{}, len(req.ExcludedIdentifiers))
	for _, id := range req.ExcludedIdentifiers {
		excluded[id] = struct{}{}
	}

	var out []RecipeRecord
	for _, c := range candidates {
		if _, skip := excluded[c.SourceURL]; skip {
			continue
		}
		if mismatch := req.SkillLevel.Ordinal() - c.Difficulty.Ordinal(); mismatch >= 2 || mismatch <= -2 {
			continue
		}
		if len(forbidden) > 0 {
			text := strings.ToLower(strings.Join(c.Ingredients, " "))
			disallowed := false
			for _, word := range forbidden {
				if strings.Contains(text, word) {
					disallowed = true
					break
				}
			}
			if disallowed {
				diag.AddNote("dropped %q: conflicts with dietary restrictions", c.Title)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

type rankedRecipe struct {
	recipe RecipeRecord
	score  float64
}

// pickDiverse takes the top candidate unconditionally, then skips any whose
// title overlaps an already-picked title at or above the cutoff. If the
// pool runs dry before topK, it backfills by score regardless of
// similarity.
func (s *Selector) pickDiverse(ranked []rankedRecipe) []rankedRecipe {
	if len(ranked) == 0 {
		return nil
	}
	picked := []rankedRecipe{ranked[0]}
	used := map[string]struct{}{ranked[0].recipe.SourceURL: {}}

	for _, cand := range ranked[1:] {
		if len(picked) >= s.topK {
			break
		}
		if _, dup := used[cand.recipe.SourceURL]; dup {
			continue
		}
		similar := false
		for _, p := range picked {
			if titleSimilarity(cand.recipe.Title, p.recipe.Title) >= s.similarityCutoff {
				similar = true
				break
			}
		}
		if similar {
			continue
		}
		picked = append(picked, cand)
		used[cand.recipe.SourceURL] = struct{}{}
	}

	// Backfill from the top of the ranking if diversity skipping left
	// slots empty.
	for _, cand := range ranked {
		if len(picked) >= s.topK {
			break
		}
		if _, dup := used[cand.recipe.SourceURL]; dup {
			continue
		}
		picked = append(picked, cand)
		used[cand.recipe.SourceURL] = struct{}{}
	}
	return picked
}

var titleStopwords = map[string]struct{}{
	"with": {}, "and": {}, "the": {}, "in": {}, "for": {}, "to": {},
	"recipe": {}, "easy": {}, "simple": {}, "best": {}, "a": {}, "an": {},
	"how": {}, "make": {}, "homemade": {},
}

// titleSimilarity is the fraction of meaningful words shared between two
// titles, relative to the shorter one.
func titleSimilarity(a, b string) float64 {
	wa := titleWords(a)
	wb := titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	min := len(wa)
	if len(wb) < min {
		min = len(wb)
	}
	return float64(shared) / float64(min)
}

func titleWords(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,!?:;()\"'")
		if w == "" {
			continue
		}
		if _, stop := titleStopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

type reasoningResponse struct {
	Reasoning           string   `json:"reasoning"`
	TechniqueHighlights []string `json:"technique_highlights"`
}

func (s *Selector) reasoning(ctx context.Context, recipe RecipeRecord, req Request, diag *Diagnostics) (string, []string) {
	prompt := fmt.Sprintf(`You are a professional chef and culinary educator. Explain concisely why this recipe fits the user's learning goals.

User context:
- Skill level: %s
- Learning goal: %s

Recipe:
- Title: %s
- Techniques: %s
- Difficulty: %s

Generate:
1. "Why this recipe" (2-3 sentences, learning-focused and encouraging)
2. Key technique highlights (3-4 bullet points, specific skills they'll practice)

Return ONLY valid JSON:
{"reasoning": "...", "technique_highlights": ["...", "..."]}`,
		req.SkillLevel, req.LearningGoal, recipe.Title,
		strings.Join(recipe.Techniques, ", "), recipe.Difficulty)

	diag.LLMCallCount++
	content, _, err := s.llm.Complete(ctx, llm.Request{
		Stage:       llm.StageReasoning,
		Prompt:      prompt,
		JSONMode:    true,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err == nil {
		if raw, jerr := llm.ExtractJSONObject(content); jerr == nil {
			var parsed reasoningResponse
			if uerr := json.Unmarshal([]byte(raw), &parsed); uerr == nil && parsed.Reasoning != "" {
				return parsed.Reasoning, parsed.TechniqueHighlights
			}
		}
		err = fmt.Errorf("unusable reasoning response")
	}

	diag.AddError("reasoning generation failed for %q: %v", recipe.Title, err)
	return templatedReasoning(recipe)
}

// templatedReasoning is the deterministic fallback when the reasoning call
// fails: a selected recipe is never dropped for missing prose.
func templatedReasoning(recipe RecipeRecord) (string, []string) {
	techniques := recipe.Techniques
	if len(techniques) == 0 {
		return "This recipe teaches essential cooking skills.", []string{"See recipe for details"}
	}
	highlights := techniques
	if len(highlights) > 3 {
		highlights = highlights[:3]
	}
	return fmt.Sprintf("This recipe teaches %s.", strings.Join(techniques, ", ")), highlights
}

// BuildComparison produces the templated cross-recipe summary: a one-line
// focus label per pick plus the technique highlights shared by all picks.
func BuildComparison(selected []ScoredRecipe) Comparison {
	cmp := Comparison{}
	for _, s := range selected {
		focus := "general technique practice"
		if len(s.TechniqueHighlights) > 0 {
			focus = s.TechniqueHighlights[0]
		} else if len(s.Recipe.Techniques) > 0 {
			focus = s.Recipe.Techniques[0]
		}
		cmp.Focuses = append(cmp.Focuses, RecipeFocus{
			Title: s.Recipe.Title,
			Focus: fmt.Sprintf("Focuses on %s", focus),
		})
	}
	if len(selected) < 2 {
		return cmp
	}

	shared := make(map[string]int)
	for _, s := range selected {
		seen := make(map[string]struct{})
		for _, h := range s.TechniqueHighlights {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			shared[key]++
		}
	}
	for technique, count := range shared {
		if count == len(selected) {
			cmp.SharedTechniques = append(cmp.SharedTechniques, technique)
		}
	}
	sort.Strings(cmp.SharedTechniques)
	if len(cmp.SharedTechniques) > 3 {
		cmp.SharedTechniques = cmp.SharedTechniques[:3]
	}
	return cmp
}
