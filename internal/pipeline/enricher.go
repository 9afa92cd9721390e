package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/ksattari/souschef/internal/llm"
)

// NutritionDisclaimer is forced onto every estimate regardless of what the
// model returns. These are LLM guesses, not a nutrition database.
const NutritionDisclaimer = "Estimated values - actual nutrition may vary"

const defaultServings = 4

// Enricher fills per-serving nutrition estimates into the selected
// recipes. A failure for one recipe leaves its nutrition nil; the batch
// never aborts.
type Enricher struct {
	llm    llm.Provider
	logger *log.Logger
}

// NewEnricher creates a nutrition enricher.
func NewEnricher(provider llm.Provider) *Enricher {
	return &Enricher{
		llm:    provider,
		logger: log.New(log.Writer(), "[ENRICHER] ", log.LstdFlags),
	}
}

// Enrich mutates selected in place, attaching a NutritionEstimate to each
// recipe it can estimate.
func (e *Enricher) Enrich(ctx context.Context, selected []ScoredRecipe, diag *Diagnostics) {
	for i := range selected {
		servings := estimateServings(selected[i].Recipe)
		diag.LLMCallCount++
		nutrition, err := e.estimate(ctx, selected[i].Recipe, servings)
		if err != nil {
			diag.AddError("nutrition estimate failed for %q: %v", selected[i].Recipe.Title, err)
			continue
		}
		selected[i].Nutrition = nutrition
	}
}

type nutritionResponse struct {
	Calories *float64 `json:"calories"`
	ProteinG *float64 `json:"protein_g"`
	CarbsG   *float64 `json:"carbs_g"`
	FatG     *float64 `json:"fat_g"`
	FiberG   *float64 `json:"fiber_g"`
	SodiumMg *float64 `json:"sodium_mg"`
}

func (e *Enricher) estimate(ctx context.Context, recipe RecipeRecord, servings int) (*NutritionEstimate, error) {
	prompt := fmt.Sprintf(`Estimate per-serving nutrition for this recipe.

Title: %s
Estimated servings: %d
Ingredients:
%s

Return ONLY valid JSON with numbers or null:
{"calories": 0, "protein_g": 0, "carbs_g": 0, "fat_g": 0, "fiber_g": 0, "sodium_mg": 0}`,
		recipe.Title, servings, strings.Join(recipe.Ingredients, "\n"))

	content, _, err := e.llm.Complete(ctx, llm.Request{
		Stage:     llm.StageNutrition,
		Prompt:    prompt,
		JSONMode:  true,
		MaxTokens: 200,
	})
	if err != nil {
		return nil, err
	}
	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}
	var parsed nutritionResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed nutrition JSON: %w", err)
	}

	return &NutritionEstimate{
		Calories:   parsed.Calories,
		ProteinG:   parsed.ProteinG,
		CarbsG:     parsed.CarbsG,
		FatG:       parsed.FatG,
		FiberG:     parsed.FiberG,
		SodiumMg:   parsed.SodiumMg,
		Servings:   servings,
		Disclaimer: NutritionDisclaimer,
	}, nil
}

var servingsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)serves?\s+(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s+servings?`),
	regexp.MustCompile(`(?i)makes\s+(\d+)\s+portions?`),
}

// estimateServings scans the recipe's own text for a serving count,
// defaulting to 4.
func estimateServings(recipe RecipeRecord) int {
	var text strings.Builder
	for _, s := range recipe.Steps {
		text.WriteString(s)
		text.WriteByte(' ')
	}
	for _, ing := range recipe.Ingredients {
		text.WriteString(ing)
		text.WriteByte(' ')
	}
	haystack := text.String()

	for _, pat := range servingsPatterns {
		if m := pat.FindStringSubmatch(haystack); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 100 {
				return n
			}
		}
	}
	return defaultServings
}
