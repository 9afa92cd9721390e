package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ksattari/souschef/internal/llm"
)

func newTestSelector(provider *fakeLLM) *Selector {
	s := NewSelector(DefaultScoringPolicy(), provider, 3, 0.3)
	s.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSelectEmptyAndSingleCandidate(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	var diag Diagnostics

	if got := s.Select(context.Background(), nil, req, &diag); len(got) != 0 {
		t.Fatalf("expected no selection from zero candidates, got %d", len(got))
	}

	one := []RecipeRecord{mkRecipe("lemon butter pan sauce", "https://a.example/1")}
	got := s.Select(context.Background(), one, req, &diag)
	if len(got) != 1 {
		t.Fatalf("expected 1 selection from 1 candidate, got %d", len(got))
	}
	if got[0].Reasoning == "" {
		t.Fatalf("reasoning fallback should never be empty")
	}
}

func TestSelectCapAndUniqueURLs(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	var diag Diagnostics

	candidates := []RecipeRecord{
		mkRecipe("lemon butter pan sauce chicken", "https://a.example/1"),
		mkRecipe("mushroom cream pan sauce steak", "https://a.example/2"),
		mkRecipe("balsamic pan sauce pork", "https://a.example/3"),
		mkRecipe("white wine herb pan sauce fish", "https://a.example/4"),
		mkRecipe("red wine reduction sauce beef", "https://a.example/5"),
	}
	got := s.Select(context.Background(), candidates, req, &diag)
	if len(got) != 3 {
		t.Fatalf("expected top-3, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, g := range got {
		if seen[g.Recipe.SourceURL] {
			t.Fatalf("duplicate source URL %s in selection", g.Recipe.SourceURL)
		}
		seen[g.Recipe.SourceURL] = true
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("selection not sorted by score: %v then %v", got[i-1].Score, got[i].Score)
		}
	}
}

func TestSelectDietaryHardFilter(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{
		LearningGoal:        "pan sauces",
		SkillLevel:          SkillIntermediate,
		DietaryRestrictions: []string{"vegetarian"},
	}
	var diag Diagnostics

	meaty := mkRecipe("chicken pan sauce", "https://a.example/meat", func(r *RecipeRecord) {
		r.Ingredients = []string{"chicken thighs", "butter"}
		r.RelevanceScore = 1.0
		r.Techniques = []string{"deglazing", "emulsification", "reduction"}
	})
	veggie := mkRecipe("mushroom pan sauce", "https://a.example/veg", func(r *RecipeRecord) {
		r.Ingredients = []string{"mushrooms", "butter"}
		r.RelevanceScore = 0.1
	})
	got := s.Select(context.Background(), []RecipeRecord{meaty, veggie}, req, &diag)
	for _, g := range got {
		if g.Recipe.SourceURL == "https://a.example/meat" {
			t.Fatalf("dietary filter must exclude meat recipe regardless of score")
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected only the vegetarian candidate, got %d", len(got))
	}
}

func TestSelectSkillMismatchFilter(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{LearningGoal: "bread baking", SkillLevel: SkillBeginner}
	var diag Diagnostics

	advanced := mkRecipe("laminated croissant dough", "https://a.example/adv", func(r *RecipeRecord) {
		r.Difficulty = DifficultyAdvanced
	})
	easy := mkRecipe("basic sandwich loaf", "https://a.example/easy", func(r *RecipeRecord) {
		r.Difficulty = DifficultyBeginner
	})
	got := s.Select(context.Background(), []RecipeRecord{advanced, easy}, req, &diag)
	if len(got) != 1 || got[0].Recipe.SourceURL != "https://a.example/easy" {
		t.Fatalf("two-level skill mismatch must be filtered, got %+v", got)
	}
}

func TestSelectExcludedIdentifiers(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{
		LearningGoal:        "pasta",
		SkillLevel:          SkillIntermediate,
		ExcludedIdentifiers: []string{"https://a.example/seen"},
	}
	var diag Diagnostics

	got := s.Select(context.Background(), []RecipeRecord{
		mkRecipe("fresh egg pasta", "https://a.example/seen"),
		mkRecipe("ricotta gnocchi", "https://a.example/new"),
	}, req, &diag)
	if len(got) != 1 || got[0].Recipe.SourceURL != "https://a.example/new" {
		t.Fatalf("excluded identifier must not reappear, got %+v", got)
	}
}

func TestSelectDiversitySkipsSimilarTitles(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	var diag Diagnostics

	// Two near-identical titles plus distinct dishes; the near-duplicate
	// must lose its slot to a distinct dish.
	candidates := []RecipeRecord{
		mkRecipe("red wine pan sauce steak", "https://a.example/1", func(r *RecipeRecord) { r.RelevanceScore = 0.9 }),
		mkRecipe("red wine pan sauce chicken", "https://a.example/2", func(r *RecipeRecord) { r.RelevanceScore = 0.8 }),
		mkRecipe("lemon butter fish", "https://a.example/3", func(r *RecipeRecord) { r.RelevanceScore = 0.5 }),
		mkRecipe("mushroom cream gnocchi", "https://a.example/4", func(r *RecipeRecord) { r.RelevanceScore = 0.4 }),
	}
	got := s.Select(context.Background(), candidates, req, &diag)
	if len(got) != 3 {
		t.Fatalf("expected 3 selections, got %d", len(got))
	}
	urls := map[string]bool{}
	for _, g := range got {
		urls[g.Recipe.SourceURL] = true
	}
	if urls["https://a.example/2"] {
		t.Fatalf("near-duplicate title should be skipped while distinct dishes remain")
	}
	if !urls["https://a.example/3"] || !urls["https://a.example/4"] {
		t.Fatalf("distinct dishes should fill the remaining slots, got %v", urls)
	}
}

func TestSelectBackfillWhenAllSimilar(t *testing.T) {
	s := newTestSelector(failingLLM())
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	var diag Diagnostics

	candidates := []RecipeRecord{
		mkRecipe("red wine pan sauce", "https://a.example/1", func(r *RecipeRecord) { r.RelevanceScore = 0.9 }),
		mkRecipe("red wine pan sauce steak", "https://a.example/2", func(r *RecipeRecord) { r.RelevanceScore = 0.8 }),
		mkRecipe("red wine pan sauce chicken", "https://a.example/3", func(r *RecipeRecord) { r.RelevanceScore = 0.7 }),
	}
	got := s.Select(context.Background(), candidates, req, &diag)
	if len(got) != 3 {
		t.Fatalf("backfill must never return fewer than min(topK, available), got %d", len(got))
	}
}

func TestReasoningFromLLM(t *testing.T) {
	provider := &fakeLLM{handle: func(req llm.Request) (string, error) {
		return `{"reasoning": "Great for practicing emulsification.", "technique_highlights": ["deglazing", "mounting butter"]}`, nil
	}}
	s := newTestSelector(provider)
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	var diag Diagnostics

	got := s.Select(context.Background(), []RecipeRecord{mkRecipe("steak pan sauce", "https://a.example/1")}, req, &diag)
	if len(got) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(got))
	}
	if !strings.Contains(got[0].Reasoning, "emulsification") {
		t.Fatalf("expected LLM reasoning, got %q", got[0].Reasoning)
	}
	if len(got[0].TechniqueHighlights) != 2 {
		t.Fatalf("expected 2 highlights, got %v", got[0].TechniqueHighlights)
	}
}

func TestTitleSimilarity(t *testing.T) {
	if sim := titleSimilarity("red wine pan sauce", "red wine reduction"); sim < 0.3 {
		t.Fatalf("expected high similarity for shared key words, got %v", sim)
	}
	if sim := titleSimilarity("lemon butter fish", "mushroom cream gnocchi"); sim != 0 {
		t.Fatalf("expected zero similarity for distinct dishes, got %v", sim)
	}
	// Stopwords alone should not create similarity.
	if sim := titleSimilarity("how to make the best easy recipe", "simple and easy recipe"); sim != 0 {
		t.Fatalf("stopwords should be ignored, got %v", sim)
	}
}

func TestBuildComparison(t *testing.T) {
	selected := []ScoredRecipe{
		{Recipe: mkRecipe("steak pan sauce", "u1"), TechniqueHighlights: []string{"deglazing", "reduction"}},
		{Recipe: mkRecipe("chicken piccata", "u2"), TechniqueHighlights: []string{"deglazing", "dredging"}},
	}
	cmp := BuildComparison(selected)
	if len(cmp.Focuses) != 2 {
		t.Fatalf("expected a focus per pick, got %d", len(cmp.Focuses))
	}
	if len(cmp.SharedTechniques) != 1 || cmp.SharedTechniques[0] != "deglazing" {
		t.Fatalf("expected shared technique deglazing, got %v", cmp.SharedTechniques)
	}

	single := BuildComparison(selected[:1])
	if len(single.SharedTechniques) != 0 {
		t.Fatalf("single pick has no shared techniques, got %v", single.SharedTechniques)
	}
}
