package pipeline

import (
	"math"
	"testing"
	"time"
)

func TestScoreRelevanceMonotonic(t *testing.T) {
	policy := DefaultScoringPolicy()
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	now := time.Now()

	low := mkRecipe("steak pan sauce", "https://a.example/1", func(r *RecipeRecord) { r.RelevanceScore = 0.5 })
	high := mkRecipe("steak pan sauce", "https://a.example/1", func(r *RecipeRecord) { r.RelevanceScore = 0.9 })

	diff := policy.Score(high, req, now) - policy.Score(low, req, now)
	if math.Abs(diff-6.0) > 1e-9 {
		t.Fatalf("expected relevance 0.5->0.9 to add exactly 6 points, got %v", diff)
	}
}

func TestScoreLearningValueCapped(t *testing.T) {
	policy := DefaultScoringPolicy()
	req := Request{LearningGoal: "pan sauces", SkillLevel: SkillIntermediate}
	now := time.Now()

	all := mkRecipe("sauce", "u", func(r *RecipeRecord) {
		r.Techniques = []string{"deglazing", "emulsification", "reduction", "mounting butter"}
		r.RelevanceScore = 0
	})
	three := mkRecipe("sauce", "u", func(r *RecipeRecord) {
		r.Techniques = []string{"deglazing", "emulsification", "reduction"}
		r.RelevanceScore = 0
	})
	if policy.Score(all, req, now) != policy.Score(three, req, now) {
		t.Fatalf("learning value should cap at 3 matches")
	}
}

func TestScoreSkillMatrix(t *testing.T) {
	policy := DefaultScoringPolicy()
	cases := []struct {
		skill      SkillLevel
		difficulty Difficulty
		want       float64
	}{
		{SkillBeginner, DifficultyBeginner, 25},
		{SkillBeginner, DifficultyIntermediate, 8},
		{SkillIntermediate, DifficultyBeginner, 5},
		{SkillIntermediate, DifficultyAdvanced, 12},
		{SkillAdvanced, DifficultyAdvanced, 25},
	}
	for _, c := range cases {
		got := policy.skillScore(c.skill, c.difficulty)
		if got != c.want {
			t.Fatalf("skillScore(%s,%s) = %v, want %v", c.skill, c.difficulty, got, c.want)
		}
	}
}

func TestRecencyScore(t *testing.T) {
	policy := DefaultScoringPolicy()
	now := time.Now()

	if got := policy.recencyScore(nil, now); got != policy.RecencyUnknown {
		t.Fatalf("unknown date should score the fixed default, got %v", got)
	}
	recent := now.Add(-30 * 24 * time.Hour)
	if got := policy.recencyScore(&recent, now); got != policy.RecencyMax {
		t.Fatalf("recent date should score max, got %v", got)
	}
	ancient := now.Add(-3 * 365 * 24 * time.Hour)
	if got := policy.recencyScore(&ancient, now); got != 0 {
		t.Fatalf("old date should score 0, got %v", got)
	}
	mid := now.Add(-400 * 24 * time.Hour)
	got := policy.recencyScore(&mid, now)
	if got <= 0 || got >= policy.RecencyMax {
		t.Fatalf("mid-age date should score between 0 and max, got %v", got)
	}
}

func TestForbiddenKeywords(t *testing.T) {
	policy := DefaultScoringPolicy()
	words := policy.ForbiddenKeywords([]string{"Vegetarian"})
	found := false
	for _, w := range words {
		if w == "chicken" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vegetarian should forbid chicken, got %v", words)
	}
	if got := policy.ForbiddenKeywords([]string{"pescatarian"}); len(got) != 0 {
		t.Fatalf("unknown restriction should contribute nothing, got %v", got)
	}
}

func TestDiversityBonusFlat(t *testing.T) {
	policy := DefaultScoringPolicy()
	req := Request{LearningGoal: "unrelated goal", SkillLevel: SkillIntermediate}
	now := time.Now()

	two := mkRecipe("dish", "u", func(r *RecipeRecord) {
		r.Techniques = []string{"x", "y"}
		r.RelevanceScore = 0
	})
	three := mkRecipe("dish", "u", func(r *RecipeRecord) {
		r.Techniques = []string{"x", "y", "z"}
		r.RelevanceScore = 0
	})
	diff := policy.Score(three, req, now) - policy.Score(two, req, now)
	if diff != policy.DiversityBonus {
		t.Fatalf("expected flat %v diversity bonus at 3 techniques, got %v", policy.DiversityBonus, diff)
	}
}
