// Package pipeline implements the recipe-recommendation flow: query
// planning, retrieval with LLM extraction, scoring and selection, and
// nutrition enrichment, sequenced by a bounded-retry orchestrator.
package pipeline

import (
	"fmt"
	"time"
)

// SkillLevel is the user's self-reported cooking level.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// Ordinal places skill levels on the scale used for mismatch filtering.
func (s SkillLevel) Ordinal() int {
	switch s {
	case SkillBeginner:
		return 0
	case SkillIntermediate:
		return 1
	case SkillAdvanced:
		return 2
	}
	return 1
}

// Valid reports whether s is one of the three known levels.
func (s SkillLevel) Valid() bool {
	switch s {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
		return true
	}
	return false
}

// Difficulty is a recipe's difficulty on the same three-level scale.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Ordinal() int { return SkillLevel(d).Ordinal() }

// NormalizeDifficulty maps arbitrary extracted text onto the difficulty
// scale, defaulting to intermediate.
func NormalizeDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return Difficulty(s)
	}
	switch s {
	case "easy", "novice":
		return DifficultyBeginner
	case "hard", "expert", "difficult":
		return DifficultyAdvanced
	}
	return DifficultyIntermediate
}

// Request is the immutable input to one pipeline run.
type Request struct {
	LearningGoal        string     `json:"learning_goal"`
	SkillLevel          SkillLevel `json:"skill_level"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty"`
	ExcludedIdentifiers []string   `json:"excluded_identifiers,omitempty"`
}

// Validate checks the request shape the HTTP layer accepts.
func (r Request) Validate() error {
	goal := r.LearningGoal
	if len(goal) < 3 || len(goal) > 200 {
		return fmt.Errorf("learning_goal must be 3-200 characters")
	}
	blank := true
	for _, c := range goal {
		if c != ' ' && c != '\t' && c != '\n' {
			blank = false
			break
		}
	}
	if blank {
		return fmt.Errorf("learning_goal cannot be blank")
	}
	if !r.SkillLevel.Valid() {
		return fmt.Errorf("skill_level must be beginner, intermediate or advanced")
	}
	if len(r.DietaryRestrictions) > 10 {
		return fmt.Errorf("at most 10 dietary_restrictions allowed")
	}
	return nil
}

// RecipeRecord is one structured recipe candidate extracted from a search
// result. Immutable after the retriever builds it.
type RecipeRecord struct {
	Title          string     `json:"title"`
	SourceURL      string     `json:"source_url"`
	SourceName     string     `json:"source_name"`
	Author         string     `json:"author"`
	PublishedDate  *time.Time `json:"published_date,omitempty"`
	Difficulty     Difficulty `json:"difficulty"`
	TimeEstimate   string     `json:"time_estimate"`
	Techniques     []string   `json:"techniques"`
	Ingredients    []string   `json:"ingredients"`
	Steps          []string   `json:"steps"`
	RelevanceScore float64    `json:"relevance_score"`
}

// ScoredRecipe wraps a selected recipe with its score and explanation.
type ScoredRecipe struct {
	Recipe              RecipeRecord       `json:"recipe"`
	Score               float64            `json:"score"`
	Reasoning           string             `json:"reasoning"`
	TechniqueHighlights []string           `json:"technique_highlights"`
	Nutrition           *NutritionEstimate `json:"nutrition,omitempty"`
}

// NutritionEstimate is an LLM guess at per-serving nutrition. Disclaimer is
// always the fixed constant; these numbers are never authoritative.
type NutritionEstimate struct {
	Calories   *float64 `json:"calories"`
	ProteinG   *float64 `json:"protein_g"`
	CarbsG     *float64 `json:"carbs_g"`
	FatG       *float64 `json:"fat_g"`
	FiberG     *float64 `json:"fiber_g"`
	SodiumMg   *float64 `json:"sodium_mg"`
	Servings   int      `json:"servings"`
	Disclaimer string   `json:"disclaimer"`
}

// Strategy signals to the planner whether to widen terms on retry.
type Strategy string

const (
	StrategyInitial   Strategy = "initial"
	StrategyBroadened Strategy = "broadened"
)

// Stage names the orchestrator's position in the flow.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageRetrieving Stage = "retrieving"
	StageSelecting  Stage = "selecting"
	StageEnriching  Stage = "enriching"
	StageDone       Stage = "done"
)

// Diagnostics accumulates observability counters across a run. Stage-local
// failures land in Errors whether or not they were recoverable.
type Diagnostics struct {
	SearchCallCount int      `json:"search_call_count"`
	LLMCallCount    int      `json:"llm_call_count"`
	ErrorMessages   []string `json:"error_messages,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// AddError records a stage-local failure.
func (d *Diagnostics) AddError(format string, args ...any) {
	d.ErrorMessages = append(d.ErrorMessages, fmt.Sprintf(format, args...))
}

// AddNote records a non-error observation, like a retry decision.
func (d *Diagnostics) AddNote(format string, args ...any) {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
}

// OrchestrationState is the single mutable record threaded through the
// stages of one run. The orchestrator is its sole owner.
type OrchestrationState struct {
	Request          Request
	SearchQueries    []string
	SearchStrategy   Strategy
	CandidateRecipes []RecipeRecord
	SelectedRecipes  []ScoredRecipe
	RetryCount       int
	Stage            Stage
	Diagnostics      Diagnostics
}

// NewState creates the zeroed state for one request.
func NewState(req Request) *OrchestrationState {
	return &OrchestrationState{
		Request:        req,
		SearchStrategy: StrategyInitial,
		Stage:          StagePlanning,
	}
}

// RecipeFocus is the one-line focus label for a selected recipe.
type RecipeFocus struct {
	Title string `json:"title"`
	Focus string `json:"focus"`
}

// Comparison is the templated summary across the selected recipes.
type Comparison struct {
	Focuses          []RecipeFocus `json:"focuses"`
	SharedTechniques []string      `json:"shared_techniques"`
}

// Response is the terminal output of a successful run. Zero selected
// recipes is a normal response, not an error.
type Response struct {
	RequestID      string         `json:"request_id"`
	Recipes        []ScoredRecipe `json:"recipes"`
	Comparison     Comparison     `json:"comparison"`
	Diagnostics    Diagnostics    `json:"diagnostics"`
	RetryCount     int            `json:"retry_count"`
	ProcessingTime time.Duration  `json:"-"`
}
