package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ksattari/souschef/internal/llm"
)

// Intent is a chat message parsed into structured request parameters.
type Intent struct {
	LearningGoal        string     `json:"learning_goal"`
	SkillLevel          SkillLevel `json:"skill_level"`
	DietaryRestrictions []string   `json:"dietary_restrictions"`
	Constraints         []string   `json:"constraints"`
}

// Request converts the intent into a pipeline request.
func (i Intent) Request() Request {
	return Request{
		LearningGoal:        i.LearningGoal,
		SkillLevel:          i.SkillLevel,
		DietaryRestrictions: i.DietaryRestrictions,
	}
}

// IntentExtractor parses free-form chat messages into Intent values and
// answers cooking follow-up questions.
type IntentExtractor struct {
	llm    llm.Provider
	logger *log.Logger
}

// NewIntentExtractor creates an intent extractor.
func NewIntentExtractor(provider llm.Provider) *IntentExtractor {
	return &IntentExtractor{
		llm:    provider,
		logger: log.New(log.Writer(), "[INTENT] ", log.LstdFlags),
	}
}

// Extract parses a chat message into an Intent. Skill inference follows
// simple cues: "first time" or "easy" reads as beginner, "advanced" or
// "professional" as advanced, everything else defaults to intermediate.
func (e *IntentExtractor) Extract(ctx context.Context, message string) (Intent, error) {
	prompt := fmt.Sprintf(`You are a culinary education assistant. Parse this cooking recipe request into structured data.

User message: %q

Extract:
1. "learning_goal" (required): the main technique, dish or skill, 2-4 words
2. "skill_level" (required): "beginner" for phrases like "first time", "never done", "easy"; "advanced" for "advanced", "master", "professional"; otherwise "intermediate"
3. "dietary_restrictions" (optional): e.g. "vegetarian", "vegan", "gluten-free"; empty list if none
4. "constraints" (optional): e.g. "quick", "minimal oil"; empty list if none

Return ONLY valid JSON:
{"learning_goal": "...", "skill_level": "...", "dietary_restrictions": [], "constraints": []}`, message)

	content, _, err := e.llm.Complete(ctx, llm.Request{
		Stage:       llm.StageIntent,
		Prompt:      prompt,
		JSONMode:    true,
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("intent extraction: %w", err)
	}

	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return Intent{}, fmt.Errorf("intent extraction: %w", err)
	}
	var parsed struct {
		LearningGoal        string   `json:"learning_goal"`
		SkillLevel          string   `json:"skill_level"`
		DietaryRestrictions []string `json:"dietary_restrictions"`
		Constraints         []string `json:"constraints"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Intent{}, fmt.Errorf("intent extraction: malformed JSON: %w", err)
	}
	if strings.TrimSpace(parsed.LearningGoal) == "" {
		return Intent{}, fmt.Errorf("intent extraction: missing learning_goal")
	}

	skill := SkillLevel(strings.ToLower(strings.TrimSpace(parsed.SkillLevel)))
	if !skill.Valid() {
		e.logger.Printf("invalid skill level %q, defaulting to intermediate", parsed.SkillLevel)
		skill = SkillIntermediate
	}

	return Intent{
		LearningGoal:        strings.TrimSpace(parsed.LearningGoal),
		SkillLevel:          skill,
		DietaryRestrictions: parsed.DietaryRestrictions,
		Constraints:         parsed.Constraints,
	}, nil
}

// AnswerFollowUp answers a cooking question conversationally, for chat
// turns that ask about technique rather than request new recipes.
func (e *IntentExtractor) AnswerFollowUp(ctx context.Context, message string) (string, error) {
	content, _, err := e.llm.Complete(ctx, llm.Request{
		Stage:       llm.StageIntent,
		System:      "You are a friendly culinary education assistant. Answer cooking questions concisely and helpfully. Keep responses to 2-3 sentences unless more detail is needed. Be warm and encouraging.",
		Prompt:      message,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("follow-up answer: %w", err)
	}
	return strings.TrimSpace(content), nil
}
