package pipeline

import (
	"strings"
	"time"
)

// ScoringPolicy is the versioned numeric policy behind candidate ranking.
// It is injected into the Selector so the weights and tables can be tested
// and evolved independently of the orchestration.
type ScoringPolicy struct {
	Version string

	// TechniqueRelevance maps a learning-goal keyword to the techniques
	// that count toward learning value. Goals not in the map fall back to
	// matching the goal's own words.
	TechniqueRelevance map[string][]string

	// SkillMatrix scores (user skill, recipe difficulty) pairs. Two-level
	// mismatches are filtered before scoring and have no entry.
	SkillMatrix map[SkillLevel]map[Difficulty]float64

	// Restrictions maps a dietary restriction to the ingredient keywords
	// that disqualify a candidate outright.
	Restrictions map[string][]string

	LearningPointsPerMatch float64
	LearningMaxMatches     int

	RecencyMax        float64
	RecencyFullWindow time.Duration // full points inside this window
	RecencyZeroAfter  time.Duration // zero points past this age
	RecencyUnknown    float64       // missing date: unknown, not old

	RelevanceWeight float64

	DiversityBonus         float64
	DiversityMinTechniques int
}

// DefaultScoringPolicy returns the shipped v1 policy.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		Version: "v1",
		TechniqueRelevance: map[string][]string{
			"pan sauces":   {"deglazing", "emulsification", "reduction", "mounting butter"},
			"bread baking": {"kneading", "proofing", "scoring", "fermentation"},
			"knife skills": {"julienne", "brunoise", "chiffonade", "dicing"},
			"roasting":     {"searing", "basting", "temperature control", "resting"},
			"pasta":        {"dough making", "rolling", "shaping", "sauce pairing"},
		},
		SkillMatrix: map[SkillLevel]map[Difficulty]float64{
			SkillBeginner: {
				DifficultyBeginner:     25,
				DifficultyIntermediate: 8,
			},
			SkillIntermediate: {
				DifficultyBeginner:     5,
				DifficultyIntermediate: 25,
				DifficultyAdvanced:     12,
			},
			SkillAdvanced: {
				DifficultyIntermediate: 8,
				DifficultyAdvanced:     25,
			},
		},
		Restrictions: map[string][]string{
			"vegetarian":  {"chicken", "beef", "pork", "fish", "meat"},
			"vegan":       {"chicken", "beef", "pork", "fish", "meat", "egg", "dairy", "milk", "cheese", "butter"},
			"gluten-free": {"flour", "wheat", "bread", "pasta"},
		},
		LearningPointsPerMatch: 10,
		LearningMaxMatches:     3,
		RecencyMax:             20,
		RecencyFullWindow:      183 * 24 * time.Hour,
		RecencyZeroAfter:       608 * 24 * time.Hour,
		RecencyUnknown:         8,
		RelevanceWeight:        15,
		DiversityBonus:         10,
		DiversityMinTechniques: 3,
	}
}

// RelevantTechniques returns the techniques that count toward learning
// value for a goal.
func (p ScoringPolicy) RelevantTechniques(goal string) []string {
	goal = strings.ToLower(strings.TrimSpace(goal))
	if ts, ok := p.TechniqueRelevance[goal]; ok {
		return ts
	}
	return strings.Fields(goal)
}

// ForbiddenKeywords collects the disallowed-ingredient keywords for a set
// of dietary restrictions. Unknown restrictions contribute nothing.
func (p ScoringPolicy) ForbiddenKeywords(restrictions []string) []string {
	var out []string
	for _, r := range restrictions {
		out = append(out, p.Restrictions[strings.ToLower(strings.TrimSpace(r))]...)
	}
	return out
}

// Score computes the weighted total for one candidate. Max 100 under the
// default policy: learning 30, skill 25, recency 20, relevance 15,
// diversity 10.
func (p ScoringPolicy) Score(r RecipeRecord, req Request, now time.Time) float64 {
	score := p.learningValue(r, req.LearningGoal)
	score += p.skillScore(req.SkillLevel, r.Difficulty)
	score += p.recencyScore(r.PublishedDate, now)
	score += r.RelevanceScore * p.RelevanceWeight
	if len(r.Techniques) >= p.DiversityMinTechniques {
		score += p.DiversityBonus
	}
	return score
}

func (p ScoringPolicy) learningValue(r RecipeRecord, goal string) float64 {
	relevant := p.RelevantTechniques(goal)
	matches := 0
	for _, tech := range relevant {
		tech = strings.ToLower(tech)
		for _, rt := range r.Techniques {
			if strings.Contains(strings.ToLower(rt), tech) {
				matches++
				break
			}
		}
	}
	if matches > p.LearningMaxMatches {
		matches = p.LearningMaxMatches
	}
	return float64(matches) * p.LearningPointsPerMatch
}

func (p ScoringPolicy) skillScore(skill SkillLevel, difficulty Difficulty) float64 {
	if row, ok := p.SkillMatrix[skill]; ok {
		if v, ok := row[difficulty]; ok {
			return v
		}
	}
	return 0
}

func (p ScoringPolicy) recencyScore(published *time.Time, now time.Time) float64 {
	if published == nil || published.IsZero() {
		return p.RecencyUnknown
	}
	age := now.Sub(*published)
	if age <= p.RecencyFullWindow {
		return p.RecencyMax
	}
	if age >= p.RecencyZeroAfter {
		return 0
	}
	span := p.RecencyZeroAfter - p.RecencyFullWindow
	return p.RecencyMax * float64(p.RecencyZeroAfter-age) / float64(span)
}
