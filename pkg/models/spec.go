package models

import (
	"strings"

	"github.com/google/uuid"
)

// Difficulty is a problem's tier; it changes scoring strictness.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty normalizes a stored difficulty string, defaulting to Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Problem is a catalog entry users practice against.
type Problem struct {
	ID         uuid.UUID  `json:"id"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
}

// Rubric drives completeness scoring for one problem.
type Rubric struct {
	// MustHave terms should appear as node types or labels on the canvas.
	MustHave []string `json:"must_have"`
	// ExpectedTopics should come up somewhere in the diagram or discussion.
	ExpectedTopics []string `json:"expected_topics"`
}

// DesignSpec is the read-only per-problem exercise definition: the brief
// shown to the user, the starter canvas, and the scoring rubric. Title and
// Difficulty are denormalized from the owning problem on read.
type DesignSpec struct {
	ProblemID                 uuid.UUID         `json:"problem_id"`
	Title                     string            `json:"title"`
	Difficulty                Difficulty        `json:"difficulty"`
	Summary                   string            `json:"summary"`
	FunctionalRequirements    []string          `json:"functional_requirements"`
	NonfunctionalRequirements []string          `json:"nonfunctional_requirements"`
	ScaleEstimates            map[string]string `json:"scale_estimates,omitempty"`
	StarterCanvas             BoardState        `json:"starter_canvas"`
	Rubric                    Rubric            `json:"rubric"`
}
