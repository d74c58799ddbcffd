package models

import (
	"time"

	"github.com/google/uuid"
)

// CompletenessAnalysis is the derived, never-persisted estimate of how
// thoroughly the diagram and discussion cover the rubric. Recomputed on
// demand from identical inputs it is always identical output.
type CompletenessAnalysis struct {
	IsComplete        bool     `json:"is_complete"`
	Confidence        int      `json:"confidence"`
	MissingComponents []string `json:"missing_components,omitempty"`
	MissingTopics     []string `json:"missing_topics,omitempty"`
	Reasoning         string   `json:"reasoning"`
}

// DesignEvaluation is the LLM's structured final verdict on a session.
type DesignEvaluation struct {
	Score                  int      `json:"score"`
	Summary                string   `json:"summary"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// Attempt statuses.
const (
	AttemptStatusPassed = "passed"
)

// AttemptSourceDesignSession marks attempts recorded by the design coach.
const AttemptSourceDesignSession = "design_session"

// ProblemAttempt records a pass on a problem. At most one passed attempt
// exists per (user, problem); the storage layer enforces this with a unique
// partial index rather than an application-level existence check.
type ProblemAttempt struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProblemID uuid.UUID `json:"problem_id"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
