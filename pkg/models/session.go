package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Turn Roles
// ============================================================================

// TurnRole represents the author of a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// IsValidTurnRole checks if the given role is valid.
func IsValidTurnRole(r TurnRole) bool {
	return r == TurnRoleUser || r == TurnRoleAssistant
}

// ============================================================================
// Session
// ============================================================================

// DesignSession is one user's run at a problem's design exercise.
// A session is active until the final evaluation completes it; completion
// happens exactly once and records the score and feedback.
type DesignSession struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ProblemID   uuid.UUID  `json:"problem_id"`
	IsActive    bool       `json:"is_active"`
	Score       *int       `json:"score,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ConversationTurn is one append-only transcript entry. Turns are strictly
// ordered by their sequence number and are the authoritative transcript;
// clients rehydrate from them, never the reverse.
type ConversationTurn struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// Phase & Message Intent
// ============================================================================

// SessionPhase is the two-valued conversational mode of a session. It is
// recomputed from the transcript on every request rather than stored, so it
// can never drift from the history: once any user turn confirms readiness
// the session is permanently in the coaching phase.
type SessionPhase string

const (
	// PhaseInitial covers requirement clarification before the user confirms
	// they are ready to design.
	PhaseInitial SessionPhase = "initial"
	// PhaseCoaching is active design coaching against the canvas.
	PhaseCoaching SessionPhase = "coaching"
)

// MessageIntent classifies a single incoming user message while the session
// is in the initial phase. The prompt composer switches exhaustively on it.
type MessageIntent string

const (
	IntentConfirmationQuestion MessageIntent = "confirmation_question"
	IntentConfirmation         MessageIntent = "confirmation"
	IntentQuestion             MessageIntent = "question"
	IntentNeither              MessageIntent = "neither"
)

// ============================================================================
// Orchestrator Results
// ============================================================================

// StartResult is the outcome of starting or resuming a session.
type StartResult struct {
	Session *DesignSession `json:"session"`
	// Resumed is true when an existing session with history was returned;
	// no welcome message is emitted in that case.
	Resumed bool `json:"resumed"`
	// Message is the synthesized welcome, empty when resuming.
	Message string `json:"message,omitempty"`
	// Board is the persisted board state for client rehydration.
	Board *BoardState `json:"board,omitempty"`
}

// MessageResult is the outcome of a coach_message exchange.
type MessageResult struct {
	Message      string                `json:"message"`
	Completeness *CompletenessAnalysis `json:"completeness,omitempty"`
}

// ReactionResult is the outcome of reactive board commentary. Message is
// empty when the reaction was skipped (initial phase or degraded LLM call).
type ReactionResult struct {
	Message      string                `json:"message,omitempty"`
	Completeness *CompletenessAnalysis `json:"completeness,omitempty"`
}

// EvaluationResult is the outcome of final evaluation.
type EvaluationResult struct {
	Evaluation *DesignEvaluation `json:"evaluation"`
	Passed     bool              `json:"passed"`
}
