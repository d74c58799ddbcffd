package services

import (
	"strings"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// confirmationPrefixes are the affirmative openers that move a session from
// the clarification phase into active coaching. Matching is case-insensitive
// prefix matching on the trimmed message.
var confirmationPrefixes = []string{
	"yes",
	"yep",
	"yeah",
	"ready",
	"i'm ready",
	"im ready",
	"let's start",
	"lets start",
	"let's go",
	"lets go",
	"ok",
	"okay",
	"sure",
	"sounds good",
	"go ahead",
	"start",
}

// questionMarkers flag question-like messages that lack a question mark.
var questionMarkers = []string{
	"what",
	"how",
	"why",
	"which",
	"when",
	"where",
	"who",
	"can you",
	"could you",
	"should i",
	"should we",
	"do i",
	"do we",
	"does",
	"is it",
	"is there",
	"are there",
	"clarify",
}

// PhaseClassifier derives the session phase from the transcript and
// classifies individual messages by intent. The phase is never stored: it is
// recomputed from history each time, which makes the initial -> coaching
// transition monotonic and always consistent with the transcript.
type PhaseClassifier struct{}

// NewPhaseClassifier creates a new PhaseClassifier.
func NewPhaseClassifier() *PhaseClassifier {
	return &PhaseClassifier{}
}

// ClassifyPhase returns the session phase implied by the transcript: coaching
// once any user turn is a readiness confirmation, initial otherwise.
func (c *PhaseClassifier) ClassifyPhase(turns []*models.ConversationTurn) models.SessionPhase {
	for _, t := range turns {
		if t.Role == models.TurnRoleUser && c.IsConfirmation(t.Content) {
			return models.PhaseCoaching
		}
	}
	return models.PhaseInitial
}

// IsConfirmation reports whether the message opens with a readiness
// affirmative.
func (c *PhaseClassifier) IsConfirmation(message string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(message))
	if trimmed == "" {
		return false
	}
	for _, prefix := range confirmationPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// IsQuestion reports whether the message looks like a question: it contains
// a question mark or opens with an interrogative.
func (c *PhaseClassifier) IsQuestion(message string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(message))
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "?") {
		return true
	}
	for _, marker := range questionMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// ClassifyMessage tags an incoming message with its initial-phase intent.
// The prompt composer switches exhaustively on the result.
func (c *PhaseClassifier) ClassifyMessage(message string) models.MessageIntent {
	confirmation := c.IsConfirmation(message)
	question := c.IsQuestion(message)

	switch {
	case confirmation && question:
		return models.IntentConfirmationQuestion
	case confirmation:
		return models.IntentConfirmation
	case question:
		return models.IntentQuestion
	default:
		return models.IntentNeither
	}
}
