// Package prompts builds the message lists sent to the coaching LLM. Every
// composer method returns the complete request; callers never append to it.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prepstack-ai/prepstack-engine/pkg/llm"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// ConversationWindow caps how many transcript turns are replayed to the
// provider, oldest dropped first.
const ConversationWindow = 10

// Composer assembles coaching prompts. It is stateless; all inputs arrive
// per call.
type Composer struct {
	window int
}

// NewComposer creates a Composer with the default conversation window.
func NewComposer() *Composer {
	return &Composer{window: ConversationWindow}
}

// BaseSystemPrompt builds the system prompt shared by every coaching call:
// the problem brief plus the rules that keep the model coaching instead of
// designing.
func (c *Composer) BaseSystemPrompt(spec *models.DesignSpec) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are an experienced system design interview coach. The candidate is working on: %q (%s difficulty).\n\n", spec.Title, spec.Difficulty))

	if spec.Summary != "" {
		sb.WriteString("Problem summary:\n")
		sb.WriteString(spec.Summary)
		sb.WriteString("\n\n")
	}

	if len(spec.FunctionalRequirements) > 0 {
		sb.WriteString("Functional requirements:\n")
		for _, r := range spec.FunctionalRequirements {
			sb.WriteString("- " + r + "\n")
		}
		sb.WriteString("\n")
	}

	if len(spec.NonfunctionalRequirements) > 0 {
		sb.WriteString("Non-functional requirements:\n")
		for _, r := range spec.NonfunctionalRequirements {
			sb.WriteString("- " + r + "\n")
		}
		sb.WriteString("\n")
	}

	if len(spec.ScaleEstimates) > 0 {
		sb.WriteString("Scale estimates:\n")
		for k, v := range spec.ScaleEstimates {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, v))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Coaching rules:\n")
	sb.WriteString("- Guide with questions; NEVER design the system for the candidate.\n")
	sb.WriteString("- Never name the specific component, technology, or pattern they should add next.\n")
	sb.WriteString("- Keep replies short: two or three sentences, then at most one question.\n")
	sb.WriteString("- Acknowledge good decisions briefly before probing further.\n")
	sb.WriteString("- Stay on this problem; politely decline unrelated topics.\n\n")

	sb.WriteString("Example question patterns:\n")
	sb.WriteString("- \"What happens to this component when traffic grows 10x?\"\n")
	sb.WriteString("- \"Where does that data live, and who reads it most often?\"\n")
	sb.WriteString("- \"What is the failure mode if this dependency goes down?\"\n")

	return sb.String()
}

// ComposeWelcome builds the request that synthesizes the session's opening
// message. Callers fall back to a static welcome if the call degrades.
func (c *Composer) ComposeWelcome(spec *models.DesignSpec) *llm.CompletionRequest {
	var sb strings.Builder
	sb.WriteString("Greet the candidate and introduce the exercise in at most four sentences. ")
	sb.WriteString("Restate the problem in one sentence, invite clarifying questions about requirements or scale, ")
	sb.WriteString("and ask them to say when they are ready to start designing. Do not reveal any part of a solution.")

	return &llm.CompletionRequest{
		System:   c.BaseSystemPrompt(spec),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
	}
}

// ComposeInitial builds the request for a user message received before the
// candidate has confirmed readiness. The instruction varies by intent so the
// model cannot drift into designing during clarification.
func (c *Composer) ComposeInitial(spec *models.DesignSpec, turns []*models.ConversationTurn, message string, intent models.MessageIntent) *llm.CompletionRequest {
	var instruction string
	switch intent {
	case models.IntentConfirmationQuestion:
		instruction = "The candidate is ready to start designing but also asked a question. " +
			"Answer the question factually in one or two sentences without suggesting any design decision, " +
			"then tell them to begin placing components on the canvas."
	case models.IntentConfirmation:
		instruction = "The candidate confirmed they are ready to design. " +
			"Acknowledge in one sentence and tell them to start placing components on the canvas. Do not suggest what to place."
	case models.IntentQuestion:
		instruction = "The candidate asked a clarifying question about the problem. " +
			"Answer it factually from the requirements in one or two sentences. " +
			"Do not suggest components, technologies, or design decisions. " +
			"Close by reminding them to say when they are ready to start."
	default:
		instruction = "The candidate sent a message that is neither a question nor a readiness confirmation. " +
			"Respond briefly and nudge them to either ask clarifying questions about the requirements " +
			"or confirm they are ready to start designing."
	}

	system := c.BaseSystemPrompt(spec) + "\n\nCurrent phase: requirement clarification.\n" + instruction

	return &llm.CompletionRequest{
		System:   system,
		Messages: c.conversationWindow(turns, message),
	}
}

// ComposeCoaching builds the request for a user message during active
// coaching, with the current canvas injected as text.
func (c *Composer) ComposeCoaching(spec *models.DesignSpec, turns []*models.ConversationTurn, message, boardDescription string) *llm.CompletionRequest {
	var sb strings.Builder
	sb.WriteString(c.BaseSystemPrompt(spec))
	sb.WriteString("\n\nCurrent phase: active coaching.\n\n")
	sb.WriteString("Current state of the candidate's design canvas:\n")
	sb.WriteString(boardDescription)
	sb.WriteString("\nRespond in Socratic style: one short comment on their message or canvas, ")
	sb.WriteString("then one probing question. Never lay out the full design or the next component to add.")

	return &llm.CompletionRequest{
		System:   sb.String(),
		Messages: c.conversationWindow(turns, message),
	}
}

// ComposeReactive builds the short commentary request fired after a board
// edit during the coaching phase. There is no new user message; the canvas
// change itself is the thing being reacted to.
func (c *Composer) ComposeReactive(spec *models.DesignSpec, turns []*models.ConversationTurn, boardDescription string) *llm.CompletionRequest {
	var sb strings.Builder
	sb.WriteString(c.BaseSystemPrompt(spec))
	sb.WriteString("\n\nCurrent phase: active coaching.\n\n")
	sb.WriteString("The candidate just edited the canvas. Its current state:\n")
	sb.WriteString(boardDescription)
	sb.WriteString("\nReact in one or two sentences to the most interesting aspect of the change, ")
	sb.WriteString("then ask one probing question about it. Do not summarize the whole canvas ")
	sb.WriteString("and do not suggest what to add next.")

	prompt := "I just updated my design canvas."

	return &llm.CompletionRequest{
		System:   sb.String(),
		Messages: c.conversationWindow(turns, prompt),
	}
}

// ComposeEvaluation builds the final scoring request. The board and rubric
// go in as JSON and the reply must be a bare JSON object with fixed keys.
func (c *Composer) ComposeEvaluation(spec *models.DesignSpec, board *models.BoardState, turns []*models.ConversationTurn) (*llm.CompletionRequest, error) {
	boardJSON, err := json.Marshal(board)
	if err != nil {
		return nil, fmt.Errorf("marshal board state: %w", err)
	}
	rubricJSON, err := json.Marshal(spec.Rubric)
	if err != nil {
		return nil, fmt.Errorf("marshal rubric: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are grading a system design exercise: %q (%s difficulty).\n\n", spec.Title, spec.Difficulty))
	sb.WriteString("Final design canvas (JSON):\n")
	sb.Write(boardJSON)
	sb.WriteString("\n\nScoring rubric (JSON):\n")
	sb.Write(rubricJSON)
	sb.WriteString("\n\nGrade the design against the rubric. Score 0-100: must-have coverage and sensible ")
	sb.WriteString("connections dominate; expected-topic coverage and clear trade-off discussion raise the score.\n\n")
	sb.WriteString("Respond with ONLY a JSON object, no markdown fences, no prose, with exactly these keys:\n")
	sb.WriteString("- \"score\": integer 0-100\n")
	sb.WriteString("- \"summary\": one-paragraph overall assessment\n")
	sb.WriteString("- \"strengths\": array of strings\n")
	sb.WriteString("- \"weaknesses\": array of strings\n")
	sb.WriteString("- \"improvement_suggestions\": array of strings\n")

	prompt := "Please evaluate my final design."

	return &llm.CompletionRequest{
		System:   sb.String(),
		Messages: c.conversationWindow(turns, prompt),
		JSONOnly: true,
	}, nil
}

// conversationWindow replays the most recent transcript turns followed by
// the new user message, keeping the total at the window size.
func (c *Composer) conversationWindow(turns []*models.ConversationTurn, message string) []llm.Message {
	recent := turns
	budget := c.window - 1
	if budget < 0 {
		budget = 0
	}
	if len(recent) > budget {
		recent = recent[len(recent)-budget:]
	}

	messages := make([]llm.Message, 0, len(recent)+1)
	for _, t := range recent {
		role := llm.RoleUser
		if t.Role == models.TurnRoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}
