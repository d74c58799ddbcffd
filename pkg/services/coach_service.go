package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepstack-ai/prepstack-engine/pkg/apperrors"
	"github.com/prepstack-ai/prepstack-engine/pkg/config"
	"github.com/prepstack-ai/prepstack-engine/pkg/llm"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
	"github.com/prepstack-ai/prepstack-engine/pkg/prompts"
	"github.com/prepstack-ai/prepstack-engine/pkg/repositories"
)

// Static replies used when the LLM degrades on informational paths.
const (
	fallbackWelcome = "Welcome! I'm your system design coach. Read through the problem, " +
		"ask me anything about the requirements or expected scale, and say when you're ready to start designing."

	fallbackLimitMessage = "I hit a limit generating that response. Could you restate your message, " +
		"perhaps a little shorter?"

	completenessNudge = "Your design is looking more complete - when you're ready, request the final evaluation."
)

// PassingScore is the evaluation score at or above which a session can count
// as a passed attempt (all rubric must-haves must also be on the canvas).
const PassingScore = 75

// CoachService orchestrates design coaching sessions: start/resume, board
// persistence, reactive commentary, chat, and final evaluation.
//
// LLM failures on informational paths (welcome, reaction, chat) degrade to a
// fallback or a skip; the final evaluation propagates them instead, because a
// wrong score is worse than no score.
type CoachService interface {
	StartOrResume(ctx context.Context, userID, problemID uuid.UUID) (*models.StartResult, error)
	// UpdateBoard overwrites the session's board snapshot. Last write wins;
	// rapid repeated calls are expected from debounced clients.
	UpdateBoard(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) error
	// ReactToBoardChange persists the board and, once coaching has started,
	// generates short commentary on the change. During the clarification
	// phase the commentary is skipped entirely.
	ReactToBoardChange(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) (*models.ReactionResult, error)
	HandleMessage(ctx context.Context, userID, sessionID uuid.UUID, message string) (*models.MessageResult, error)
	// GetHistory returns the transcript in order. A positive limit keeps only
	// the most recent turns; zero or less returns everything.
	// Evaluate grades the final board, completes the session, and records a
	// passed attempt when the score and canvas clear the rubric thresholds.
	Evaluate(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) (*models.EvaluationResult, error)
	GetHistory(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error)
	Delete(ctx context.Context, userID, sessionID uuid.UUID) error
}

type coachService struct {
	sessions  repositories.SessionRepository
	boards    repositories.BoardRepository
	turns     repositories.TurnRepository
	attempts  repositories.AttemptRepository
	specs     SpecService
	factory   llm.ClientFactory
	composer  *prompts.Composer
	describer *BoardDescriber
	analyzer  *CompletenessAnalyzer
	phases    *PhaseClassifier
	aiCfg     *config.AIConfig
	logger    *zap.Logger
}

// NewCoachService creates a new CoachService.
func NewCoachService(
	sessions repositories.SessionRepository,
	boards repositories.BoardRepository,
	turns repositories.TurnRepository,
	attempts repositories.AttemptRepository,
	specs SpecService,
	factory llm.ClientFactory,
	aiCfg *config.AIConfig,
	logger *zap.Logger,
) CoachService {
	return &coachService{
		sessions:  sessions,
		boards:    boards,
		turns:     turns,
		attempts:  attempts,
		specs:     specs,
		factory:   factory,
		composer:  prompts.NewComposer(),
		describer: NewBoardDescriber(),
		analyzer:  NewCompletenessAnalyzer(),
		phases:    NewPhaseClassifier(),
		aiCfg:     aiCfg,
		logger:    logger.Named("coach-service"),
	}
}

var _ CoachService = (*coachService)(nil)

// ============================================================================
// Session lifecycle
// ============================================================================

func (s *coachService) StartOrResume(ctx context.Context, userID, problemID uuid.UUID) (*models.StartResult, error) {
	spec, err := s.specs.GetSpec(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSpecMissing, problemID)
	}

	session, err := s.sessions.GetActiveForUserProblem(ctx, userID, problemID)
	if err != nil {
		return nil, err
	}

	if session != nil {
		count, err := s.turns.Count(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			// Client rehydrates the transcript itself; no new message.
			board, err := s.boards.Get(ctx, session.ID)
			if err != nil {
				return nil, err
			}
			return &models.StartResult{Session: session, Resumed: true, Board: board}, nil
		}
		// An active session whose welcome never landed is abandoned rather
		// than resumed; a fresh session replaces it below.
	}

	session = &models.DesignSession{
		UserID:    userID,
		ProblemID: problemID,
	}
	starter := spec.StarterCanvas
	if err := s.sessions.CreateWithBoard(ctx, session, &starter); err != nil {
		return nil, err
	}

	welcome := s.generateWelcome(ctx, spec)
	if err := s.appendAssistantTurn(ctx, session.ID, welcome); err != nil {
		return nil, err
	}

	board, err := s.boards.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return &models.StartResult{Session: session, Message: welcome, Board: board}, nil
}

func (s *coachService) generateWelcome(ctx context.Context, spec *models.DesignSpec) string {
	result, err := s.callLLM(ctx, s.composer.ComposeWelcome(spec))
	if err != nil || result.Empty() {
		s.logger.Warn("Welcome generation degraded, using static fallback", zap.Error(err))
		return fallbackWelcome
	}
	return result.Content
}

func (s *coachService) GetHistory(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit > 0 {
		return s.turns.ListRecent(ctx, sessionID, limit)
	}
	return s.turns.ListAll(ctx, sessionID)
}

func (s *coachService) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}

	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.ErrNotFound
	}
	return nil
}

// ============================================================================
// Board updates & reactive commentary
// ============================================================================

func (s *coachService) UpdateBoard(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) error {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return apperrors.ErrSessionCompleted
	}

	return s.boards.Upsert(ctx, sessionID, board)
}

func (s *coachService) ReactToBoardChange(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) (*models.ReactionResult, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.ErrSessionCompleted
	}

	if err := s.boards.Upsert(ctx, sessionID, board); err != nil {
		return nil, err
	}

	// The full transcript decides the phase; the composer trims its own
	// prompt window. A windowed read here would let an old confirmation
	// scroll out and regress the session to clarification.
	turns, err := s.turns.ListAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Commentary only makes sense once the user has confirmed readiness.
	if s.phases.ClassifyPhase(turns) != models.PhaseCoaching {
		return &models.ReactionResult{}, nil
	}

	spec, err := s.specs.GetSpec(ctx, session.ProblemID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSpecMissing, session.ProblemID)
	}

	req := s.composer.ComposeReactive(spec, turns, s.describer.Describe(board))
	result, err := s.callLLMWithRetry(ctx, req)
	if err != nil || result.Empty() {
		// Reactive commentary is best effort; a degraded call just skips it.
		s.logger.Warn("Skipping reactive commentary", zap.String("session_id", sessionID.String()), zap.Error(err))
		return &models.ReactionResult{}, nil
	}

	message := result.Content
	completeness := s.analyzer.Analyze(board, turns, spec)
	if completeness.IsComplete {
		message = message + "\n\n" + completenessNudge
	}

	if err := s.appendAssistantTurn(ctx, sessionID, message); err != nil {
		return nil, err
	}

	return &models.ReactionResult{Message: message, Completeness: completeness}, nil
}

// ============================================================================
// Chat
// ============================================================================

func (s *coachService) HandleMessage(ctx context.Context, userID, sessionID uuid.UUID, message string) (*models.MessageResult, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.ErrSessionCompleted
	}

	spec, err := s.specs.GetSpec(ctx, session.ProblemID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSpecMissing, session.ProblemID)
	}

	// The full history before this message decides the phase; the message
	// itself is classified separately so a readiness confirmation gets the
	// transition prompt rather than a coaching prompt. The composer trims
	// its own prompt window from this list.
	history, err := s.turns.ListAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	phase := s.phases.ClassifyPhase(history)

	// Persisted before the LLM call so a downstream failure cannot lose the
	// user's input.
	userTurn := &models.ConversationTurn{
		SessionID: sessionID,
		Role:      models.TurnRoleUser,
		Content:   message,
	}
	if err := s.turns.Append(ctx, userTurn); err != nil {
		return nil, err
	}

	var req *llm.CompletionRequest
	var board *models.BoardState
	if phase == models.PhaseInitial {
		intent := s.phases.ClassifyMessage(message)
		req = s.composer.ComposeInitial(spec, history, message, intent)
	} else {
		board, err = s.boards.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		req = s.composer.ComposeCoaching(spec, history, message, s.describer.Describe(board))
	}

	reply := fallbackLimitMessage
	result, err := s.callLLMWithRetry(ctx, req)
	if err != nil || result.Empty() {
		s.logger.Warn("Chat reply degraded to static fallback",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	} else {
		reply = result.Content
	}

	// Completeness only applies once the session is out of clarification;
	// the message just persisted may itself be the confirmation.
	var completeness *models.CompletenessAnalysis
	if phase == models.PhaseCoaching || s.phases.IsConfirmation(message) {
		if board == nil {
			board, err = s.boards.Get(ctx, sessionID)
			if err != nil {
				return nil, err
			}
		}
		completeness = s.analyzer.Analyze(board, append(history, userTurn), spec)
		if completeness.IsComplete && phase == models.PhaseCoaching {
			reply = reply + "\n\n" + completenessNudge
		}
	}

	if err := s.appendAssistantTurn(ctx, sessionID, reply); err != nil {
		return nil, err
	}

	return &models.MessageResult{Message: reply, Completeness: completeness}, nil
}

// ============================================================================
// Evaluation
// ============================================================================

func (s *coachService) Evaluate(ctx context.Context, userID, sessionID uuid.UUID, board *models.BoardState) (*models.EvaluationResult, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, apperrors.ErrSessionCompleted
	}

	spec, err := s.specs.GetSpec(ctx, session.ProblemID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSpecMissing, session.ProblemID)
	}

	if board == nil {
		board, err = s.boards.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	} else if err := s.boards.Upsert(ctx, sessionID, board); err != nil {
		return nil, err
	}

	turns, err := s.turns.ListAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req, err := s.composer.ComposeEvaluation(spec, board, turns)
	if err != nil {
		return nil, err
	}

	// No silent fallback here: a failed or garbled evaluation is an error.
	result, err := s.callLLMWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("evaluation call failed: %w", err)
	}
	if result.Empty() {
		return nil, apperrors.ErrEmptyEvaluation
	}

	evaluation, err := llm.ParseJSONResponse[models.DesignEvaluation](result.Content)
	if err != nil {
		s.logger.Error("Unparseable evaluation response",
			zap.String("session_id", sessionID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEmptyEvaluation, err)
	}

	if evaluation.Score < 0 {
		evaluation.Score = 0
	}
	if evaluation.Score > 100 {
		evaluation.Score = 100
	}

	feedback := formatFeedback(&evaluation)

	completed, err := s.sessions.Complete(ctx, sessionID, evaluation.Score, feedback)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, apperrors.ErrSessionCompleted
	}

	if err := s.appendAssistantTurn(ctx, sessionID, feedback); err != nil {
		return nil, err
	}

	passed := evaluation.Score >= PassingScore &&
		len(findMissingComponents(board.StructuralNodes(), spec.Rubric.MustHave)) == 0
	if passed {
		if err := s.attempts.RecordPassed(ctx, userID, session.ProblemID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Session evaluated",
		zap.String("session_id", sessionID.String()),
		zap.Int("score", evaluation.Score),
		zap.Bool("passed", passed))

	return &models.EvaluationResult{Evaluation: &evaluation, Passed: passed}, nil
}

// formatFeedback renders the verdict as the markdown block stored on the
// session and appended to the transcript.
func formatFeedback(e *models.DesignEvaluation) string {
	var sb strings.Builder

	sb.WriteString("## Design Evaluation\n\n")
	sb.WriteString(fmt.Sprintf("**Score: %d/100**\n\n", e.Score))
	if e.Summary != "" {
		sb.WriteString(e.Summary + "\n")
	}

	writeFeedbackSection(&sb, "Strengths", e.Strengths)
	writeFeedbackSection(&sb, "Weaknesses", e.Weaknesses)
	writeFeedbackSection(&sb, "Suggestions", e.ImprovementSuggestions)

	return strings.TrimRight(sb.String(), "\n")
}

func writeFeedbackSection(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n### " + title + "\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}

// ============================================================================
// Helpers
// ============================================================================

// ownedSession loads the session and verifies ownership. A session owned by
// someone else reads as not found so existence is not leaked.
func (s *coachService) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.DesignSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return session, nil
}

func (s *coachService) appendAssistantTurn(ctx context.Context, sessionID uuid.UUID, content string) error {
	return s.turns.Append(ctx, &models.ConversationTurn{
		SessionID: sessionID,
		Role:      models.TurnRoleAssistant,
		Content:   content,
	})
}

// callLLM runs a single primary-model completion with the configured budget.
func (s *coachService) callLLM(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
	client, err := s.factory.CreateChatClient()
	if err != nil {
		return nil, err
	}

	req.Temperature = s.aiCfg.Temperature
	req.MaxTokens = s.aiCfg.MaxTokens

	return client.Complete(ctx, req)
}

// callLLMWithRetry runs the primary completion and, when it errors, comes
// back empty, or truncates, retries exactly once on the cheaper fallback
// model with a reduced token budget.
func (s *coachService) callLLMWithRetry(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResult, error) {
	result, err := s.callLLM(ctx, req)
	if err == nil && !result.Empty() && !result.Truncated() {
		return result, nil
	}

	fallback, ferr := s.factory.CreateFallbackClient()
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	s.logger.Warn("Retrying completion on fallback model",
		zap.String("model", fallback.GetModel()), zap.Error(err))

	retryReq := *req
	retryReq.MaxTokens = s.aiCfg.FallbackMaxTokens
	retryResult, retryErr := fallback.Complete(ctx, &retryReq)
	if retryErr != nil {
		// Surface the retry error only when the first call failed too;
		// otherwise keep the truncated-but-present primary result.
		if err != nil {
			return nil, retryErr
		}
		return result, nil
	}

	return retryResult, nil
}
