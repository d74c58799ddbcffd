package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepstack-ai/prepstack-engine/pkg/database"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// SessionRepository provides data access for design sessions.
type SessionRepository interface {
	// CreateWithBoard inserts the session and its initial board state in one
	// transaction so a session can never exist without a board.
	CreateWithBoard(ctx context.Context, session *models.DesignSession, board *models.BoardState) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.DesignSession, error)
	// GetActiveForUserProblem returns the latest active session for the
	// (user, problem) pair, or nil when none exists.
	GetActiveForUserProblem(ctx context.Context, userID, problemID uuid.UUID) (*models.DesignSession, error)
	// Complete marks the session finished with its score and feedback.
	// Returns false when the session was already completed.
	Complete(ctx context.Context, sessionID uuid.UUID, score int, feedback string) (bool, error)
	// Delete removes the session and, via cascade, its board and transcript.
	// Returns false when nothing was deleted.
	Delete(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

var _ SessionRepository = (*sessionRepository)(nil)

func (r *sessionRepository) CreateWithBoard(ctx context.Context, session *models.DesignSession, board *models.BoardState) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.IsActive = true
	session.StartedAt = time.Now()

	boardJSON, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal board state: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sessionQuery := `
		INSERT INTO system_design_sessions (id, user_id, problem_id, is_active, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = tx.Exec(ctx, sessionQuery,
		session.ID, session.UserID, session.ProblemID, session.IsActive, session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	boardQuery := `
		INSERT INTO system_design_boards (id, session_id, board_state, updated_at)
		VALUES ($1, $2, $3, $4)`

	_, err = tx.Exec(ctx, boardQuery, uuid.New(), session.ID, boardJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session creation: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.DesignSession, error) {
	query := `
		SELECT id, user_id, problem_id, is_active, score, feedback, started_at, completed_at
		FROM system_design_sessions
		WHERE id = $1`

	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *sessionRepository) GetActiveForUserProblem(ctx context.Context, userID, problemID uuid.UUID) (*models.DesignSession, error) {
	query := `
		SELECT id, user_id, problem_id, is_active, score, feedback, started_at, completed_at
		FROM system_design_sessions
		WHERE user_id = $1 AND problem_id = $2 AND is_active = true
		ORDER BY started_at DESC
		LIMIT 1`

	return scanSession(r.db.QueryRow(ctx, query, userID, problemID))
}

func (r *sessionRepository) Complete(ctx context.Context, sessionID uuid.UUID, score int, feedback string) (bool, error) {
	query := `
		UPDATE system_design_sessions
		SET is_active = false, score = $2, feedback = $3, completed_at = $4
		WHERE id = $1 AND is_active = true`

	tag, err := r.db.Exec(ctx, query, sessionID, score, feedback, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	query := `DELETE FROM system_design_sessions WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (*models.DesignSession, error) {
	var s models.DesignSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.ProblemID, &s.IsActive,
		&s.Score, &s.Feedback, &s.StartedAt, &s.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return &s, nil
}
