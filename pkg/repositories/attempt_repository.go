package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepstack-ai/prepstack-engine/pkg/database"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// AttemptRepository provides data access for problem pass records.
type AttemptRepository interface {
	// RecordPassed records a passed attempt for the (user, problem) pair.
	// A unique partial index makes this idempotent: repeat passes are
	// silently absorbed rather than duplicated.
	RecordPassed(ctx context.Context, userID, problemID uuid.UUID) error
	GetPassed(ctx context.Context, userID, problemID uuid.UUID) (*models.ProblemAttempt, error)
}

type attemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db *database.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

var _ AttemptRepository = (*attemptRepository)(nil)

func (r *attemptRepository) RecordPassed(ctx context.Context, userID, problemID uuid.UUID) error {
	query := `
		INSERT INTO problem_attempts (id, user_id, problem_id, status, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, problem_id) WHERE status = 'passed' DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		uuid.New(), userID, problemID, models.AttemptStatusPassed, models.AttemptSourceDesignSession, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record passed attempt: %w", err)
	}

	return nil
}

func (r *attemptRepository) GetPassed(ctx context.Context, userID, problemID uuid.UUID) (*models.ProblemAttempt, error) {
	query := `
		SELECT id, user_id, problem_id, status, source, created_at
		FROM problem_attempts
		WHERE user_id = $1 AND problem_id = $2 AND status = 'passed'`

	var a models.ProblemAttempt
	err := r.db.QueryRow(ctx, query, userID, problemID).Scan(
		&a.ID, &a.UserID, &a.ProblemID, &a.Status, &a.Source, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get passed attempt: %w", err)
	}

	return &a, nil
}
