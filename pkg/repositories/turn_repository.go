package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepstack-ai/prepstack-engine/pkg/database"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// TurnRepository provides data access for the append-only session transcript.
// Ordering comes from a database sequence, not timestamps, so two turns
// written in the same millisecond still have a total order.
type TurnRepository interface {
	Append(ctx context.Context, turn *models.ConversationTurn) error
	// ListRecent returns the most recent turns in chronological order.
	// A non-positive limit returns the default window.
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error)
	// ListAll returns the full transcript in chronological order.
	ListAll(ctx context.Context, sessionID uuid.UUID) ([]*models.ConversationTurn, error)
	Count(ctx context.Context, sessionID uuid.UUID) (int, error)
}

const defaultTurnLimit = 50

type turnRepository struct {
	db *database.DB
}

// NewTurnRepository creates a new TurnRepository.
func NewTurnRepository(db *database.DB) TurnRepository {
	return &turnRepository{db: db}
}

var _ TurnRepository = (*turnRepository)(nil)

func (r *turnRepository) Append(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	turn.CreatedAt = time.Now()

	query := `
		INSERT INTO system_design_responses (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq`

	err := r.db.QueryRow(ctx, query,
		turn.ID, turn.SessionID, string(turn.Role), turn.Content, turn.CreatedAt,
	).Scan(&turn.Seq)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	return nil
}

func (r *turnRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ConversationTurn, error) {
	if limit <= 0 {
		limit = defaultTurnLimit
	}

	// Most recent first, then reversed to chronological order.
	query := `
		SELECT id, session_id, seq, role, content, created_at
		FROM system_design_responses
		WHERE session_id = $1
		ORDER BY seq DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns, err := collectTurns(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (r *turnRepository) ListAll(ctx context.Context, sessionID uuid.UUID) ([]*models.ConversationTurn, error) {
	query := `
		SELECT id, session_id, seq, role, content, created_at
		FROM system_design_responses
		WHERE session_id = $1
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	return collectTurns(rows)
}

func (r *turnRepository) Count(ctx context.Context, sessionID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM system_design_responses
		WHERE session_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}

	return count, nil
}

func collectTurns(rows pgx.Rows) ([]*models.ConversationTurn, error) {
	turns := make([]*models.ConversationTurn, 0)
	for rows.Next() {
		var t models.ConversationTurn
		var role string
		err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &role, &t.Content, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = models.TurnRole(role)
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}
