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

// BoardRepository provides data access for session board snapshots. A session
// owns exactly one board row; saves replace the whole snapshot (last write
// wins, no diffing).
type BoardRepository interface {
	Upsert(ctx context.Context, sessionID uuid.UUID, board *models.BoardState) error
	// Get returns the session's board, or nil when the session has none.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.BoardState, error)
}

type boardRepository struct {
	db *database.DB
}

// NewBoardRepository creates a new BoardRepository.
func NewBoardRepository(db *database.DB) BoardRepository {
	return &boardRepository{db: db}
}

var _ BoardRepository = (*boardRepository)(nil)

func (r *boardRepository) Upsert(ctx context.Context, sessionID uuid.UUID, board *models.BoardState) error {
	boardJSON, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal board state: %w", err)
	}

	query := `
		INSERT INTO system_design_boards (id, session_id, board_state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			board_state = EXCLUDED.board_state,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query, uuid.New(), sessionID, boardJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert board: %w", err)
	}

	return nil
}

func (r *boardRepository) Get(ctx context.Context, sessionID uuid.UUID) (*models.BoardState, error) {
	query := `
		SELECT board_state
		FROM system_design_boards
		WHERE session_id = $1`

	var boardJSON []byte
	err := r.db.QueryRow(ctx, query, sessionID).Scan(&boardJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	var board models.BoardState
	if err := json.Unmarshal(boardJSON, &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board state: %w", err)
	}

	return &board, nil
}
