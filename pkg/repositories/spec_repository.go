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

// SpecRepository provides data access for problems and their design specs.
type SpecRepository interface {
	// Upsert writes a problem (keyed by slug) and its spec in one
	// transaction, returning the problem id. Re-seeding the same slug
	// updates in place.
	Upsert(ctx context.Context, problem *models.Problem, spec *models.DesignSpec) (uuid.UUID, error)
	GetProblem(ctx context.Context, problemID uuid.UUID) (*models.Problem, error)
	// GetByProblemID returns the spec with title and difficulty denormalized
	// from the owning problem, or nil when no spec exists.
	GetByProblemID(ctx context.Context, problemID uuid.UUID) (*models.DesignSpec, error)
}

type specRepository struct {
	db *database.DB
}

// NewSpecRepository creates a new SpecRepository.
func NewSpecRepository(db *database.DB) SpecRepository {
	return &specRepository{db: db}
}

var _ SpecRepository = (*specRepository)(nil)

func (r *specRepository) Upsert(ctx context.Context, problem *models.Problem, spec *models.DesignSpec) (uuid.UUID, error) {
	if problem.ID == uuid.Nil {
		problem.ID = uuid.New()
	}

	functionalJSON, err := json.Marshal(spec.FunctionalRequirements)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal functional requirements: %w", err)
	}
	nonfunctionalJSON, err := json.Marshal(spec.NonfunctionalRequirements)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal nonfunctional requirements: %w", err)
	}
	scaleJSON, err := json.Marshal(spec.ScaleEstimates)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal scale estimates: %w", err)
	}
	canvasJSON, err := json.Marshal(spec.StarterCanvas)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal starter canvas: %w", err)
	}
	rubricJSON, err := json.Marshal(spec.Rubric)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal rubric: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var problemID uuid.UUID
	problemQuery := `
		INSERT INTO problems (id, slug, title, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			difficulty = EXCLUDED.difficulty
		RETURNING id`

	err = tx.QueryRow(ctx, problemQuery,
		problem.ID, problem.Slug, problem.Title, string(problem.Difficulty), time.Now(),
	).Scan(&problemID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert problem: %w", err)
	}

	specQuery := `
		INSERT INTO system_design_specs (
			problem_id, summary, functional_requirements, nonfunctional_requirements,
			scale_estimates, starter_canvas, rubric, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (problem_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			functional_requirements = EXCLUDED.functional_requirements,
			nonfunctional_requirements = EXCLUDED.nonfunctional_requirements,
			scale_estimates = EXCLUDED.scale_estimates,
			starter_canvas = EXCLUDED.starter_canvas,
			rubric = EXCLUDED.rubric,
			updated_at = EXCLUDED.updated_at`

	_, err = tx.Exec(ctx, specQuery,
		problemID, spec.Summary, functionalJSON, nonfunctionalJSON,
		scaleJSON, canvasJSON, rubricJSON, time.Now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert spec: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit spec upsert: %w", err)
	}

	return problemID, nil
}

func (r *specRepository) GetProblem(ctx context.Context, problemID uuid.UUID) (*models.Problem, error) {
	query := `
		SELECT id, slug, title, difficulty
		FROM problems
		WHERE id = $1`

	var p models.Problem
	var difficulty string
	err := r.db.QueryRow(ctx, query, problemID).Scan(&p.ID, &p.Slug, &p.Title, &difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}
	p.Difficulty = models.ParseDifficulty(difficulty)

	return &p, nil
}

func (r *specRepository) GetByProblemID(ctx context.Context, problemID uuid.UUID) (*models.DesignSpec, error) {
	query := `
		SELECT s.problem_id, p.title, p.difficulty, s.summary,
			s.functional_requirements, s.nonfunctional_requirements,
			s.scale_estimates, s.starter_canvas, s.rubric
		FROM system_design_specs s
		JOIN problems p ON p.id = s.problem_id
		WHERE s.problem_id = $1`

	var spec models.DesignSpec
	var difficulty string
	var functionalJSON, nonfunctionalJSON, scaleJSON, canvasJSON, rubricJSON []byte

	err := r.db.QueryRow(ctx, query, problemID).Scan(
		&spec.ProblemID, &spec.Title, &difficulty, &spec.Summary,
		&functionalJSON, &nonfunctionalJSON, &scaleJSON, &canvasJSON, &rubricJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spec: %w", err)
	}

	spec.Difficulty = models.ParseDifficulty(difficulty)
	if err := unmarshalSpecColumns(&spec, functionalJSON, nonfunctionalJSON, scaleJSON, canvasJSON, rubricJSON); err != nil {
		return nil, err
	}

	return &spec, nil
}

func unmarshalSpecColumns(spec *models.DesignSpec, functionalJSON, nonfunctionalJSON, scaleJSON, canvasJSON, rubricJSON []byte) error {
	if len(functionalJSON) > 0 {
		if err := json.Unmarshal(functionalJSON, &spec.FunctionalRequirements); err != nil {
			return fmt.Errorf("failed to unmarshal functional requirements: %w", err)
		}
	}
	if len(nonfunctionalJSON) > 0 {
		if err := json.Unmarshal(nonfunctionalJSON, &spec.NonfunctionalRequirements); err != nil {
			return fmt.Errorf("failed to unmarshal nonfunctional requirements: %w", err)
		}
	}
	if len(scaleJSON) > 0 {
		if err := json.Unmarshal(scaleJSON, &spec.ScaleEstimates); err != nil {
			return fmt.Errorf("failed to unmarshal scale estimates: %w", err)
		}
	}
	if len(canvasJSON) > 0 {
		if err := json.Unmarshal(canvasJSON, &spec.StarterCanvas); err != nil {
			return fmt.Errorf("failed to unmarshal starter canvas: %w", err)
		}
	}
	if len(rubricJSON) > 0 {
		if err := json.Unmarshal(rubricJSON, &spec.Rubric); err != nil {
			return fmt.Errorf("failed to unmarshal rubric: %w", err)
		}
	}
	return nil
}
