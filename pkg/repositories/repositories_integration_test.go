//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
	"github.com/prepstack-ai/prepstack-engine/pkg/repositories"
	"github.com/prepstack-ai/prepstack-engine/pkg/testhelpers"
)

// seedProblem writes a unique problem with a minimal spec and returns its id.
func seedProblem(t *testing.T, repo repositories.SpecRepository, difficulty models.Difficulty) uuid.UUID {
	t.Helper()

	slug := "it-" + uuid.NewString()
	problemID, err := repo.Upsert(context.Background(),
		&models.Problem{Slug: slug, Title: "URL Shortener", Difficulty: difficulty},
		&models.DesignSpec{
			Summary:                "Design a URL shortener.",
			FunctionalRequirements: []string{"shorten URLs", "redirect"},
			Rubric: models.Rubric{
				MustHave:       []string{"api", "database"},
				ExpectedTopics: []string{"caching"},
			},
		})
	require.NoError(t, err, "Failed to seed problem")
	return problemID
}

func TestSpecRepository_UpsertAndGet(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := repositories.NewSpecRepository(engineDB.DB)
	ctx := context.Background()

	slug := "it-" + uuid.NewString()
	problem := &models.Problem{Slug: slug, Title: "Rate Limiter", Difficulty: models.DifficultyMedium}
	spec := &models.DesignSpec{
		Summary:                   "Design a distributed rate limiter.",
		FunctionalRequirements:    []string{"limit per user", "limit per IP"},
		NonfunctionalRequirements: []string{"low latency"},
		ScaleEstimates:            map[string]string{"rps": "100k"},
		StarterCanvas: models.BoardState{
			Nodes: []models.BoardNode{{ID: "n1", Type: "api", Data: models.NodeData{Label: "API"}}},
			Edges: []models.BoardEdge{},
		},
		Rubric: models.Rubric{MustHave: []string{"cache"}, ExpectedTopics: []string{"token bucket"}},
	}

	problemID, err := repo.Upsert(ctx, problem, spec)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, problemID)

	got, err := repo.GetByProblemID(ctx, problemID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Title and difficulty are denormalized from the problem row.
	assert.Equal(t, "Rate Limiter", got.Title)
	assert.Equal(t, models.DifficultyMedium, got.Difficulty)
	assert.Equal(t, "Design a distributed rate limiter.", got.Summary)
	assert.Equal(t, []string{"limit per user", "limit per IP"}, got.FunctionalRequirements)
	assert.Equal(t, map[string]string{"rps": "100k"}, got.ScaleEstimates)
	assert.Len(t, got.StarterCanvas.Nodes, 1)
	assert.Equal(t, []string{"cache"}, got.Rubric.MustHave)

	// Re-seeding the same slug updates in place and keeps the id.
	problem2 := &models.Problem{Slug: slug, Title: "Rate Limiter v2", Difficulty: models.DifficultyHard}
	spec2 := &models.DesignSpec{Summary: "Updated brief."}
	problemID2, err := repo.Upsert(ctx, problem2, spec2)
	require.NoError(t, err)
	assert.Equal(t, problemID, problemID2)

	got2, err := repo.GetByProblemID(ctx, problemID)
	require.NoError(t, err)
	require.NotNil(t, got2)
	assert.Equal(t, "Rate Limiter v2", got2.Title)
	assert.Equal(t, models.DifficultyHard, got2.Difficulty)
	assert.Equal(t, "Updated brief.", got2.Summary)
}

func TestSpecRepository_GetUnknownReturnsNil(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := repositories.NewSpecRepository(engineDB.DB)
	ctx := context.Background()

	spec, err := repo.GetByProblemID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, spec)

	problem, err := repo.GetProblem(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, problem)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	specRepo := repositories.NewSpecRepository(engineDB.DB)
	sessionRepo := repositories.NewSessionRepository(engineDB.DB)
	boardRepo := repositories.NewBoardRepository(engineDB.DB)
	ctx := context.Background()

	problemID := seedProblem(t, specRepo, models.DifficultyMedium)
	userID := uuid.New()

	session := &models.DesignSession{UserID: userID, ProblemID: problemID}
	starter := &models.BoardState{
		Nodes: []models.BoardNode{{ID: "n1", Type: "api", Data: models.NodeData{Label: "API Gateway"}}},
	}
	require.NoError(t, sessionRepo.CreateWithBoard(ctx, session, starter))
	require.NotEqual(t, uuid.Nil, session.ID)
	assert.True(t, session.IsActive)

	// The initial board lands in the same transaction as the session.
	board, err := boardRepo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, board)
	assert.Len(t, board.Nodes, 1)

	got, err := sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.Score)

	active, err := sessionRepo.GetActiveForUserProblem(ctx, userID, problemID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.ID, active.ID)

	// Completion happens exactly once.
	completed, err := sessionRepo.Complete(ctx, session.ID, 82, "Solid design.")
	require.NoError(t, err)
	assert.True(t, completed)

	completedAgain, err := sessionRepo.Complete(ctx, session.ID, 90, "Should not apply.")
	require.NoError(t, err)
	assert.False(t, completedAgain, "Second completion should be a no-op")

	got, err = sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.Score)
	assert.Equal(t, 82, *got.Score)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, "Solid design.", *got.Feedback)
	assert.NotNil(t, got.CompletedAt)

	// A completed session is no longer the active one.
	active, err = sessionRepo.GetActiveForUserProblem(ctx, userID, problemID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	specRepo := repositories.NewSpecRepository(engineDB.DB)
	sessionRepo := repositories.NewSessionRepository(engineDB.DB)
	boardRepo := repositories.NewBoardRepository(engineDB.DB)
	turnRepo := repositories.NewTurnRepository(engineDB.DB)
	ctx := context.Background()

	problemID := seedProblem(t, specRepo, models.DifficultyEasy)
	session := &models.DesignSession{UserID: uuid.New(), ProblemID: problemID}
	require.NoError(t, sessionRepo.CreateWithBoard(ctx, session, &models.BoardState{}))

	require.NoError(t, turnRepo.Append(ctx, &models.ConversationTurn{
		SessionID: session.ID, Role: models.TurnRoleUser, Content: "hello",
	}))

	deleted, err := sessionRepo.Delete(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Board and transcript go with the session.
	board, err := boardRepo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, board)

	count, err := turnRepo.Count(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	deletedAgain, err := sessionRepo.Delete(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestBoardRepository_UpsertReplacesSnapshot(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	specRepo := repositories.NewSpecRepository(engineDB.DB)
	sessionRepo := repositories.NewSessionRepository(engineDB.DB)
	boardRepo := repositories.NewBoardRepository(engineDB.DB)
	ctx := context.Background()

	problemID := seedProblem(t, specRepo, models.DifficultyMedium)
	session := &models.DesignSession{UserID: uuid.New(), ProblemID: problemID}
	require.NoError(t, sessionRepo.CreateWithBoard(ctx, session, &models.BoardState{}))

	next := &models.BoardState{
		Nodes: []models.BoardNode{
			{ID: "api", Type: "api", Data: models.NodeData{Label: "API"}, Position: models.Position{X: 10, Y: 20}},
			{ID: "db", Type: "database", Data: models.NodeData{Label: "Postgres"}},
		},
		Edges: []models.BoardEdge{{ID: "e1", Source: "api", Target: "db", Label: "reads"}},
	}
	require.NoError(t, boardRepo.Upsert(ctx, session.ID, next))

	got, err := boardRepo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "Postgres", got.Nodes[1].Data.Label)
	assert.Equal(t, 10.0, got.Nodes[0].Position.X)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "reads", got.Edges[0].Label)

	// Last write wins wholesale, no merging.
	require.NoError(t, boardRepo.Upsert(ctx, session.ID, &models.BoardState{
		Nodes: []models.BoardNode{{ID: "cache", Type: "cache", Data: models.NodeData{Label: "Redis"}}},
	}))

	got, err = boardRepo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "cache", got.Nodes[0].ID)
	assert.Empty(t, got.Edges)
}

func TestTurnRepository_OrderingAndWindows(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	specRepo := repositories.NewSpecRepository(engineDB.DB)
	sessionRepo := repositories.NewSessionRepository(engineDB.DB)
	turnRepo := repositories.NewTurnRepository(engineDB.DB)
	ctx := context.Background()

	problemID := seedProblem(t, specRepo, models.DifficultyMedium)
	session := &models.DesignSession{UserID: uuid.New(), ProblemID: problemID}
	require.NoError(t, sessionRepo.CreateWithBoard(ctx, session, &models.BoardState{}))

	var lastSeq int64
	for i := 0; i < 5; i++ {
		role := models.TurnRoleUser
		if i%2 == 1 {
			role = models.TurnRoleAssistant
		}
		turn := &models.ConversationTurn{
			SessionID: session.ID,
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
		}
		require.NoError(t, turnRepo.Append(ctx, turn))
		assert.Greater(t, turn.Seq, lastSeq, "Sequence numbers must be strictly increasing")
		lastSeq = turn.Seq
	}

	all, err := turnRepo.ListAll(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, turn := range all {
		assert.Equal(t, fmt.Sprintf("turn %d", i), turn.Content)
	}

	// ListRecent keeps the tail of the transcript, still chronological.
	recent, err := turnRepo.ListRecent(ctx, session.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "turn 3", recent[0].Content)
	assert.Equal(t, "turn 4", recent[1].Content)

	count, err := turnRepo.Count(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestAttemptRepository_PassedOnce(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	specRepo := repositories.NewSpecRepository(engineDB.DB)
	attemptRepo := repositories.NewAttemptRepository(engineDB.DB)
	ctx := context.Background()

	problemID := seedProblem(t, specRepo, models.DifficultyHard)
	userID := uuid.New()

	got, err := attemptRepo.GetPassed(ctx, userID, problemID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, attemptRepo.RecordPassed(ctx, userID, problemID))
	// Repeat passes are absorbed by the partial unique index.
	require.NoError(t, attemptRepo.RecordPassed(ctx, userID, problemID))

	got, err = attemptRepo.GetPassed(ctx, userID, problemID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, problemID, got.ProblemID)
	assert.Equal(t, models.AttemptStatusPassed, got.Status)
}
