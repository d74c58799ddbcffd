package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

func structuralNode(id, nodeType, label string) models.BoardNode {
	return models.BoardNode{
		ID:   id,
		Type: nodeType,
		Data: models.NodeData{Label: label},
	}
}

func userTurn(content string) *models.ConversationTurn {
	return &models.ConversationTurn{
		ID:      uuid.New(),
		Role:    models.TurnRoleUser,
		Content: content,
	}
}

func mediumSpec() *models.DesignSpec {
	return &models.DesignSpec{
		ProblemID:  uuid.New(),
		Title:      "Design a URL Shortener",
		Difficulty: models.DifficultyMedium,
		Rubric: models.Rubric{
			MustHave:       []string{"api", "database", "cache"},
			ExpectedTopics: []string{"scalability"},
		},
	}
}

func TestAnalyze_EmptyBoardScoresZero(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	result := analyzer.Analyze(&models.BoardState{}, nil, mediumSpec())

	require.NotNil(t, result)
	assert.Equal(t, 0, result.Confidence)
	assert.False(t, result.IsComplete)
	assert.Equal(t, []string{"api", "database", "cache"}, result.MissingComponents)
	assert.Equal(t, []string{"scalability"}, result.MissingTopics)
	assert.Contains(t, result.Reasoning, "missing components")
}

func TestAnalyze_CoveredMediumBoardIsComplete(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			structuralNode("n1", "api", "API Gateway"),
			structuralNode("n2", "database", "Postgres"),
			structuralNode("n3", "cache", "Redis"),
		},
		Edges: []models.BoardEdge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n1", Target: "n3"},
		},
	}
	turns := []*models.ConversationTurn{
		userTurn("I'll add a cache in front of the database for scalability."),
	}

	result := analyzer.Analyze(board, turns, mediumSpec())

	// components 50 (40 coverage + 6 vocab + 4 variety), connections 13
	// (20 * 2/3), topics 20 (15 coverage + 5 quality)
	assert.Equal(t, 83, result.Confidence)
	assert.True(t, result.IsComplete)
	assert.Empty(t, result.MissingComponents)
	assert.Empty(t, result.MissingTopics)
	assert.Contains(t, result.Reasoning, "3 of 3 must-have components")
	assert.Contains(t, result.Reasoning, "1 of 1 expected topics")
}

func TestAnalyze_ConfidenceAlwaysInRange(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	boards := []*models.BoardState{
		nil,
		{},
		{
			Nodes: []models.BoardNode{structuralNode("n1", "api", "API")},
		},
		{
			Nodes: []models.BoardNode{
				structuralNode("n1", "api", "api"),
				structuralNode("n2", "database", "database"),
				structuralNode("n3", "cache", "cache"),
				structuralNode("n4", "queue", "queue"),
				structuralNode("n5", "cdn", "cdn"),
				structuralNode("n6", "load balancer", "load balancer"),
			},
			Edges: []models.BoardEdge{
				{ID: "e1", Source: "n1", Target: "n2"},
				{ID: "e2", Source: "n1", Target: "n3"},
				{ID: "e3", Source: "n1", Target: "n4"},
				{ID: "e4", Source: "n1", Target: "n5"},
				{ID: "e5", Source: "n1", Target: "n6"},
				{ID: "e6", Source: "n2", Target: "n3"},
				{ID: "e7", Source: "n2", Target: "n4"},
				{ID: "e8", Source: "n2", Target: "n5"},
			},
		},
	}
	turns := []*models.ConversationTurn{
		userTurn("scalability availability caching consistency replication partitioning reliability"),
	}

	for i, board := range boards {
		result := analyzer.Analyze(board, turns, mediumSpec())
		assert.GreaterOrEqual(t, result.Confidence, 0, "board %d", i)
		assert.LessOrEqual(t, result.Confidence, 100, "board %d", i)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			structuralNode("n1", "api", "API Gateway"),
			structuralNode("n2", "database", "Postgres"),
		},
		Edges: []models.BoardEdge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
	turns := []*models.ConversationTurn{userTurn("thinking about scalability")}
	spec := mediumSpec()

	first := analyzer.Analyze(board, turns, spec)
	for i := 0; i < 5; i++ {
		again := analyzer.Analyze(board, turns, spec)
		assert.Equal(t, first, again)
	}
}

func TestAnalyze_AddingMustHaveNeverLowersConfidence(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()
	spec := mediumSpec()

	board := &models.BoardState{
		Nodes: []models.BoardNode{structuralNode("n1", "api", "API Gateway")},
	}
	prev := analyzer.Analyze(board, nil, spec).Confidence

	additions := []models.BoardNode{
		structuralNode("n2", "database", "Postgres"),
		structuralNode("n3", "cache", "Redis"),
	}
	for _, n := range additions {
		board.Nodes = append(board.Nodes, n)
		got := analyzer.Analyze(board, nil, spec).Confidence
		assert.GreaterOrEqual(t, got, prev, "adding %s lowered confidence", n.Type)
		prev = got
	}
}

func TestAnalyze_AddingMustHaveNeverLowersConfidence_WiredBoard(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	// A wide rubric makes each must-have worth only a few component points,
	// so the connection subscore must not lose anything to the new node.
	spec := mediumSpec()
	spec.Rubric.MustHave = []string{
		"api", "database", "cache", "queue", "cdn",
		"worker", "auth", "storage", "search", "gateway",
	}

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			structuralNode("n1", "api", "API"),
			structuralNode("n2", "database", "Postgres"),
			structuralNode("n3", "cache", "Redis"),
		},
		Edges: []models.BoardEdge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n1", Target: "n3"},
			{ID: "e3", Source: "n2", Target: "n3"},
		},
	}
	prev := analyzer.Analyze(board, nil, spec).Confidence

	additions := []models.BoardNode{
		structuralNode("n4", "queue", "Write Queue"),
		structuralNode("n5", "cdn", "CDN"),
		structuralNode("n6", "worker", "Async Worker"),
	}
	for _, n := range additions {
		board.Nodes = append(board.Nodes, n)
		got := analyzer.Analyze(board, nil, spec).Confidence
		assert.GreaterOrEqual(t, got, prev, "adding %s lowered confidence", n.Type)
		prev = got
	}
}

func TestAnalyze_CompleteMatchesThreshold(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()
	spec := mediumSpec()

	boards := []*models.BoardState{
		{},
		{Nodes: []models.BoardNode{structuralNode("n1", "api", "API")}},
		{
			Nodes: []models.BoardNode{
				structuralNode("n1", "api", "API"),
				structuralNode("n2", "database", "Postgres"),
				structuralNode("n3", "cache", "Redis"),
			},
			Edges: []models.BoardEdge{
				{ID: "e1", Source: "n1", Target: "n2"},
				{ID: "e2", Source: "n1", Target: "n3"},
				{ID: "e3", Source: "n2", Target: "n3"},
			},
		},
	}
	turns := []*models.ConversationTurn{userTurn("scalability and caching matter here")}

	for i, board := range boards {
		result := analyzer.Analyze(board, turns, spec)
		assert.Equal(t, result.Confidence >= CompletenessThreshold, result.IsComplete, "board %d", i)
	}
}

func TestAnalyze_HardScoresLowerThanMedium(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			structuralNode("n1", "api", "API Gateway"),
			structuralNode("n2", "database", "Postgres"),
			structuralNode("n3", "cache", "Redis"),
		},
		Edges: []models.BoardEdge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n1", Target: "n3"},
		},
	}
	turns := []*models.ConversationTurn{userTurn("we should discuss scalability")}

	medium := mediumSpec()
	hard := mediumSpec()
	hard.Difficulty = models.DifficultyHard
	hard.Rubric.ExpectedTopics = []string{"scalability", "consistency"}

	mediumResult := analyzer.Analyze(board, turns, medium)
	hardResult := analyzer.Analyze(board, turns, hard)

	// The same basic board should satisfy a Medium rubric but not a Hard one.
	assert.Less(t, hardResult.Confidence, mediumResult.Confidence)
	assert.True(t, mediumResult.IsComplete)
	assert.False(t, hardResult.IsComplete)
}

func TestAnalyze_HardRewardsOperationalDepth(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	spec := mediumSpec()
	spec.Difficulty = models.DifficultyHard
	spec.Rubric.ExpectedTopics = []string{"scalability", "consistency"}

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			structuralNode("n1", "api", "API Gateway"),
			structuralNode("n2", "database", "Postgres"),
			structuralNode("n3", "cache", "Redis"),
			structuralNode("n4", "queue", "Write Queue"),
			structuralNode("n5", "cdn", "CDN"),
			structuralNode("n6", "worker", "Async Worker"),
			structuralNode("n7", "metrics", "Metrics"),
		},
		Edges: []models.BoardEdge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n1", Target: "n3"},
			{ID: "e3", Source: "n4", Target: "n6"},
			{ID: "e4", Source: "n5", Target: "n1"},
		},
	}
	turns := []*models.ConversationTurn{
		userTurn("For scalability we use partitioning of the database; replication keeps consistency and availability high."),
	}

	result := analyzer.Analyze(board, turns, spec)

	// components 35 + 12 vocab, connections 15 floor, topics 25 + 5 quality
	assert.Equal(t, 92, result.Confidence)
	assert.True(t, result.IsComplete)
}

func TestAnalyze_AnnotationsDoNotSatisfyComponents(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			{ID: "n1", Type: models.NodeTypeText, Data: models.NodeData{Label: "database goes here"}},
		},
	}

	result := analyzer.Analyze(board, nil, mediumSpec())

	assert.Contains(t, result.MissingComponents, "database")
}

func TestAnalyze_TopicsMatchFromNotesAndChat(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()
	spec := mediumSpec()
	spec.Rubric.ExpectedTopics = []string{"scalability", "sharding"}

	board := &models.BoardState{
		Nodes: []models.BoardNode{
			{
				ID:   "n1",
				Type: "database",
				Data: models.NodeData{Label: "Postgres", Note: "use sharding by user id"},
			},
		},
	}
	turns := []*models.ConversationTurn{
		userTurn("I care about scalability"),
		{ID: uuid.New(), Role: models.TurnRoleAssistant, Content: "what about sharding?"},
	}

	result := analyzer.Analyze(board, turns, spec)

	assert.NotContains(t, result.MissingTopics, "sharding")
	assert.NotContains(t, result.MissingTopics, "scalability")
}

func TestAnalyze_AssistantTurnsDoNotSatisfyTopics(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()
	spec := mediumSpec()

	turns := []*models.ConversationTurn{
		{ID: uuid.New(), Role: models.TurnRoleAssistant, Content: "have you considered scalability?"},
	}

	result := analyzer.Analyze(&models.BoardState{}, turns, spec)

	assert.Contains(t, result.MissingTopics, "scalability")
}

func TestAnalyze_ReasoningListsAtMostThreeGaps(t *testing.T) {
	analyzer := NewCompletenessAnalyzer()
	spec := mediumSpec()
	spec.Rubric.MustHave = []string{"api", "database", "cache", "queue", "cdn"}

	result := analyzer.Analyze(&models.BoardState{}, nil, spec)

	assert.Contains(t, result.Reasoning, "api, database, cache")
	assert.NotContains(t, result.Reasoning, "cdn")
}

func TestScoreConnections(t *testing.T) {
	makeBoard := func(nodeCount int, edges ...models.BoardEdge) *models.BoardState {
		board := &models.BoardState{Edges: edges}
		for i := 0; i < nodeCount; i++ {
			board.Nodes = append(board.Nodes, structuralNode(fmt.Sprintf("n%d", i+1), "api", "x"))
		}
		return board
	}
	edge := func(id, source, target string) models.BoardEdge {
		return models.BoardEdge{ID: id, Source: source, Target: target}
	}

	tests := []struct {
		name     string
		board    *models.BoardState
		expected float64
	}{
		{"empty board", makeBoard(0), 0},
		{"nodes without edges", makeBoard(3), 0},
		{"edges without nodes", makeBoard(0, edge("e1", "n1", "n2")), 0},
		{"two edges over three nodes", makeBoard(3,
			edge("e1", "n1", "n2"), edge("e2", "n1", "n3")), 20.0 / 3 * 2},
		{"two edges over four nodes", makeBoard(4,
			edge("e1", "n1", "n2"), edge("e2", "n3", "n4")), 10},
		{"triangle scores full", makeBoard(3,
			edge("e1", "n1", "n2"), edge("e2", "n2", "n3"), edge("e3", "n3", "n1")), 20},
		{"sparse wiring hits the floor", makeBoard(6,
			edge("e1", "n1", "n2"), edge("e2", "n3", "n4"), edge("e3", "n5", "n6")), 15},
		{"isolated nodes do not dilute", makeBoard(8,
			edge("e1", "n1", "n2"), edge("e2", "n1", "n3")), 20.0 / 3 * 2},
		{"dense wiring is capped", makeBoard(2,
			edge("e1", "n1", "n2"), edge("e2", "n2", "n1"), edge("e3", "n1", "n2")), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scoreConnections(tt.board), 0.001)
		})
	}
}
