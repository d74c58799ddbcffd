package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// Scoring weights. These are hand-tuned product constants; the split is
// components <=50, connections <=20, topics <=30, and a design counts as
// complete at 70. Do not adjust without re-baselining the worked scenarios
// in the tests.
const (
	// CompletenessThreshold is the confidence at which a design counts as
	// complete and the coach starts nudging toward evaluation.
	CompletenessThreshold = 70

	componentBaseMax     = 40 // non-Hard: fraction-based component points
	componentBonusVocab  = 6  // non-Hard: core-vocabulary bonus cap
	componentBonusVarity = 4  // non-Hard: flat bonus for >=3 distinct types

	componentBaseMaxHard  = 35 // Hard: fraction-based component points
	componentBonusMaxHard = 15 // Hard: advanced-vocabulary bonus cap
	componentVocabPtsHard = 3  // Hard: points per advanced-vocabulary hit

	connectionMax       = 20
	connectionFloor     = 15 // applied once the board has >=3 edges
	connectionFloorMin  = 3
	lowConnectionsBound = 2 // below this, reasoning flags missing connections

	topicBaseMax      = 15 // non-Hard
	topicBonusMax     = 15 // non-Hard
	topicBonusPerHit  = 5  // non-Hard
	topicBaseMaxHard  = 25
	topicBonusMaxHard = 5
)

// advancedComponentVocab rewards Hard-tier designs that include operational
// building blocks beyond the basics.
var advancedComponentVocab = []string{
	"cdn", "queue", "metrics", "logging", "auth", "storage", "worker", "cron",
}

// coreComponentVocab rewards non-Hard designs for covering the fundamentals.
var coreComponentVocab = []string{
	"api", "backend", "database", "cache", "load balancer",
}

// hardQualityKeywords are the architecture-quality topics expected in Hard
// discussions.
var hardQualityKeywords = []string{
	"scalability", "reliability", "availability", "consistency", "partitioning", "replication",
}

// qualityKeywords is the simpler non-Hard set.
var qualityKeywords = []string{
	"scalability", "availability", "caching",
}

// CompletenessAnalyzer scores a board and discussion against a problem
// rubric. It is deterministic and side-effect free: no randomness, no
// external calls, identical inputs always yield identical analyses.
type CompletenessAnalyzer struct{}

// NewCompletenessAnalyzer creates a new CompletenessAnalyzer.
func NewCompletenessAnalyzer() *CompletenessAnalyzer {
	return &CompletenessAnalyzer{}
}

// Analyze scores the board and conversation against the spec's rubric.
func (a *CompletenessAnalyzer) Analyze(
	board *models.BoardState,
	turns []*models.ConversationTurn,
	spec *models.DesignSpec,
) *models.CompletenessAnalysis {
	structural := board.StructuralNodes()
	corpus := buildSearchCorpus(board, turns)

	missingComponents := findMissingComponents(structural, spec.Rubric.MustHave)
	missingTopics := findMissingTopics(corpus, spec.Rubric.ExpectedTopics)

	hard := spec.Difficulty == models.DifficultyHard

	componentScore := scoreComponents(structural, corpus, spec.Rubric.MustHave, missingComponents, hard)
	connectionScore := scoreConnections(board)
	topicScore := scoreTopics(corpus, spec.Rubric.ExpectedTopics, missingTopics, hard)

	confidence := int(math.Round(componentScore + connectionScore + topicScore))
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	isComplete := confidence >= CompletenessThreshold

	edgeCount := 0
	if board != nil {
		edgeCount = len(board.Edges)
	}

	return &models.CompletenessAnalysis{
		IsComplete:        isComplete,
		Confidence:        confidence,
		MissingComponents: missingComponents,
		MissingTopics:     missingTopics,
		Reasoning: buildReasoning(isComplete, spec.Rubric, missingComponents, missingTopics,
			edgeCount),
	}
}

// buildSearchCorpus lowercases and concatenates node types, labels, notes,
// and user-authored chat text into one searchable blob for topic matching.
func buildSearchCorpus(board *models.BoardState, turns []*models.ConversationTurn) string {
	var sb strings.Builder
	if board != nil {
		for _, n := range board.Nodes {
			sb.WriteString(strings.ToLower(n.Type))
			sb.WriteString(" ")
			sb.WriteString(strings.ToLower(n.Data.Label))
			sb.WriteString(" ")
			if n.Data.Note != "" {
				sb.WriteString(strings.ToLower(n.Data.Note))
				sb.WriteString(" ")
			}
		}
	}
	for _, t := range turns {
		if t.Role == models.TurnRoleUser {
			sb.WriteString(strings.ToLower(t.Content))
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// componentMatches reports whether a must-have term is satisfied by a node:
// an exact match on type or label, or a substring of either.
func componentMatches(n models.BoardNode, term string) bool {
	nodeType := strings.ToLower(n.Type)
	label := strings.ToLower(n.Data.Label)
	return nodeType == term || label == term ||
		strings.Contains(nodeType, term) || strings.Contains(label, term)
}

func findMissingComponents(structural []models.BoardNode, mustHave []string) []string {
	var missing []string
	for _, raw := range mustHave {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			continue
		}
		found := false
		for _, n := range structural {
			if componentMatches(n, term) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, raw)
		}
	}
	return missing
}

func findMissingTopics(corpus string, topics []string) []string {
	var missing []string
	for _, raw := range topics {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			continue
		}
		if !strings.Contains(corpus, term) {
			missing = append(missing, raw)
		}
	}
	return missing
}

func scoreComponents(structural []models.BoardNode, corpus string, mustHave, missing []string, hard bool) float64 {
	foundFraction := 1.0
	if len(mustHave) > 0 {
		foundFraction = float64(len(mustHave)-len(missing)) / float64(len(mustHave))
	}

	if hard {
		// Hard designs earn less from must-haves alone and must show
		// operational depth to reach the full component score.
		score := componentBaseMaxHard * foundFraction
		bonus := float64(componentVocabPtsHard * countVocabHits(corpus, advancedComponentVocab))
		if bonus > componentBonusMaxHard {
			bonus = componentBonusMaxHard
		}
		return score + bonus
	}

	score := componentBaseMax * foundFraction
	bonus := float64(2 * countVocabHits(corpus, coreComponentVocab))
	if bonus > componentBonusVocab {
		bonus = componentBonusVocab
	}
	score += bonus
	if countDistinctTypes(structural) >= 3 {
		score += componentBonusVarity
	}
	return score
}

// scoreConnections rates how wired the design is. The ratio runs over the
// distinct nodes that edges actually touch, so isolated components never
// dilute the score.
func scoreConnections(board *models.BoardState) float64 {
	if board == nil || len(board.Nodes) == 0 || len(board.Edges) == 0 {
		return 0
	}

	endpoints := make(map[string]struct{}, 2*len(board.Edges))
	for _, e := range board.Edges {
		if e.Source != "" {
			endpoints[e.Source] = struct{}{}
		}
		if e.Target != "" {
			endpoints[e.Target] = struct{}{}
		}
	}
	if len(endpoints) == 0 {
		return 0
	}

	ratio := float64(len(board.Edges)) / float64(len(endpoints))
	score := connectionMax * ratio
	if score > connectionMax {
		score = connectionMax
	}
	if len(board.Edges) >= connectionFloorMin && score < connectionFloor {
		score = connectionFloor
	}
	return score
}

func scoreTopics(corpus string, topics, missing []string, hard bool) float64 {
	foundFraction := 1.0
	if len(topics) > 0 {
		foundFraction = float64(len(topics)-len(missing)) / float64(len(topics))
	}

	if hard {
		bonus := float64(countVocabHits(corpus, hardQualityKeywords))
		if bonus > topicBonusMaxHard {
			bonus = topicBonusMaxHard
		}
		return topicBaseMaxHard*foundFraction + bonus
	}

	bonus := float64(topicBonusPerHit * countVocabHits(corpus, qualityKeywords))
	if bonus > topicBonusMax {
		bonus = topicBonusMax
	}
	return topicBaseMax*foundFraction + bonus
}

func countVocabHits(corpus string, vocab []string) int {
	hits := 0
	for _, term := range vocab {
		if strings.Contains(corpus, term) {
			hits++
		}
	}
	return hits
}

func countDistinctTypes(structural []models.BoardNode) int {
	types := make(map[string]struct{}, len(structural))
	for _, n := range structural {
		if n.Type != "" {
			types[strings.ToLower(n.Type)] = struct{}{}
		}
	}
	return len(types)
}

// buildReasoning produces the human-readable explanation attached to every
// analysis: coverage counts when complete, the first few concrete gaps when
// not.
func buildReasoning(complete bool, rubric models.Rubric, missingComponents, missingTopics []string, edgeCount int) string {
	if complete {
		return fmt.Sprintf("The design covers %d of %d must-have components and %d of %d expected topics.",
			len(rubric.MustHave)-len(missingComponents), len(rubric.MustHave),
			len(rubric.ExpectedTopics)-len(missingTopics), len(rubric.ExpectedTopics))
	}

	var parts []string
	if len(missingComponents) > 0 {
		parts = append(parts, "missing components: "+strings.Join(firstN(missingComponents, 3), ", "))
	}
	if len(missingTopics) > 0 {
		parts = append(parts, "topics not yet discussed: "+strings.Join(firstN(missingTopics, 3), ", "))
	}
	if edgeCount < lowConnectionsBound {
		parts = append(parts, "the components need more connections between them")
	}

	if len(parts) == 0 {
		return "The design is taking shape - continue adding components and discussing your choices."
	}
	return "The design is not complete yet: " + strings.Join(parts, "; ") + "."
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
