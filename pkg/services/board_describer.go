package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
)

// EmptyCanvasDescription is the fixed sentence used whenever the board has no
// nodes, regardless of any dangling edges.
const EmptyCanvasDescription = "The canvas is currently empty - no components have been placed yet."

// placeholder strings for malformed nodes
const (
	unlabeledPlaceholder   = "unlabeled"
	unknownTypePlaceholder = "unknown"
)

// BoardDescriber converts a board snapshot into a deterministic natural
// language summary for prompt injection. It is pure: identical boards always
// produce identical text, and malformed nodes degrade to placeholders rather
// than failing.
type BoardDescriber struct{}

// NewBoardDescriber creates a new BoardDescriber.
func NewBoardDescriber() *BoardDescriber {
	return &BoardDescriber{}
}

// Describe renders the board as text for the coaching LLM.
func (d *BoardDescriber) Describe(board *models.BoardState) string {
	if board.IsEmpty() {
		return EmptyCanvasDescription
	}

	var sb strings.Builder
	sb.WriteString("The design canvas currently contains:\n")

	var annotations []models.BoardNode
	// type tags in order of first appearance, so the summary follows the
	// order the user built the diagram in
	typeOrder := make([]string, 0)
	byType := make(map[string][]models.BoardNode)

	for _, n := range board.Nodes {
		if n.IsAnnotation() {
			annotations = append(annotations, n)
			continue
		}
		tag := n.Type
		if tag == "" {
			tag = unknownTypePlaceholder
		}
		if _, seen := byType[tag]; !seen {
			typeOrder = append(typeOrder, tag)
		}
		byType[tag] = append(byType[tag], n)
	}

	if len(typeOrder) > 0 {
		sb.WriteString("\nComponents:\n")
		for _, tag := range typeOrder {
			entries := make([]string, 0, len(byType[tag]))
			for _, n := range byType[tag] {
				entries = append(entries, fmt.Sprintf("%q at (%d, %d)",
					nodeLabel(n), roundCoord(n.Position.X), roundCoord(n.Position.Y)))
			}
			sb.WriteString(fmt.Sprintf("- %s: %s\n", tag, strings.Join(entries, ", ")))
		}
	}

	if len(annotations) > 0 {
		sb.WriteString("\nAnnotations:\n")
		for _, n := range annotations {
			sb.WriteString(fmt.Sprintf("- %q at (%d, %d)\n",
				nodeLabel(n), roundCoord(n.Position.X), roundCoord(n.Position.Y)))
		}
	}

	if len(board.Edges) == 0 {
		sb.WriteString("\nThe components are not connected yet.\n")
		return sb.String()
	}

	labels := make(map[string]string, len(board.Nodes))
	for _, n := range board.Nodes {
		labels[n.ID] = nodeLabel(n)
	}

	sb.WriteString("\nConnections:\n")
	for _, e := range board.Edges {
		sb.WriteString(fmt.Sprintf("- %s -> %s", endpointName(labels, e.Source), endpointName(labels, e.Target)))
		if e.Label != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", e.Label))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func nodeLabel(n models.BoardNode) string {
	if n.Data.Label == "" {
		return unlabeledPlaceholder
	}
	return n.Data.Label
}

// endpointName resolves an edge endpoint to its node label, falling back to
// the raw id when the referenced node is missing from the snapshot.
func endpointName(labels map[string]string, id string) string {
	if label, ok := labels[id]; ok {
		return fmt.Sprintf("%q", label)
	}
	return id
}

func roundCoord(v float64) int {
	return int(math.Round(v))
}
