package models

// NodeTypeText tags free-floating annotation nodes that are not part of the
// architecture itself. Every other type tag is a structural component.
const NodeTypeText = "text"

// Position is a node's 2-D canvas position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the user-editable content of a node.
type NodeData struct {
	Label string `json:"label"`
	Note  string `json:"note,omitempty"`
}

// BoardNode is a typed node on the design canvas.
type BoardNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

// IsAnnotation returns true for free-text annotation nodes.
func (n *BoardNode) IsAnnotation() bool {
	return n.Type == NodeTypeText
}

// BoardEdge is a directed, optionally labeled connection between two nodes.
type BoardEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// BoardState is a full snapshot of the design canvas. It is persisted
// wholesale on every save; there is no diffing.
type BoardState struct {
	Nodes []BoardNode `json:"nodes"`
	Edges []BoardEdge `json:"edges"`
}

// IsEmpty reports whether the canvas has no components. Dangling edges
// without nodes still count as empty.
func (b *BoardState) IsEmpty() bool {
	return b == nil || len(b.Nodes) == 0
}

// StructuralNodes returns the non-annotation nodes in board order.
func (b *BoardState) StructuralNodes() []BoardNode {
	if b == nil {
		return nil
	}
	nodes := make([]BoardNode, 0, len(b.Nodes))
	for _, n := range b.Nodes {
		if !n.IsAnnotation() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
