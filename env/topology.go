package env

import "fmt"

// Direction names a cardinal neighbor of a grid intersection.
type Direction int

const (
	Top Direction = iota
	Bottom
	Left
	Right
)

// neighborOrder is the order neighbor lights appear in an observation.
var neighborOrder = [...]Direction{Top, Bottom, Left, Right}

// NodeEdges maps one traffic-light agent to its incoming edges.
type NodeEdges struct {
	ID    string
	Index int
	Edges []string
}

// Topology is the static local mapping shared by all environment components.
// It is built once and never mutated afterwards.
type Topology struct {
	Rows, Cols int
	Nodes      []NodeEdges
	// ControlledEdges are the edges on which learned vehicle actions apply.
	ControlledEdges map[string]bool
	// EntryEdge is where exited RL vehicles are reinserted.
	EntryEdge string
	// CharacteristicDistance normalizes distance-to-intersection. Zero
	// means "use the longest edge in the network".
	CharacteristicDistance float64

	byID map[string]int
}

// GridLengths holds the three edge lengths of a grid network.
type GridLengths struct {
	Inner float64 `yaml:"inner_length"`
	Short float64 `yaml:"short_length"`
	Long  float64 `yaml:"long_length"`
}

// NodeID returns the traffic-light id of grid node idx.
func NodeID(idx int) string {
	return fmt.Sprintf("center%d", idx)
}

// GridIncomingEdges returns the four edges entering node (row, col): arrivals
// from the west, south, east and north, in that order.
//
// Edge naming: "left{r}_{c}" runs southbound into row r-1, "right{r}_{c}"
// runs northbound into row r, "top{r}_{c}" runs westbound into column c-1
// and "bot{r}_{c}" runs eastbound into column c.
func GridIncomingEdges(row, col int) []string {
	return []string{
		fmt.Sprintf("bot%d_%d", row, col),
		fmt.Sprintf("right%d_%d", row, col),
		fmt.Sprintf("top%d_%d", row, col+1),
		fmt.Sprintf("left%d_%d", row+1, col),
	}
}

// NewGridTopology builds the local mapping for a rows x cols grid.
func NewGridTopology(rows, cols int, lengths GridLengths) *Topology {
	if rows < 1 || cols < 1 {
		panic(fmt.Sprintf("NewGridTopology: rows and cols must be >= 1, got %dx%d", rows, cols))
	}
	t := &Topology{
		Rows:                   rows,
		Cols:                   cols,
		ControlledEdges:        make(map[string]bool),
		CharacteristicDistance: max(lengths.Inner, lengths.Short, lengths.Long),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			idx := row*cols + col
			t.Nodes = append(t.Nodes, NodeEdges{
				ID:    NodeID(idx),
				Index: idx,
				Edges: GridIncomingEdges(row, col),
			})
		}
	}
	for col := 0; col < cols; col++ {
		t.ControlledEdges[fmt.Sprintf("left%d_%d", rows, col)] = true
	}
	for row := 0; row < rows; row++ {
		t.ControlledEdges[fmt.Sprintf("bot%d_0", row)] = true
	}
	t.EntryEdge = "bot0_0"
	t.index()
	return t
}

// NewLoopTopology builds a mapping for networks without intersections. Every
// listed edge is controlled and the first one is the entry edge.
func NewLoopTopology(edges []string) *Topology {
	t := &Topology{ControlledEdges: make(map[string]bool)}
	for _, e := range edges {
		t.ControlledEdges[e] = true
	}
	if len(edges) > 0 {
		t.EntryEdge = edges[0]
	}
	t.index()
	return t
}

// WithControlledEdges returns a copy of t using edges as the controlled set.
func (t *Topology) WithControlledEdges(edges []string) *Topology {
	cp := *t
	cp.ControlledEdges = make(map[string]bool, len(edges))
	for _, e := range edges {
		cp.ControlledEdges[e] = true
	}
	return &cp
}

func (t *Topology) index() {
	t.byID = make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		t.byID[n.ID] = i
	}
}

// Node returns the mapping entry for a traffic-light id.
func (t *Topology) Node(id string) (NodeEdges, bool) {
	i, ok := t.byID[id]
	if !ok {
		return NodeEdges{}, false
	}
	return t.Nodes[i], true
}

// IsControlled reports whether learned actions apply on edge.
func (t *Topology) IsControlled(edge string) bool {
	return t.ControlledEdges[edge]
}

// RelativeNode returns the index of the neighbor of node idx in direction d,
// or -1 when idx sits on the grid boundary in that direction.
func (t *Topology) RelativeNode(idx int, d Direction) int {
	switch d {
	case Top:
		if n := idx + t.Cols; n < t.Rows*t.Cols {
			return n
		}
	case Bottom:
		if n := idx - t.Cols; n >= 0 {
			return n
		}
	case Left:
		if idx%t.Cols != 0 {
			return idx - 1
		}
	case Right:
		if idx%t.Cols != t.Cols-1 {
			return idx + 1
		}
	}
	return -1
}
