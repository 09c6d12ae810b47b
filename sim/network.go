package sim

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/traffic-rl/flowgrid/env"
)

// JunctionLength is the length of internal junction segments (meters).
const JunctionLength = 5.0

// Axis of travel, matching the traffic-light direction values.
const (
	AxisNS = 0
	AxisEW = 1
)

// Edge is one directed road segment.
type Edge struct {
	ID         string
	Length     float64
	SpeedLimit float64
	Lanes      int
	// Light is the traffic light at the downstream end ("" when none) and
	// Axis the phase direction that gives this edge green.
	Light string
	Axis  int
}

// Internal reports whether the edge is a junction segment.
func (e *Edge) Internal() bool { return env.IsInternalEdge(e.ID) }

// Network is a road network plus its routing line graph: one graph node per
// edge, one graph arc per allowed edge-to-edge transition.
type Network struct {
	edges    map[string]*Edge
	order    []string // non-internal edges in insertion order
	route    []string // loop order for closed networks, entry edges for grids
	closed   bool
	lights   []string
	topology *env.Topology

	graph *simple.DirectedGraph
	ids   map[string]int64
	names map[int64]string
}

func newNetwork() *Network {
	return &Network{
		edges: make(map[string]*Edge),
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

func (n *Network) addEdge(e *Edge) {
	if _, dup := n.edges[e.ID]; dup {
		panic(fmt.Sprintf("network: duplicate edge %q", e.ID))
	}
	id := int64(len(n.ids))
	n.edges[e.ID] = e
	n.ids[e.ID] = id
	n.names[id] = e.ID
	n.graph.AddNode(simple.Node(id))
	if !e.Internal() {
		n.order = append(n.order, e.ID)
	}
}

func (n *Network) connect(from, to string) {
	a, okA := n.ids[from]
	b, okB := n.ids[to]
	if !okA || !okB {
		panic(fmt.Sprintf("network: connect %q -> %q: unknown edge", from, to))
	}
	n.graph.SetEdge(n.graph.NewEdge(simple.Node(a), simple.Node(b)))
}

// chain connects edges in sequence; closed also links the last to the first.
func (n *Network) chain(edges []string, closed bool) {
	for i := 0; i+1 < len(edges); i++ {
		n.connect(edges[i], edges[i+1])
	}
	if closed && len(edges) > 1 {
		n.connect(edges[len(edges)-1], edges[0])
	}
}

// Edge returns the edge with the given id.
func (n *Network) Edge(id string) (*Edge, bool) {
	e, ok := n.edges[id]
	return e, ok
}

// EdgeList returns all non-internal edges.
func (n *Network) EdgeList() []string { return n.order }

// Lights returns the ids of signalized intersections.
func (n *Network) Lights() []string { return n.lights }

// Closed reports whether the network is a single loop with no exits.
func (n *Network) Closed() bool { return n.closed }

// Route returns the loop order of a closed network or the entry edges of an
// open one.
func (n *Network) Route() []string { return n.route }

// Topology returns the static local mapping for this network.
func (n *Network) Topology() *env.Topology { return n.topology }

// Successors lists the edges a vehicle may enter after id.
func (n *Network) Successors(id string) []string {
	nid, ok := n.ids[id]
	if !ok {
		return nil
	}
	var out []string
	for it := n.graph.From(nid); it.Next(); {
		out = append(out, n.names[it.Node().ID()])
	}
	return out
}

// Next picks the successor of id, choosing uniformly when several exist.
// Returns "" when id leaves the network.
func (n *Network) Next(id string, rng *rand.Rand) string {
	succ := n.Successors(id)
	switch len(succ) {
	case 0:
		return ""
	case 1:
		return succ[0]
	default:
		return succ[rng.Intn(len(succ))]
	}
}

// MaxSpeed is the highest speed limit of any edge.
func (n *Network) MaxSpeed() float64 {
	m := 0.0
	for _, e := range n.edges {
		m = math.Max(m, e.SpeedLimit)
	}
	return m
}

// NewRingNetwork builds a single-loop network of four equal edges.
func NewRingNetwork(length float64, lanes int, speedLimit float64) *Network {
	n := newNetwork()
	loop := []string{"bottom", "right", "top", "left"}
	for _, id := range loop {
		n.addEdge(&Edge{ID: id, Length: length / 4, SpeedLimit: speedLimit, Lanes: lanes})
	}
	n.chain(loop, true)
	n.route = loop
	n.closed = true
	n.topology = env.NewLoopTopology(loop)
	return n
}

// NewFigureEightNetwork builds a closed figure-eight loop. Both crossings of
// the center intersection are modeled as separate unsignalized junction
// segments; right-of-way between them is not simulated.
func NewFigureEightNetwork(radius float64, lanes int, speedLimit float64) *Network {
	n := newNetwork()
	ring := 1.5 * math.Pi * radius
	loop := []struct {
		id     string
		length float64
	}{
		{"bottom", radius},
		{":center_0", JunctionLength},
		{"top", radius},
		{"upper_ring", ring},
		{"right", radius},
		{":center_1", JunctionLength},
		{"left", radius},
		{"lower_ring", ring},
	}
	ids := make([]string, len(loop))
	for i, e := range loop {
		n.addEdge(&Edge{ID: e.id, Length: e.length, SpeedLimit: speedLimit, Lanes: lanes})
		ids[i] = e.id
	}
	n.chain(ids, true)
	n.route = ids
	n.closed = true
	var outer []string
	for _, id := range ids {
		if !env.IsInternalEdge(id) {
			outer = append(outer, id)
		}
	}
	n.topology = env.NewLoopTopology(outer)
	return n
}

// NewGridNetwork builds a rows x cols grid of signalized intersections with
// straight-through routes in all four directions.
func NewGridNetwork(rows, cols int, lengths env.GridLengths, lanes int, speedLimit float64) *Network {
	if rows < 1 || cols < 1 {
		panic(fmt.Sprintf("NewGridNetwork: rows and cols must be >= 1, got %dx%d", rows, cols))
	}
	n := newNetwork()
	node := func(r, c int) string { return env.NodeID(r*cols + c) }
	add := func(id string, length float64, light string, axis int) {
		n.addEdge(&Edge{ID: id, Length: length, SpeedLimit: speedLimit, Lanes: lanes, Light: light, Axis: axis})
	}
	junction := func(r, c, dir int) string {
		id := fmt.Sprintf(":%s_%d", node(r, c), dir)
		add(id, JunctionLength, "", 0)
		return id
	}
	hLen := func(c int) float64 {
		if c == 0 || c == cols {
			return lengths.Short
		}
		return lengths.Inner
	}
	vLen := func(r int) float64 {
		if r == 0 || r == rows {
			return lengths.Long
		}
		return lengths.Inner
	}

	for r := 0; r < rows; r++ {
		// eastbound: bot{r}_{c} enters column c
		for c := 0; c <= cols; c++ {
			light := ""
			if c < cols {
				light = node(r, c)
			}
			add(fmt.Sprintf("bot%d_%d", r, c), hLen(c), light, AxisEW)
		}
		// westbound: top{r}_{c} enters column c-1
		for c := 0; c <= cols; c++ {
			light := ""
			if c > 0 {
				light = node(r, c-1)
			}
			add(fmt.Sprintf("top%d_%d", r, c), hLen(c), light, AxisEW)
		}
	}
	for c := 0; c < cols; c++ {
		// northbound: right{r}_{c} enters row r
		for r := 0; r <= rows; r++ {
			light := ""
			if r < rows {
				light = node(r, c)
			}
			add(fmt.Sprintf("right%d_%d", r, c), vLen(r), light, AxisNS)
		}
		// southbound: left{r}_{c} enters row r-1
		for r := 0; r <= rows; r++ {
			light := ""
			if r > 0 {
				light = node(r-1, c)
			}
			add(fmt.Sprintf("left%d_%d", r, c), vLen(r), light, AxisNS)
		}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			east := junction(r, c, 0)
			n.connect(fmt.Sprintf("bot%d_%d", r, c), east)
			n.connect(east, fmt.Sprintf("bot%d_%d", r, c+1))

			north := junction(r, c, 1)
			n.connect(fmt.Sprintf("right%d_%d", r, c), north)
			n.connect(north, fmt.Sprintf("right%d_%d", r+1, c))

			west := junction(r, c, 2)
			n.connect(fmt.Sprintf("top%d_%d", r, c+1), west)
			n.connect(west, fmt.Sprintf("top%d_%d", r, c))

			south := junction(r, c, 3)
			n.connect(fmt.Sprintf("left%d_%d", r+1, c), south)
			n.connect(south, fmt.Sprintf("left%d_%d", r, c))

			n.lights = append(n.lights, node(r, c))
		}
	}

	for r := 0; r < rows; r++ {
		n.route = append(n.route, fmt.Sprintf("bot%d_0", r), fmt.Sprintf("top%d_%d", r, cols))
	}
	for c := 0; c < cols; c++ {
		n.route = append(n.route, fmt.Sprintf("right0_%d", c), fmt.Sprintf("left%d_%d", rows, c))
	}
	n.topology = env.NewGridTopology(rows, cols, lengths)
	return n
}
