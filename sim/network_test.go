package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-rl/flowgrid/env"
)

func TestNewRingNetwork_ClosedLoop(t *testing.T) {
	// GIVEN a 230m ring
	n := NewRingNetwork(230, 1, 30)

	// THEN it has four equal edges linked into a loop
	assert.True(t, n.Closed())
	assert.Equal(t, []string{"bottom", "right", "top", "left"}, n.EdgeList())
	for _, id := range n.EdgeList() {
		e, ok := n.Edge(id)
		require.True(t, ok)
		assert.InDelta(t, 57.5, e.Length, 1e-9)
	}
	assert.Equal(t, []string{"right"}, n.Successors("bottom"))
	assert.Equal(t, "bottom", n.Next("left", rand.New(rand.NewSource(1))))
	assert.Empty(t, n.Lights())
	assert.Equal(t, "bottom", n.Topology().EntryEdge)
}

func TestNewFigureEightNetwork_InternalEdgesHidden(t *testing.T) {
	n := NewFigureEightNetwork(30, 1, 30)

	assert.Equal(t, []string{"bottom", "top", "upper_ring", "right", "left", "lower_ring"}, n.EdgeList())
	assert.Equal(t, []string{":center_0"}, n.Successors("bottom"))
	assert.Equal(t, []string{"bottom"}, n.Successors("lower_ring"))
	assert.False(t, n.Topology().IsControlled(":center_0"))
}

func TestNewGridNetwork_Shape(t *testing.T) {
	// GIVEN a 2x3 grid
	lengths := env.GridLengths{Inner: 300, Short: 100, Long: 150}
	n := NewGridNetwork(2, 3, lengths, 1, 23)

	// THEN edge, light and route counts follow the grid shape
	assert.Len(t, n.EdgeList(), 2*4*2+3*3*2)
	assert.Equal(t, []string{"center0", "center1", "center2", "center3", "center4", "center5"}, n.Lights())
	assert.Len(t, n.Route(), 2*2+2*3)
	assert.False(t, n.Closed())

	// AND eastbound traffic crosses each junction and exits at the far side
	assert.Equal(t, []string{":center0_0"}, n.Successors("bot0_0"))
	assert.Equal(t, []string{"bot0_1"}, n.Successors(":center0_0"))
	assert.Empty(t, n.Successors("bot0_3"))
	assert.Equal(t, "", n.Next("bot0_3", rand.New(rand.NewSource(1))))

	// AND outer edges use the short or long length
	e, _ := n.Edge("bot0_0")
	assert.Equal(t, 100.0, e.Length)
	e, _ = n.Edge("right0_1")
	assert.Equal(t, 150.0, e.Length)
	e, _ = n.Edge("bot1_1")
	assert.Equal(t, 300.0, e.Length)
}

func TestNewGridNetwork_IncomingEdgesMatchTopology(t *testing.T) {
	// GIVEN a grid network and its topology
	n := NewGridNetwork(3, 2, env.GridLengths{Inner: 200, Short: 80, Long: 80}, 1, 23)
	topo := n.Topology()

	// THEN every incoming edge of a node exists and is governed by that node's light
	for _, node := range topo.Nodes {
		for _, id := range node.Edges {
			e, ok := n.Edge(id)
			require.True(t, ok, "edge %s of %s", id, node.ID)
			assert.Equal(t, node.ID, e.Light, "edge %s", id)
		}
	}
	// AND every controlled edge exists
	for id := range topo.ControlledEdges {
		_, ok := n.Edge(id)
		assert.True(t, ok, "controlled edge %s", id)
	}
}

func TestNewGridNetwork_InvalidShape_Panics(t *testing.T) {
	assert.Panics(t, func() { NewGridNetwork(0, 2, env.GridLengths{Inner: 1, Short: 1, Long: 1}, 1, 10) })
}

func TestNetwork_MaxSpeed(t *testing.T) {
	assert.Equal(t, 30.0, NewRingNetwork(100, 1, 30).MaxSpeed())
}
