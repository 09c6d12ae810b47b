package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridTopology(t *testing.T) {
	// GIVEN a 2x3 grid
	topo := NewGridTopology(2, 3, GridLengths{Inner: 300, Short: 100, Long: 150})

	// THEN it has one node per intersection with four incoming edges
	require.Len(t, topo.Nodes, 6)
	node, ok := topo.Node("center4")
	require.True(t, ok)
	assert.Equal(t, 4, node.Index)
	assert.Equal(t, []string{"bot1_1", "right1_1", "top1_2", "left2_1"}, node.Edges)

	// AND the controlled edges are the southbound top row and the eastbound first column
	want := []string{"left2_0", "left2_1", "left2_2", "bot0_0", "bot1_0"}
	assert.Len(t, topo.ControlledEdges, len(want))
	for _, e := range want {
		assert.True(t, topo.IsControlled(e), e)
	}
	assert.False(t, topo.IsControlled("bot0_1"))
	assert.Equal(t, "bot0_0", topo.EntryEdge)
	assert.Equal(t, 300.0, topo.CharacteristicDistance)

	_, ok = topo.Node("center9")
	assert.False(t, ok)
}

func TestTopology_RelativeNode(t *testing.T) {
	topo := NewGridTopology(2, 3, GridLengths{Inner: 1, Short: 1, Long: 1})
	tests := []struct {
		idx  int
		dir  Direction
		want int
	}{
		{0, Top, 3},
		{0, Bottom, -1},
		{0, Left, -1},
		{0, Right, 1},
		{4, Top, -1},
		{4, Bottom, 1},
		{4, Left, 3},
		{4, Right, 5},
		{5, Right, -1},
		{3, Left, -1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, topo.RelativeNode(tc.idx, tc.dir), "idx %d dir %d", tc.idx, tc.dir)
	}
}

func TestNewGridTopology_InvalidShape_Panics(t *testing.T) {
	assert.Panics(t, func() { NewGridTopology(0, 1, GridLengths{}) })
}

func TestNewLoopTopology(t *testing.T) {
	topo := NewLoopTopology([]string{"bottom", "right"})
	assert.Empty(t, topo.Nodes)
	assert.Equal(t, "bottom", topo.EntryEdge)
	assert.True(t, topo.IsControlled("right"))
	assert.Equal(t, 0.0, topo.CharacteristicDistance)
}

func TestTopology_WithControlledEdges_Copies(t *testing.T) {
	orig := NewGridTopology(1, 1, GridLengths{Inner: 1, Short: 1, Long: 1})
	cp := orig.WithControlledEdges([]string{"top0_1"})

	assert.True(t, cp.IsControlled("top0_1"))
	assert.False(t, cp.IsControlled("bot0_0"))
	assert.True(t, orig.IsControlled("bot0_0"))
	_, ok := cp.Node("center0")
	assert.True(t, ok)
}
