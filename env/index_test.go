package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKClosestToIntersection(t *testing.T) {
	// GIVEN four vehicles on a 100m edge and one elsewhere
	f := newFakeSim().edge("e", 100, 10).edge("empty", 100, 10).edge("other", 50, 10)
	f.vehicle("a", "e", 10, 0, false)
	f.vehicle("b", "e", 90, 0, false)
	f.vehicle("c", "e", 50, 0, false)
	f.vehicle("d", "e", 50, 0, false)
	f.vehicle("x", "other", 49, 0, false)
	k := f.kernel()

	tests := []struct {
		name string
		edge string
		n    int
		want []string
	}{
		{"closest first, ties by id", "e", 4, []string{"b", "c", "d", "a"}},
		{"truncated to n", "e", 2, []string{"b", "c"}},
		{"n larger than population", "e", 10, []string{"b", "c", "d", "a"}},
		{"empty edge", "empty", 3, nil},
		{"unknown edge", "nowhere", 3, nil},
		{"zero n", "e", 0, nil},
		{"negative n", "e", -1, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := KClosestToIntersection(k, tc.edge, tc.n)
			assert.Equal(t, tc.want, got)
		})
	}
}
