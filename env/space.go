package env

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Box is a fixed-shape, bounded real-valued space.
type Box struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Dim  int     `json:"dim"`
}

// Contains reports whether v has the right dimension and lies within bounds.
func (b Box) Contains(v []float64) bool {
	if len(v) != b.Dim {
		return false
	}
	for _, x := range v {
		if x < b.Low || x > b.High || math.IsNaN(x) {
			return false
		}
	}
	return true
}

// Clip returns a copy of v clamped into the box bounds. The caller must
// ensure len(v) == b.Dim.
func (b Box) Clip(v []float64) []float64 {
	return lo.Map(v, func(x float64, _ int) float64 {
		return lo.Clamp(x, b.Low, b.High)
	})
}

// Check validates the shape and finiteness of an action.
func (b Box) Check(v []float64) error {
	if len(v) != b.Dim {
		return fmt.Errorf("%w: dimension %d, want %d", ErrInvalidAction, len(v), b.Dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is %f", ErrInvalidAction, i, x)
		}
	}
	return nil
}

// ObservationSize returns the per-agent observation length for the given
// shape parameters.
func ObservationSize(numObserved, numLocalEdges, numLocalLights int, trafficLights bool) int {
	n := 3*numLocalEdges*numObserved + 2*numLocalEdges
	if trafficLights {
		n += 3 * (1 + numLocalLights)
	}
	return n
}
