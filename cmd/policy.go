package cmd

import (
	"fmt"
	"math/rand"

	"github.com/traffic-rl/flowgrid/env"
	"github.com/traffic-rl/flowgrid/sim"
)

// Policy maps the RL vehicle roster to one action per vehicle. Vehicles not
// currently in the network are ignored by the environment.
type Policy interface {
	Act(roster []string) map[string][]float64
}

// ValidPolicies is the set of recognized baseline policy names.
var ValidPolicies = map[string]bool{"zero": true, "random": true}

// NewPolicy creates a baseline policy by name. Panics on unrecognized names.
func NewPolicy(name string, seed int64, space env.Box) Policy {
	if !ValidPolicies[name] {
		panic(fmt.Sprintf("unknown policy %q", name))
	}
	switch name {
	case "zero":
		return &zeroPolicy{dim: space.Dim}
	case "random":
		rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemPolicy)
		return &randomPolicy{space: space, rng: rng}
	default:
		panic(fmt.Sprintf("unhandled policy %q", name))
	}
}

// zeroPolicy keeps every vehicle at its current speed.
type zeroPolicy struct {
	dim int
}

func (p *zeroPolicy) Act(roster []string) map[string][]float64 {
	out := make(map[string][]float64, len(roster))
	for _, id := range roster {
		out[id] = make([]float64, p.dim)
	}
	return out
}

// randomPolicy samples uniformly inside the action box.
type randomPolicy struct {
	space env.Box
	rng   *rand.Rand
}

func (p *randomPolicy) Act(roster []string) map[string][]float64 {
	out := make(map[string][]float64, len(roster))
	for _, id := range roster {
		a := make([]float64, p.space.Dim)
		for i := range a {
			a[i] = p.space.Low + p.rng.Float64()*(p.space.High-p.space.Low)
		}
		out[id] = a
	}
	return out
}
