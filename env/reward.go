package env

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// float32Eps guards divisions by vehicle counts and norms.
const float32Eps = 1.1920929e-07

// RewardContext carries what a reward function may read for one step.
type RewardContext struct {
	Kernel     *Kernel
	Evaluate   bool
	Collided   bool
	Controlled int // number of controlled agents sharing the reward
}

// RewardFunction maps the acting agents of one step to their rewards.
// An empty acting set yields an empty map.
type RewardFunction interface {
	Compute(ctx RewardContext, acting []string) map[string]float64
}

// NewRewardFunction creates a reward function by name.
// Panics on unrecognized names; Config.Validate rejects them first.
func NewRewardFunction(name string, cfg *Config) RewardFunction {
	if !ValidRewards[name] {
		panic(fmt.Sprintf("unknown reward %q", name))
	}
	switch name {
	case "", "min-delay-standstill":
		return &MinDelayStandstill{Gain: *cfg.StandstillGain}
	case "desired-velocity":
		return &DesiredVelocity{Target: *cfg.TargetVelocity}
	case "local-delay":
		return &LocalDelay{}
	default:
		panic(fmt.Sprintf("unhandled reward %q", name))
	}
}

// MinDelayStandstill is the shared grid reward: negated network delay plus,
// outside evaluation, a standstill penalty.
type MinDelayStandstill struct {
	Gain float64
}

// Compute implements RewardFunction.
func (r *MinDelayStandstill) Compute(ctx RewardContext, acting []string) map[string]float64 {
	if len(acting) == 0 {
		return map[string]float64{}
	}
	rew := -MinDelayUnscaled(ctx.Kernel)
	if !ctx.Evaluate {
		rew += PenalizeStandstill(ctx.Kernel, r.Gain)
	}
	return broadcast(rew/float64(max(ctx.Controlled, 1)), acting)
}

// DesiredVelocity rewards closeness of all speeds to a target velocity.
type DesiredVelocity struct {
	Target float64
}

// Compute implements RewardFunction.
func (r *DesiredVelocity) Compute(ctx RewardContext, acting []string) map[string]float64 {
	if len(acting) == 0 {
		return map[string]float64{}
	}
	rew := DesiredVelocityReward(ctx.Kernel, r.Target, ctx.Collided)
	return broadcast(rew/float64(max(ctx.Controlled, 1)), acting)
}

// LocalDelay gives each acting vehicle its own normalized delay.
type LocalDelay struct{}

// Compute implements RewardFunction.
func (r *LocalDelay) Compute(ctx RewardContext, acting []string) map[string]float64 {
	out := make(map[string]float64, len(acting))
	if len(acting) == 0 {
		return out
	}
	k := ctx.Kernel
	vTop := maxSpeedLimit(k)
	live := make(map[string]bool)
	for _, id := range k.Vehicle.RLIDs() {
		live[id] = true
	}
	for _, id := range acting {
		if !live[id] || vTop == 0 {
			out[id] = 0
			continue
		}
		out[id] = -k.Simulation.SimStep() * (vTop - k.Vehicle.Speed(id)) / vTop
	}
	return out
}

func broadcast(v float64, acting []string) map[string]float64 {
	out := make(map[string]float64, len(acting))
	for _, id := range acting {
		out[id] = v
	}
	return out
}

func maxSpeedLimit(k *Kernel) float64 {
	edges := k.Network.EdgeList()
	if len(edges) == 0 {
		return 0
	}
	limits := make([]float64, len(edges))
	for i, e := range edges {
		limits[i] = k.Network.SpeedLimit(e)
	}
	return floats.Max(limits)
}

// MinDelayUnscaled is the average delay of all vehicles relative to the top
// speed limit, in seconds per step.
func MinDelayUnscaled(k *Kernel) float64 {
	vTop := maxSpeedLimit(k)
	ids := k.Vehicle.IDs()
	if vTop == 0 || len(ids) == 0 {
		return 0
	}
	var cost float64
	for _, id := range ids {
		v := k.Vehicle.Speed(id)
		if v < -1e-6 {
			continue
		}
		cost += (vTop - v) / vTop
	}
	cost *= k.Simulation.SimStep()
	return cost / (float64(len(ids)) + float32Eps)
}

// PenalizeStandstill returns -gain times the number of stopped vehicles.
func PenalizeStandstill(k *Kernel, gain float64) float64 {
	var stopped int
	for _, id := range k.Vehicle.IDs() {
		if k.Vehicle.Speed(id) == 0 {
			stopped++
		}
	}
	return -gain * float64(stopped)
}

// DesiredVelocityReward is in [0, 1]: 1 when every vehicle drives at target.
func DesiredVelocityReward(k *Kernel, target float64, collided bool) float64 {
	ids := k.Vehicle.IDs()
	if collided || len(ids) == 0 {
		return 0
	}
	diff := make([]float64, len(ids))
	ref := make([]float64, len(ids))
	for i, id := range ids {
		v := k.Vehicle.Speed(id)
		if v < -100 {
			return 0
		}
		diff[i] = v - target
		ref[i] = target
	}
	maxCost := floats.Norm(ref, 2)
	cost := floats.Norm(diff, 2)
	return math.Max(maxCost-cost, 0) / (maxCost + float32Eps)
}
