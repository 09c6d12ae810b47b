package env

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/traffic-rl/flowgrid/env/trace"
)

// DoneAll is the dones key signalling episode termination.
const DoneAll = "__all__"

// StepResult is the agent-keyed outcome of one environment step.
type StepResult struct {
	Observations map[string][]float64
	Rewards      map[string]float64
	Dones        map[string]bool
	Infos        map[string]map[string]any
}

// MultiEnv is the multi-agent partially observed traffic control environment.
// It owns the roster and per-step maps; the topology is shared read-only.
//
// Not safe for concurrent use: one Step at a time.
type MultiEnv struct {
	cfg      *Config
	kernel   *Kernel
	topo     *Topology
	observer ObservationBuilder
	reward   RewardFunction
	actions  *ActionMapper
	pop      *Population
	trace    *trace.EpisodeTrace

	step        int
	observedIDs [][]string
}

// Option customizes a MultiEnv.
type Option func(*MultiEnv)

// WithObserver replaces the configured observation builder.
func WithObserver(o ObservationBuilder) Option {
	return func(e *MultiEnv) { e.observer = o }
}

// WithReward replaces the configured reward function.
func WithReward(r RewardFunction) Option {
	return func(e *MultiEnv) { e.reward = r }
}

// WithTrace records step, action and reinsertion decisions into t.
func WithTrace(t *trace.EpisodeTrace) Option {
	return func(e *MultiEnv) { e.trace = t }
}

// NewMultiEnv validates cfg and wires the environment components around k.
// The roster is the set of RL vehicles present in k at construction.
func NewMultiEnv(cfg *Config, k *Kernel, topo *Topology, opts ...Option) (*MultiEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if k == nil || k.Vehicle == nil || k.Network == nil || k.TrafficLight == nil || k.Simulation == nil {
		return nil, fmt.Errorf("env kernel: all facade components are required")
	}
	if len(cfg.ControlledEdges) > 0 {
		topo = topo.WithControlledEdges(cfg.ControlledEdges)
	}
	e := &MultiEnv{
		cfg:      cfg,
		kernel:   k,
		topo:     topo,
		observer: NewObservationBuilder(cfg.Observer, cfg, topo),
		reward:   NewRewardFunction(cfg.Reward, cfg),
		actions:  NewActionMapper(cfg, topo),
		pop:      NewPopulation(k.Vehicle.RLIDs(), cfg, topo),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ObservationSpace returns the per-agent observation box.
func (e *MultiEnv) ObservationSpace() Box { return e.observer.Space() }

// ActionSpace returns the per-agent action box.
func (e *MultiEnv) ActionSpace() Box { return e.actions.Space() }

// Population exposes the roster manager.
func (e *MultiEnv) Population() *Population { return e.pop }

// StepCount returns the number of environment steps since Reset.
func (e *MultiEnv) StepCount() int { return e.step }

// ObservedIDs returns the vehicles used by the most recent observation.
func (e *MultiEnv) ObservedIDs() [][]string { return e.observedIDs }

// NumControlled is the reward normalizer: the number of traffic-light agents
// when the network has any, otherwise the roster size.
func (e *MultiEnv) NumControlled() int {
	if n := len(e.kernel.TrafficLight.IDs()); n > 0 {
		return n
	}
	return len(e.pop.roster)
}

// Reset restarts the simulation, clears per-episode state and returns the
// initial observations.
func (e *MultiEnv) Reset() (map[string][]float64, error) {
	if err := e.kernel.Simulation.Reset(); err != nil {
		return nil, fmt.Errorf("resetting simulation: %w", err)
	}
	e.step = 0
	e.observedIDs = nil
	e.pop.Reset()
	for i := 0; i < e.cfg.WarmupSteps; i++ {
		if err := e.kernel.Simulation.Advance(); err != nil {
			return nil, fmt.Errorf("warmup step %d: %w", i, err)
		}
	}
	if e.trace != nil {
		e.trace.Reset()
	}
	logrus.Infof("episode reset: %d roster vehicles, %d traffic lights", len(e.pop.roster), len(e.kernel.TrafficLight.IDs()))
	return e.observe(), nil
}

// Step applies agent actions, advances the simulation and returns the
// agent-keyed observations, rewards and dones. Actions for agents outside
// the live controlled set are ignored.
func (e *MultiEnv) Step(actions map[string][]float64) (StepResult, error) {
	k := e.kernel
	accepted, err := e.actions.Filter(actions, k.Vehicle.RLIDs())
	if err != nil {
		return StepResult{}, err
	}
	acting := slices.Sorted(maps.Keys(accepted))

	collided := false
	for i := 0; i < e.cfg.SimsPerStep; i++ {
		applied := e.actions.Apply(k, accepted)
		reinserted := e.pop.Maintain(k)
		for _, ids := range e.observedIDs {
			for _, id := range ids {
				k.Vehicle.SetObserved(id)
			}
		}
		if err := k.Simulation.Advance(); err != nil {
			return StepResult{}, fmt.Errorf("advancing simulation: %w", err)
		}
		e.record(applied, reinserted)
		if k.Simulation.Collided() {
			collided = true
			break
		}
	}
	e.step++

	obs := e.observe()
	rewards := e.reward.Compute(RewardContext{
		Kernel:     k,
		Evaluate:   e.cfg.Evaluate,
		Collided:   collided,
		Controlled: e.NumControlled(),
	}, acting)

	done := collided || e.step >= e.cfg.Horizon
	dones := map[string]bool{DoneAll: done}
	infos := make(map[string]map[string]any, len(obs))
	for id := range obs {
		dones[id] = done
		infos[id] = map[string]any{}
	}

	if e.trace != nil {
		e.trace.RecordStep(trace.StepRecord{
			Step:        e.step,
			Time:        k.Simulation.Time(),
			NumVehicles: len(k.Vehicle.IDs()),
			NumRL:       k.Vehicle.NumRLVehicles(),
			Rewards:     rewards,
			Collided:    collided,
			Done:        done,
		})
	}
	if done {
		logrus.Infof("episode done at step %d (collided=%v)", e.step, collided)
	}
	return StepResult{Observations: obs, Rewards: rewards, Dones: dones, Infos: infos}, nil
}

func (e *MultiEnv) observe() map[string][]float64 {
	obs := e.observer.Build(e.kernel)
	e.observedIDs = slices.Clone(e.observer.ObservedIDs())
	return obs
}

func (e *MultiEnv) record(applied []AppliedAction, reinserted []Reinsertion) {
	if e.trace == nil {
		return
	}
	for _, a := range applied {
		e.trace.RecordAction(trace.ActionRecord{
			Step:     e.step,
			AgentID:  a.AgentID,
			Edge:     a.Edge,
			Delta:    a.Action[0],
			MaxSpeed: a.MaxSpeed,
			Outcome:  a.Outcome.String(),
		})
	}
	for _, r := range reinserted {
		e.trace.RecordReinsertion(trace.ReinsertionRecord{
			Step:      e.step,
			VehicleID: r.VehicleID,
			Edge:      r.Edge,
			Lane:      r.Lane,
			Inserted:  r.Outcome == Inserted,
			Reason:    r.Reason,
		})
	}
}
