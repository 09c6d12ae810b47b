package env

import (
	"errors"
	"maps"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrInvalidAction is wrapped when an action has the wrong shape or is not
// finite.
var ErrInvalidAction = errors.New("invalid action")

// ActionOutcome describes what the mapper did with one agent's action.
type ActionOutcome int

const (
	// ActionSkipped: the vehicle is between edges; nothing was changed.
	ActionSkipped ActionOutcome = iota
	// ActionApplied: the action moved the speed ceiling on a controlled edge.
	ActionApplied
	// ActionReset: the vehicle is off the controlled region; the ceiling was
	// reset to the default speed.
	ActionReset
)

func (o ActionOutcome) String() string {
	switch o {
	case ActionApplied:
		return "applied"
	case ActionReset:
		return "reset"
	default:
		return "skipped"
	}
}

// AppliedAction records the effect of one agent action.
type AppliedAction struct {
	AgentID  string
	Edge     string
	Action   []float64 // after clipping to the action box
	MaxSpeed float64   // ceiling after the command; 0 when skipped
	Outcome  ActionOutcome
}

// ActionMapper converts speed-ceiling deltas into simulator commands.
type ActionMapper struct {
	space    Box
	topo     *Topology
	minSpeed float64
	maxSpeed float64
	reset    float64
}

// NewActionMapper creates an ActionMapper from a validated config.
func NewActionMapper(cfg *Config, topo *Topology) *ActionMapper {
	return &ActionMapper{
		space:    ActionSpace(cfg),
		topo:     topo,
		minSpeed: *cfg.Speed.Min,
		maxSpeed: *cfg.Speed.Max,
		reset:    *cfg.Speed.Default,
	}
}

// ActionSpace returns the per-vehicle action box: a speed delta bounded by
// the configured decel/accel over one simulation step.
func ActionSpace(cfg *Config) Box {
	return Box{Low: -*cfg.MaxDecel * cfg.SimStep, High: *cfg.MaxAccel * cfg.SimStep, Dim: 1}
}

// Space returns the action box.
func (m *ActionMapper) Space() Box {
	return m.space
}

// Filter keeps only actions whose key is in the live controlled set and
// validates each kept action. Unknown keys are dropped silently.
func (m *ActionMapper) Filter(actions map[string][]float64, live []string) (map[string][]float64, error) {
	if len(actions) == 0 {
		return map[string][]float64{}, nil
	}
	controlled := lo.SliceToMap(live, func(id string) (string, bool) { return id, true })
	out := make(map[string][]float64, len(actions))
	for id, a := range actions {
		if !controlled[id] {
			logrus.Tracef("ignoring action for uncontrolled agent %s", id)
			continue
		}
		if err := m.space.Check(a); err != nil {
			return nil, err
		}
		out[id] = m.space.Clip(a)
	}
	return out, nil
}

// Apply issues max-speed commands for already filtered actions. Results are
// ordered by agent id.
func (m *ActionMapper) Apply(k *Kernel, actions map[string][]float64) []AppliedAction {
	out := make([]AppliedAction, 0, len(actions))
	for _, id := range slices.Sorted(maps.Keys(actions)) {
		a := actions[id]
		edge := k.Vehicle.Edge(id)
		rec := AppliedAction{AgentID: id, Edge: edge, Action: a}
		switch {
		case edge == "":
			rec.Outcome = ActionSkipped
		case !IsInternalEdge(edge) && m.topo.IsControlled(edge):
			next := lo.Clamp(k.Vehicle.MaxSpeed(id)+a[0], m.minSpeed, m.maxSpeed)
			k.Vehicle.SetMaxSpeed(id, next)
			rec.MaxSpeed = next
			rec.Outcome = ActionApplied
		default:
			k.Vehicle.SetMaxSpeed(id, m.reset)
			rec.MaxSpeed = m.reset
			rec.Outcome = ActionReset
		}
		out = append(out, rec)
	}
	return out
}
