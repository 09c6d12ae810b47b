package env

import (
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// MemberState is the lifecycle state of one roster member.
type MemberState int

const (
	MemberPresent MemberState = iota
	MemberExited
	MemberReinserted
)

func (s MemberState) String() string {
	switch s {
	case MemberExited:
		return "exited"
	case MemberReinserted:
		return "reinserted"
	default:
		return "present"
	}
}

// InsertOutcome is the typed result of one reinsertion attempt.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Rejected
)

func (o InsertOutcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "rejected"
}

// Reinsertion records one attempt to bring an exited roster member back.
type Reinsertion struct {
	VehicleID string
	Edge      string
	Lane      int
	Outcome   InsertOutcome
	Reason    string // backend error text for rejections
}

// Population keeps the RL vehicle roster at a fixed size. Exited members are
// re-added at a canonical entry point; rejected attempts are retried on the
// following step.
type Population struct {
	roster  []string
	states  map[string]MemberState
	enabled bool

	entryEdge   string
	rlType      string
	maxLanes    int
	laneScaling int

	attempts   int
	rejections int
}

// NewPopulation captures roster as the fixed set of controlled vehicles.
func NewPopulation(roster []string, cfg *Config, topo *Topology) *Population {
	entry := cfg.Population.EntryEdge
	if entry == "" {
		entry = topo.EntryEdge
	}
	p := &Population{
		roster:      slices.Clone(roster),
		states:      make(map[string]MemberState, len(roster)),
		enabled:     *cfg.AddRLIfExit,
		entryEdge:   entry,
		rlType:      cfg.Population.RLType,
		maxLanes:    cfg.Population.MaxLanes,
		laneScaling: cfg.Population.LaneScaling,
	}
	p.Reset()
	return p
}

// Reset marks every roster member present and clears attempt counters.
func (p *Population) Reset() {
	for _, id := range p.roster {
		p.states[id] = MemberPresent
	}
	p.attempts = 0
	p.rejections = 0
}

// Roster returns a copy of the declared roster.
func (p *Population) Roster() []string {
	return slices.Clone(p.roster)
}

// State returns the lifecycle state of a roster member.
func (p *Population) State(id string) MemberState {
	return p.states[id]
}

// Attempts and Rejections count reinsertions since the last Reset.
func (p *Population) Attempts() int   { return p.attempts }
func (p *Population) Rejections() int { return p.rejections }

// Lane returns the lane a roster member is reinserted on.
func (p *Population) Lane(rosterIdx int) int {
	return (rosterIdx % p.maxLanes) * p.laneScaling
}

// Maintain compares the roster to the live RL set and, when enabled,
// attempts to re-add every missing member.
func (p *Population) Maintain(k *Kernel) []Reinsertion {
	live := k.Vehicle.RLIDs()
	missing := lo.Without(p.roster, live...)

	for _, id := range p.roster {
		if p.states[id] != MemberPresent && !slices.Contains(missing, id) {
			p.states[id] = MemberPresent
		}
	}
	for _, id := range missing {
		if p.states[id] == MemberPresent {
			p.states[id] = MemberExited
		}
	}

	if !p.enabled || k.Vehicle.NumRLVehicles() == len(p.roster) || len(missing) == 0 {
		return nil
	}

	out := make([]Reinsertion, 0, len(missing))
	for _, id := range missing {
		idx := slices.Index(p.roster, id)
		r := Reinsertion{VehicleID: id, Edge: p.entryEdge, Lane: p.Lane(idx)}
		p.attempts++
		if err := k.Vehicle.Add(id, p.entryEdge, p.rlType, r.Lane, 0, SpeedMax); err != nil {
			r.Outcome = Rejected
			r.Reason = err.Error()
			p.rejections++
			p.states[id] = MemberExited
			logrus.Debugf("reinsertion of %s on %s lane %d rejected: %v", id, p.entryEdge, r.Lane, err)
		} else {
			r.Outcome = Inserted
			p.states[id] = MemberReinserted
		}
		out = append(out, r)
	}
	return out
}
