// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/traffic-rl/flowgrid/env"
)

// ErrUnknownType is returned by Add for vehicle types the scenario does not
// declare.
var ErrUnknownType = errors.New("unknown vehicle type")

const (
	// lookahead bounds how far downstream a vehicle searches for a leader.
	lookahead = 200.0
	// safetyMargin keeps the follower strictly behind its leader's rear.
	safetyMargin = 0.1
)

type laneKey struct {
	edge string
	lane int
}

// Simulator is a time-stepped microscopic traffic simulator: IDM car
// following on a road network with fixed-time traffic lights.
type Simulator struct {
	Clock     float64
	StepCount int
	Metrics   *Metrics
	Network   *Network
	Lights    *LightController

	dt       float64
	scenario *ScenarioConfig
	rng      *PartitionedRNG
	types    map[string]VehicleSpec

	vehicles map[string]*Vehicle
	initial  []Vehicle
	collided bool
}

// NewSimulator validates sc, builds its network and places the initial
// vehicles. dt is the length of one simulation step in seconds.
func NewSimulator(sc *ScenarioConfig, dt float64, key SimulationKey) (*Simulator, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if err := validateFinitePositive("sim_step", dt); err != nil {
		return nil, err
	}
	net := sc.BuildNetwork()
	s := &Simulator{
		Network:  net,
		Lights:   NewLightController(net.Lights(), sc.Lights),
		dt:       dt,
		scenario: sc,
		rng:      NewPartitionedRNG(key),
		types:    make(map[string]VehicleSpec, len(sc.Vehicles)),
	}
	for _, vs := range sc.Vehicles {
		s.types[vs.Type] = vs
	}
	initial, err := s.place()
	if err != nil {
		return nil, err
	}
	s.initial = initial
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Kernel returns the state query facade over this simulator.
func (s *Simulator) Kernel() *env.Kernel {
	return &env.Kernel{
		Vehicle:      vehicleKernel{s},
		Network:      networkKernel{s.Network},
		TrafficLight: s.Lights,
		Simulation:   simulationKernel{s},
	}
}

// Reset restores the initial placement, the light programs and the RNG
// streams.
func (s *Simulator) Reset() error {
	s.Clock = 0
	s.StepCount = 0
	s.Metrics = NewMetrics()
	s.collided = false
	s.rng.Reseed()
	s.Lights.Reset()
	s.vehicles = make(map[string]*Vehicle, len(s.initial))
	for i := range s.initial {
		v := s.initial[i]
		s.vehicles[v.ID] = &v
	}
	logrus.Debugf("[t=%.2f] simulator reset: %d vehicles on %s", s.Clock, len(s.vehicles), s.scenario.Network)
	return nil
}

// Step advances the simulation by one time step.
func (s *Simulator) Step() error {
	s.Lights.Advance(s.dt)
	occ := s.occupancy()
	ids := s.vehicleIDs()

	speeds := make(map[string]float64, len(ids))
	for _, id := range ids {
		speeds[id] = s.nextSpeed(s.vehicles[id], occ)
	}
	for _, id := range ids {
		v := s.vehicles[id]
		v.Speed = speeds[id]
		v.Pos += v.Speed * s.dt
		s.Metrics.SpeedSum += v.Speed
		s.Metrics.VehicleSteps++
		if v.Speed == 0 {
			s.Metrics.StandstillSecs += s.dt
		}
		s.transition(v)
	}

	s.Clock += s.dt
	s.StepCount++
	s.Metrics.Steps++
	s.Metrics.SimEndedTime = s.Clock

	s.collided = s.detectCollisions()
	if s.collided {
		s.Metrics.Collisions++
		logrus.Warnf("[t=%.2f] collision detected", s.Clock)
	}
	return nil
}

// Collided reports whether the last step produced overlapping vehicles.
func (s *Simulator) Collided() bool { return s.collided }

// Add inserts a vehicle of a declared type. See env.VehicleKernel.Add.
func (s *Simulator) Add(id, edge, typeID string, lane int, pos, speed float64) error {
	if _, ok := s.vehicles[id]; ok {
		return fmt.Errorf("%w: vehicle %q already in network", env.ErrPlacementConflict, id)
	}
	e, ok := s.Network.Edge(edge)
	if !ok {
		return fmt.Errorf("%w: %q", env.ErrUnknownEdge, edge)
	}
	spec, ok := s.types[typeID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, typeID)
	}
	if lane < 0 || lane >= e.Lanes {
		return fmt.Errorf("%w: lane %d out of range on %q", env.ErrPlacementConflict, lane, edge)
	}
	if pos < 0 || pos > e.Length {
		return fmt.Errorf("%w: position %.2f outside %q", env.ErrPlacementConflict, pos, edge)
	}
	for _, o := range s.vehicles {
		if o.Edge == edge && o.Lane == lane && math.Abs(o.Pos-pos) < VehicleLength+IDMMinGap {
			return fmt.Errorf("%w: %q lane %d at %.2f occupied by %q", env.ErrPlacementConflict, edge, lane, pos, o.ID)
		}
	}
	if speed < 0 {
		speed = math.Min(e.SpeedLimit, spec.MaxSpeed)
	}
	s.vehicles[id] = &Vehicle{
		ID:       id,
		Type:     typeID,
		RL:       spec.RL,
		Edge:     edge,
		Next:     s.Network.Next(edge, s.rng.ForSubsystem(SubsystemRouter)),
		Lane:     lane,
		Pos:      pos,
		Speed:    speed,
		MaxSpeed: spec.MaxSpeed,
		Noise:    spec.Noise,
	}
	s.Metrics.Departed++
	logrus.Debugf("[t=%.2f] added %s on %s lane %d", s.Clock, id, edge, lane)
	return nil
}

// Vehicle returns the live vehicle with the given id.
func (s *Simulator) Vehicle(id string) (*Vehicle, bool) {
	v, ok := s.vehicles[id]
	return v, ok
}

func (s *Simulator) vehicleIDs() []string {
	return slices.Sorted(maps.Keys(s.vehicles))
}

// occupancy groups vehicles per edge lane, ordered by position.
func (s *Simulator) occupancy() map[laneKey][]*Vehicle {
	occ := make(map[laneKey][]*Vehicle)
	for _, id := range s.vehicleIDs() {
		v := s.vehicles[id]
		k := laneKey{v.Edge, v.Lane}
		occ[k] = append(occ[k], v)
	}
	for _, list := range occ {
		slices.SortStableFunc(list, func(a, b *Vehicle) int {
			switch {
			case a.Pos < b.Pos:
				return -1
			case a.Pos > b.Pos:
				return 1
			default:
				return 0
			}
		})
	}
	return occ
}

func (s *Simulator) nextSpeed(v *Vehicle, occ map[laneKey][]*Vehicle) float64 {
	e, _ := s.Network.Edge(v.Edge)
	v0 := math.Min(v.MaxSpeed, e.SpeedLimit)
	gap, leaderSpeed := s.leader(v, occ)
	acc := IDMAcceleration(v.Speed, v0, gap, v.Speed-leaderSpeed)
	stop := s.stopDistance(v, e)
	if !math.IsInf(stop, 1) {
		acc = math.Min(acc, IDMAcceleration(v.Speed, v0, stop, v.Speed))
	}
	if v.Noise > 0 && !v.RL {
		acc += v.Noise * s.rng.ForSubsystem(SubsystemNoise).NormFloat64()
	}
	speed := math.Max(0, v.Speed+acc*s.dt)
	if !math.IsInf(gap, 1) {
		speed = math.Min(speed, math.Max(0, (gap-safetyMargin)/s.dt))
	}
	if !math.IsInf(stop, 1) {
		speed = math.Min(speed, math.Max(0, stop/s.dt))
	}
	return speed
}

// leader returns the bumper gap to the nearest vehicle ahead and its speed,
// following unambiguous successors up to the lookahead distance.
func (s *Simulator) leader(v *Vehicle, occ map[laneKey][]*Vehicle) (float64, float64) {
	for _, o := range occ[laneKey{v.Edge, v.Lane}] {
		if o.Pos > v.Pos || (o.Pos == v.Pos && o.ID > v.ID) {
			return o.Pos - VehicleLength - v.Pos, o.Speed
		}
	}
	e, _ := s.Network.Edge(v.Edge)
	dist := e.Length - v.Pos
	next := v.Next
	for hop := 0; hop < 3 && next != "" && dist < lookahead; hop++ {
		ne, _ := s.Network.Edge(next)
		lane := min(v.Lane, ne.Lanes-1)
		if list := occ[laneKey{next, lane}]; len(list) > 0 {
			if list[0].ID == v.ID {
				break
			}
			return dist + list[0].Pos - VehicleLength, list[0].Speed
		}
		dist += ne.Length
		succ := s.Network.Successors(next)
		if len(succ) != 1 {
			break
		}
		next = succ[0]
	}
	return math.Inf(1), 0
}

// stopDistance is the distance to a stop line the vehicle must respect, or
// +Inf when it may pass.
func (s *Simulator) stopDistance(v *Vehicle, e *Edge) float64 {
	if e.Light == "" || s.Lights.Green(e.Light, e.Axis) {
		return math.Inf(1)
	}
	d := e.Length - v.Pos
	st := s.Lights.State(e.Light)
	if st.Direction == e.Axis && st.Yellow && v.Speed*v.Speed/(2*MaxDecel) > d {
		return math.Inf(1)
	}
	return d
}

// transition moves a vehicle past the end of its edge, removing it when it
// leaves the network.
func (s *Simulator) transition(v *Vehicle) {
	for {
		e, _ := s.Network.Edge(v.Edge)
		if v.Pos < e.Length {
			return
		}
		if v.Next == "" {
			delete(s.vehicles, v.ID)
			s.Metrics.Arrived++
			logrus.Debugf("[t=%.2f] %s left the network from %s", s.Clock, v.ID, v.Edge)
			return
		}
		v.Pos -= e.Length
		v.Edge = v.Next
		ne, _ := s.Network.Edge(v.Edge)
		v.Lane = min(v.Lane, ne.Lanes-1)
		v.Next = s.Network.Next(v.Edge, s.rng.ForSubsystem(SubsystemRouter))
	}
}

func (s *Simulator) detectCollisions() bool {
	for _, list := range s.occupancy() {
		for i := 0; i+1 < len(list); i++ {
			if list[i+1].Pos-VehicleLength < list[i].Pos-1e-9 {
				return true
			}
		}
	}
	return false
}

// place computes the initial vehicles: evenly spaced along the loop of a
// closed network, or round-robin over the entry edges of an open one.
func (s *Simulator) place() ([]Vehicle, error) {
	var out []Vehicle
	for _, vs := range s.scenario.Vehicles {
		for j := 0; j < vs.Count; j++ {
			out = append(out, Vehicle{
				ID:       fmt.Sprintf("%s_%d", vs.Type, j),
				Type:     vs.Type,
				RL:       vs.RL,
				MaxSpeed: vs.MaxSpeed,
				Noise:    vs.Noise,
			})
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	var err error
	if s.Network.Closed() {
		err = s.placeAlongLoop(out)
	} else {
		err = s.placeOnEntries(out)
	}
	if err != nil {
		return nil, err
	}
	router := s.rng.ForSubsystem(SubsystemRouter)
	for i := range out {
		out[i].Next = s.Network.Next(out[i].Edge, router)
	}
	return out, nil
}

func (s *Simulator) placeAlongLoop(vs []Vehicle) error {
	route := s.Network.Route()
	total := 0.0
	for _, id := range route {
		e, _ := s.Network.Edge(id)
		total += e.Length
	}
	lanes := s.scenario.Lanes
	slots := (len(vs) + lanes - 1) / lanes
	spacing := total / float64(slots)
	if spacing < VehicleLength+IDMMinGap {
		return fmt.Errorf("cannot place %d vehicles on a %.1fm loop with %d lanes", len(vs), total, lanes)
	}
	rng := s.rng.ForSubsystem(SubsystemPlacement)
	slack := spacing - VehicleLength - IDMMinGap
	for i := range vs {
		d := float64(i/lanes)*spacing + VehicleLength
		if s.scenario.Placement == "random" {
			d += rng.Float64() * slack
		}
		d = math.Mod(d, total)
		for _, id := range route {
			e, _ := s.Network.Edge(id)
			if d < e.Length {
				vs[i].Edge = id
				vs[i].Pos = d
				break
			}
			d -= e.Length
		}
		vs[i].Lane = i % lanes
	}
	return nil
}

func (s *Simulator) placeOnEntries(vs []Vehicle) error {
	route := s.Network.Route()
	lanes := s.scenario.Lanes
	spacing := VehicleLength + IDMMinGap + 3
	for i := range vs {
		edge := route[i%len(route)]
		slot := i / len(route)
		e, _ := s.Network.Edge(edge)
		pos := VehicleLength + float64(slot/lanes)*spacing
		if pos > e.Length {
			return fmt.Errorf("entry edge %q cannot hold %d vehicles", edge, slot+1)
		}
		vs[i].Edge = edge
		vs[i].Lane = slot % lanes
		vs[i].Pos = pos
	}
	return nil
}
