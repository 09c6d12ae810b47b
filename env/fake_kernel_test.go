package env

import (
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeVehicle struct {
	edge     string
	lane     int
	pos      float64
	speed    float64
	maxSpeed float64
	rl       bool
	observed bool
}

type fakeEdge struct {
	length float64
	limit  float64
	lanes  int
}

// fakeSim is an in-memory kernel backend whose state tests set directly.
type fakeSim struct {
	vehicles  map[string]*fakeVehicle
	edges     map[string]fakeEdge
	edgeOrder []string
	lights    map[string]LightState
	lightIDs  []string

	dt       float64
	time     float64
	advances int
	resets   int
	collided bool

	// onAdvance runs at the end of every Advance.
	onAdvance func(*fakeSim)
	// addErr, when set, decides the outcome of Add.
	addErr func(id, edge string) error
	adds   []fakeAdd
}

type fakeAdd struct {
	id, edge, typ string
	lane          int
	pos, speed    float64
}

func newFakeSim() *fakeSim {
	return &fakeSim{
		vehicles: make(map[string]*fakeVehicle),
		edges:    make(map[string]fakeEdge),
		lights:   make(map[string]LightState),
		dt:       0.1,
	}
}

func (f *fakeSim) edge(id string, length, limit float64) *fakeSim {
	f.edges[id] = fakeEdge{length: length, limit: limit, lanes: 1}
	f.edgeOrder = append(f.edgeOrder, id)
	return f
}

func (f *fakeSim) vehicle(id, edge string, pos, speed float64, rl bool) *fakeSim {
	f.vehicles[id] = &fakeVehicle{edge: edge, pos: pos, speed: speed, maxSpeed: 10, rl: rl}
	return f
}

func (f *fakeSim) light(id string, s LightState) *fakeSim {
	f.lights[id] = s
	f.lightIDs = append(f.lightIDs, id)
	return f
}

func (f *fakeSim) kernel() *Kernel {
	return &Kernel{
		Vehicle:      fakeVehicles{f},
		Network:      fakeNetwork{f},
		TrafficLight: fakeLights{f},
		Simulation:   fakeSimulation{f},
	}
}

// gridFake builds a fake backend holding every edge and light of a grid.
func gridFake(rows, cols int, length, limit float64) *fakeSim {
	f := newFakeSim()
	seen := make(map[string]bool)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for _, e := range GridIncomingEdges(r, c) {
				if !seen[e] {
					seen[e] = true
					f.edge(e, length, limit)
				}
			}
			f.light(NodeID(r*cols+c), LightState{})
		}
	}
	return f
}

type fakeVehicles struct{ f *fakeSim }

func (v fakeVehicles) IDs() []string { return slices.Sorted(maps.Keys(v.f.vehicles)) }

func (v fakeVehicles) RLIDs() []string {
	var out []string
	for _, id := range v.IDs() {
		if v.f.vehicles[id].rl {
			out = append(out, id)
		}
	}
	return out
}

func (v fakeVehicles) NumRLVehicles() int { return len(v.RLIDs()) }

func (v fakeVehicles) IDsByEdge(edge string) []string {
	var out []string
	for _, id := range v.IDs() {
		if v.f.vehicles[id].edge == edge {
			out = append(out, id)
		}
	}
	return out
}

func (v fakeVehicles) get(id string) *fakeVehicle {
	if fv, ok := v.f.vehicles[id]; ok {
		return fv
	}
	return &fakeVehicle{}
}

func (v fakeVehicles) Speed(id string) float64    { return v.get(id).speed }
func (v fakeVehicles) Position(id string) float64 { return v.get(id).pos }
func (v fakeVehicles) Edge(id string) string      { return v.get(id).edge }
func (v fakeVehicles) Lane(id string) int         { return v.get(id).lane }
func (v fakeVehicles) MaxSpeed(id string) float64 { return v.get(id).maxSpeed }

func (v fakeVehicles) SetMaxSpeed(id string, speed float64) {
	if fv, ok := v.f.vehicles[id]; ok {
		fv.maxSpeed = speed
	}
}

func (v fakeVehicles) SetObserved(id string) {
	if fv, ok := v.f.vehicles[id]; ok {
		fv.observed = true
	}
}

func (v fakeVehicles) Add(id, edge, typeID string, lane int, pos, speed float64) error {
	v.f.adds = append(v.f.adds, fakeAdd{id, edge, typeID, lane, pos, speed})
	if v.f.addErr != nil {
		if err := v.f.addErr(id, edge); err != nil {
			return err
		}
	}
	if _, ok := v.f.vehicles[id]; ok {
		return fmt.Errorf("%w: %s exists", ErrPlacementConflict, id)
	}
	v.f.vehicles[id] = &fakeVehicle{edge: edge, lane: lane, pos: pos, speed: speed, maxSpeed: 23, rl: typeID == DefaultRLType}
	return nil
}

type fakeNetwork struct{ f *fakeSim }

func (n fakeNetwork) EdgeList() []string             { return n.f.edgeOrder }
func (n fakeNetwork) EdgeLength(edge string) float64 { return n.f.edges[edge].length }
func (n fakeNetwork) SpeedLimit(edge string) float64 { return n.f.edges[edge].limit }
func (n fakeNetwork) NumLanes(edge string) int       { return n.f.edges[edge].lanes }

func (n fakeNetwork) MaxSpeed() float64 {
	m := 0.0
	for _, e := range n.f.edges {
		m = max(m, e.limit)
	}
	return m
}

type fakeLights struct{ f *fakeSim }

func (l fakeLights) IDs() []string              { return l.f.lightIDs }
func (l fakeLights) State(id string) LightState { return l.f.lights[id] }

type fakeSimulation struct{ f *fakeSim }

func (s fakeSimulation) SimStep() float64 { return s.f.dt }
func (s fakeSimulation) Time() float64    { return s.f.time }
func (s fakeSimulation) Collided() bool   { return s.f.collided }

func (s fakeSimulation) Advance() error {
	s.f.advances++
	s.f.time += s.f.dt
	if s.f.onAdvance != nil {
		s.f.onAdvance(s.f)
	}
	return nil
}

func (s fakeSimulation) Reset() error {
	s.f.resets++
	s.f.time = 0
	return nil
}

func ptr[T any](v T) *T { return &v }

// testConfig returns a config with the four required keys set.
func testConfig() *Config {
	return &Config{
		Horizon:        10,
		SimStep:        0.1,
		MaxAccel:       ptr(3.0),
		MaxDecel:       ptr(3.0),
		TargetVelocity: ptr(10.0),
		AddRLIfExit:    ptr(true),
	}
}

// validConfig returns a validated testConfig after applying mutate.
func validConfig(t *testing.T, mutate ...func(*Config)) *Config {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg
}
