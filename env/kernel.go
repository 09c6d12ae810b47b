package env

import "errors"

// Errors surfaced by kernel backends. Add reports placement problems with
// ErrPlacementConflict or ErrUnknownEdge; the population manager turns any
// Add error into a rejected reinsertion.
var (
	ErrPlacementConflict = errors.New("placement conflict")
	ErrUnknownEdge       = errors.New("unknown edge")
	ErrUnknownVehicle    = errors.New("unknown vehicle")
)

// SpeedMax asks Add to depart the vehicle at the maximum allowed speed
// of its entry edge.
const SpeedMax = -1.0

// VehicleKernel is the vehicle half of the state query facade.
type VehicleKernel interface {
	IDs() []string
	RLIDs() []string
	NumRLVehicles() int
	IDsByEdge(edge string) []string

	Speed(id string) float64
	Position(id string) float64
	Edge(id string) string
	Lane(id string) int
	MaxSpeed(id string) float64
	SetMaxSpeed(id string, speed float64)
	SetObserved(id string)

	// Add inserts a vehicle. Passing SpeedMax as speed departs at the edge
	// speed limit. Fails with ErrPlacementConflict when the spot is taken.
	Add(id, edge, typeID string, lane int, pos, speed float64) error
}

// NetworkKernel exposes static road network topology.
type NetworkKernel interface {
	EdgeList() []string
	EdgeLength(edge string) float64
	SpeedLimit(edge string) float64
	MaxSpeed() float64
	NumLanes(edge string) int
}

// LightState is the externally visible state of one traffic light.
type LightState struct {
	LastChange float64 // seconds since the last phase change
	Direction  int     // 0: north-south green, 1: east-west green
	Yellow     bool
}

// TrafficLightKernel exposes traffic-light state.
type TrafficLightKernel interface {
	IDs() []string
	State(id string) LightState
}

// SimulationKernel advances and resets the underlying simulator.
type SimulationKernel interface {
	SimStep() float64
	Time() float64
	Advance() error
	Reset() error
	Collided() bool
}

// Kernel bundles the facade handed to every environment component.
type Kernel struct {
	Vehicle      VehicleKernel
	Network      NetworkKernel
	TrafficLight TrafficLightKernel
	Simulation   SimulationKernel
}

// IsInternalEdge reports whether edge is a junction-internal segment.
func IsInternalEdge(edge string) bool {
	return len(edge) > 0 && edge[0] == ':'
}
