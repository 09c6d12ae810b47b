package sim

import (
	"slices"

	"github.com/traffic-rl/flowgrid/env"
)

// vehicleKernel implements env.VehicleKernel. Queries for unknown vehicles
// return zero values.
type vehicleKernel struct{ s *Simulator }

func (k vehicleKernel) IDs() []string { return k.s.vehicleIDs() }

func (k vehicleKernel) RLIDs() []string {
	var out []string
	for _, id := range k.s.vehicleIDs() {
		if k.s.vehicles[id].RL {
			out = append(out, id)
		}
	}
	return out
}

func (k vehicleKernel) NumRLVehicles() int {
	n := 0
	for _, v := range k.s.vehicles {
		if v.RL {
			n++
		}
	}
	return n
}

func (k vehicleKernel) IDsByEdge(edge string) []string {
	var out []string
	for _, id := range k.s.vehicleIDs() {
		if k.s.vehicles[id].Edge == edge {
			out = append(out, id)
		}
	}
	return out
}

func (k vehicleKernel) Speed(id string) float64 {
	if v, ok := k.s.vehicles[id]; ok {
		return v.Speed
	}
	return 0
}

func (k vehicleKernel) Position(id string) float64 {
	if v, ok := k.s.vehicles[id]; ok {
		return v.Pos
	}
	return 0
}

func (k vehicleKernel) Edge(id string) string {
	if v, ok := k.s.vehicles[id]; ok {
		return v.Edge
	}
	return ""
}

func (k vehicleKernel) Lane(id string) int {
	if v, ok := k.s.vehicles[id]; ok {
		return v.Lane
	}
	return 0
}

func (k vehicleKernel) MaxSpeed(id string) float64 {
	if v, ok := k.s.vehicles[id]; ok {
		return v.MaxSpeed
	}
	return 0
}

func (k vehicleKernel) SetMaxSpeed(id string, speed float64) {
	if v, ok := k.s.vehicles[id]; ok {
		v.MaxSpeed = speed
	}
}

func (k vehicleKernel) SetObserved(id string) {
	if v, ok := k.s.vehicles[id]; ok {
		v.Observed = true
	}
}

func (k vehicleKernel) Add(id, edge, typeID string, lane int, pos, speed float64) error {
	return k.s.Add(id, edge, typeID, lane, pos, speed)
}

// networkKernel implements env.NetworkKernel.
type networkKernel struct{ n *Network }

func (k networkKernel) EdgeList() []string { return slices.Clone(k.n.EdgeList()) }

func (k networkKernel) EdgeLength(edge string) float64 {
	if e, ok := k.n.Edge(edge); ok {
		return e.Length
	}
	return 0
}

func (k networkKernel) SpeedLimit(edge string) float64 {
	if e, ok := k.n.Edge(edge); ok {
		return e.SpeedLimit
	}
	return 0
}

func (k networkKernel) MaxSpeed() float64 { return k.n.MaxSpeed() }

func (k networkKernel) NumLanes(edge string) int {
	if e, ok := k.n.Edge(edge); ok {
		return e.Lanes
	}
	return 0
}

// simulationKernel implements env.SimulationKernel.
type simulationKernel struct{ s *Simulator }

func (k simulationKernel) SimStep() float64 { return k.s.dt }
func (k simulationKernel) Time() float64    { return k.s.Clock }
func (k simulationKernel) Advance() error   { return k.s.Step() }
func (k simulationKernel) Reset() error     { return k.s.Reset() }
func (k simulationKernel) Collided() bool   { return k.s.Collided() }

var (
	_ env.VehicleKernel      = vehicleKernel{}
	_ env.NetworkKernel      = networkKernel{}
	_ env.TrafficLightKernel = (*LightController)(nil)
	_ env.SimulationKernel   = simulationKernel{}
)
