package env

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ObservationBuilder turns shared simulator state into agent-keyed vectors.
type ObservationBuilder interface {
	Space() Box
	// Build returns one fixed-length vector per observing agent.
	Build(k *Kernel) map[string][]float64
	// ObservedIDs returns the vehicles used by the last Build, grouped per
	// queried edge.
	ObservedIDs() [][]string
}

// NewObservationBuilder creates an observation builder by name.
// Panics on unrecognized names; Config.Validate rejects them first.
func NewObservationBuilder(name string, cfg *Config, topo *Topology) ObservationBuilder {
	if !ValidObservers[name] {
		panic(fmt.Sprintf("unknown observer %q", name))
	}
	switch name {
	case "", "grid-local":
		return NewGridLocalObserver(cfg, topo)
	default:
		panic(fmt.Sprintf("unhandled observer %q", name))
	}
}

// GridLocalObserver builds the partially observed view of each traffic-light
// agent: nearby vehicles on its incoming edges, density and mean velocity of
// those edges, and optionally its own and its neighbors' light state.
type GridLocalObserver struct {
	topo           *Topology
	numObserved    int
	numLocalEdges  int
	numLocalLights int
	trafficLights  bool
	densityScale   float64

	observed [][]string
}

// NewGridLocalObserver creates a GridLocalObserver from a validated config.
func NewGridLocalObserver(cfg *Config, topo *Topology) *GridLocalObserver {
	return &GridLocalObserver{
		topo:           topo,
		numObserved:    *cfg.NumObserved,
		numLocalEdges:  *cfg.NumLocalEdges,
		numLocalLights: *cfg.NumLocalLights,
		trafficLights:  cfg.TrafficLights,
		densityScale:   *cfg.DensityScale,
	}
}

// Space implements ObservationBuilder.
func (o *GridLocalObserver) Space() Box {
	return Box{
		Low:  0,
		High: 1,
		Dim:  ObservationSize(o.numObserved, o.numLocalEdges, o.numLocalLights, o.trafficLights),
	}
}

// ObservedIDs implements ObservationBuilder.
func (o *GridLocalObserver) ObservedIDs() [][]string {
	return o.observed
}

// normalizers returns the max speed limit over all edges and the
// characteristic network distance used to scale distances.
func (o *GridLocalObserver) normalizers(k *Kernel, edges []string) (maxSpeed, maxDist float64) {
	limits := make([]float64, len(edges))
	lengths := make([]float64, len(edges))
	for i, e := range edges {
		limits[i] = k.Network.SpeedLimit(e)
		lengths[i] = k.Network.EdgeLength(e)
	}
	if len(edges) > 0 {
		maxSpeed = floats.Max(limits)
		maxDist = floats.Max(lengths)
	}
	if o.topo.CharacteristicDistance > 0 {
		maxDist = o.topo.CharacteristicDistance
	}
	return maxSpeed, maxDist
}

// edgeStats holds the per-edge aggregates computed once per step.
type edgeStats struct {
	density  float64
	velocity float64
}

func (o *GridLocalObserver) aggregate(k *Kernel, edges []string, maxSpeed float64) map[string]edgeStats {
	out := make(map[string]edgeStats, len(edges))
	for _, e := range edges {
		ids := k.Vehicle.IDsByEdge(e)
		if len(ids) == 0 {
			out[e] = edgeStats{}
			continue
		}
		speeds := make([]float64, len(ids))
		for i, id := range ids {
			speeds[i] = safeDiv(k.Vehicle.Speed(id), maxSpeed)
		}
		out[e] = edgeStats{
			density:  safeDiv(o.densityScale*float64(len(ids)), k.Network.EdgeLength(e)),
			velocity: stat.Mean(speeds, nil),
		}
	}
	return out
}

// Build implements ObservationBuilder.
func (o *GridLocalObserver) Build(k *Kernel) map[string][]float64 {
	edges := k.Network.EdgeList()
	maxSpeed, maxDist := o.normalizers(k, edges)
	stats := o.aggregate(k, edges, maxSpeed)

	rl := make(map[string]bool)
	for _, id := range k.Vehicle.RLIDs() {
		rl[id] = true
	}

	var lastChange, direction, yellow []float64
	if o.trafficLights {
		// One trailing dummy entry absorbs lookups of missing neighbors.
		n := len(o.topo.Nodes)
		lastChange = make([]float64, n+1)
		direction = make([]float64, n+1)
		yellow = make([]float64, n+1)
		for i, node := range o.topo.Nodes {
			s := k.TrafficLight.State(node.ID)
			lastChange[i] = s.LastChange
			direction[i] = float64(s.Direction)
			if s.Yellow {
				yellow[i] = 1
			}
		}
	}

	o.observed = o.observed[:0]
	obs := make(map[string][]float64)
	for _, id := range k.TrafficLight.IDs() {
		node, ok := o.topo.Node(id)
		if !ok {
			continue
		}
		width := o.numLocalEdges * o.numObserved
		speeds := make([]float64, width)
		dists := make([]float64, width)
		types := make([]float64, width)
		density := make([]float64, o.numLocalEdges)
		velocity := make([]float64, o.numLocalEdges)

		for j := 0; j < o.numLocalEdges && j < len(node.Edges); j++ {
			edge := node.Edges[j]
			ids := KClosestToIntersection(k, edge, o.numObserved)
			o.observed = append(o.observed, ids)
			length := k.Network.EdgeLength(edge)
			for v, vid := range ids {
				slot := j*o.numObserved + v
				speeds[slot] = safeDiv(k.Vehicle.Speed(vid), maxSpeed)
				dists[slot] = safeDiv(length-k.Vehicle.Position(vid), maxDist)
				if rl[vid] {
					types[slot] = 1
				}
			}
			density[j] = stats[edge].density
			velocity[j] = stats[edge].velocity
		}

		vec := make([]float64, 0, o.Space().Dim)
		vec = append(vec, speeds...)
		vec = append(vec, dists...)
		vec = append(vec, types...)
		vec = append(vec, density...)
		vec = append(vec, velocity...)
		if o.trafficLights {
			local := o.localLights(node.Index, len(o.topo.Nodes))
			for _, block := range [][]float64{lastChange, direction, yellow} {
				for _, i := range local {
					vec = append(vec, block[i])
				}
			}
		}
		obs[id] = vec
	}
	return obs
}

// localLights returns indices into the light arrays for the agent itself and
// its neighbors. Missing neighbors map to the dummy slot at index n.
func (o *GridLocalObserver) localLights(idx, n int) []int {
	out := make([]int, 0, 1+o.numLocalLights)
	out = append(out, idx)
	for _, d := range neighborOrder[:o.numLocalLights] {
		nb := o.topo.RelativeNode(idx, d)
		if nb < 0 {
			nb = n
		}
		out = append(out, nb)
	}
	return out
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
