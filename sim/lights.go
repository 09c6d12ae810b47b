package sim

import (
	"slices"

	"github.com/traffic-rl/flowgrid/env"
)

// trafficLight runs a fixed-time two-phase program: green for one axis,
// yellow, then green for the other axis.
type trafficLight struct {
	id         string
	direction  int
	yellow     bool
	lastChange float64
}

// LightController advances every traffic light of a network.
type LightController struct {
	green, yellow float64
	lights        map[string]*trafficLight
	ids           []string
}

// NewLightController creates lights for ids, all starting north-south green.
func NewLightController(ids []string, cfg LightConfig) *LightController {
	lc := &LightController{
		green:  cfg.Green,
		yellow: cfg.Yellow,
		lights: make(map[string]*trafficLight, len(ids)),
		ids:    slices.Clone(ids),
	}
	lc.Reset()
	return lc
}

// Reset returns every light to the start of its program.
func (lc *LightController) Reset() {
	for _, id := range lc.ids {
		lc.lights[id] = &trafficLight{id: id, direction: AxisNS}
	}
}

// IDs returns the light ids in network order.
func (lc *LightController) IDs() []string { return lc.ids }

// Advance moves all programs forward by dt seconds.
func (lc *LightController) Advance(dt float64) {
	for _, id := range lc.ids {
		l := lc.lights[id]
		l.lastChange += dt
		switch {
		case !l.yellow && l.lastChange >= lc.green:
			l.yellow = true
			l.lastChange = 0
		case l.yellow && l.lastChange >= lc.yellow:
			l.yellow = false
			l.direction = 1 - l.direction
			l.lastChange = 0
		}
	}
}

// State returns the externally visible state of light id. Unknown ids
// report the zero state.
func (lc *LightController) State(id string) env.LightState {
	l, ok := lc.lights[id]
	if !ok {
		return env.LightState{}
	}
	return env.LightState{LastChange: l.lastChange, Direction: l.direction, Yellow: l.yellow}
}

// Green reports whether traffic on axis may pass light id.
func (lc *LightController) Green(id string, axis int) bool {
	l, ok := lc.lights[id]
	return !ok || (l.direction == axis && !l.yellow)
}
