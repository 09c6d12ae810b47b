package sim

import (
	"fmt"
	"math"

	"github.com/traffic-rl/flowgrid/env"
)

// ScenarioConfig describes the road network and initial vehicle population
// of the built-in backend.
type ScenarioConfig struct {
	Network    string  `yaml:"network"` // "ring", "figure_eight" or "grid"
	Lanes      int     `yaml:"lanes,omitempty"`
	SpeedLimit float64 `yaml:"speed_limit,omitempty"`

	Ring        RingConfig        `yaml:"ring,omitempty"`
	FigureEight FigureEightConfig `yaml:"figure_eight,omitempty"`
	Grid        GridConfig        `yaml:"grid,omitempty"`
	Lights      LightConfig       `yaml:"lights,omitempty"`

	Vehicles []VehicleSpec `yaml:"vehicles"`
	// Placement is "uniform" (default) or "random".
	Placement string `yaml:"placement,omitempty"`
}

// RingConfig sizes a ring network.
type RingConfig struct {
	Length float64 `yaml:"length"`
}

// FigureEightConfig sizes a figure-eight network.
type FigureEightConfig struct {
	Radius float64 `yaml:"radius"`
}

// GridConfig sizes a grid network.
type GridConfig struct {
	Rows    int             `yaml:"rows"`
	Cols    int             `yaml:"cols"`
	Lengths env.GridLengths `yaml:",inline"`
}

// LightConfig is the fixed-time program shared by all traffic lights.
type LightConfig struct {
	Green  float64 `yaml:"green,omitempty"`
	Yellow float64 `yaml:"yellow,omitempty"`
}

// VehicleSpec adds Count vehicles of one type. RL vehicles form the
// controlled roster.
type VehicleSpec struct {
	Type     string  `yaml:"type"`
	Count    int     `yaml:"count"`
	RL       bool    `yaml:"rl,omitempty"`
	MaxSpeed float64 `yaml:"max_speed,omitempty"`
	// Noise is the std-dev of Gaussian acceleration noise (m/s^2).
	Noise float64 `yaml:"noise,omitempty"`
}

// ValidNetworks is the set of recognized network names.
var ValidNetworks = map[string]bool{"ring": true, "figure_eight": true, "grid": true}

// ValidPlacements is the set of recognized initial placement modes.
var ValidPlacements = map[string]bool{"": true, "uniform": true, "random": true}

// Default scenario values.
const (
	DefaultLanes           = 1
	DefaultSpeedLimit      = 30.0
	DefaultRingLength      = 230.0
	DefaultFigureRadius    = 30.0
	DefaultGreen           = 30.0
	DefaultYellow          = 3.0
	DefaultVehicleMaxSpeed = 30.0
)

// Validate checks names and ranges, then fills in defaults.
func (c *ScenarioConfig) Validate() error {
	if !ValidNetworks[c.Network] {
		return fmt.Errorf("unknown network %q; valid: ring, figure_eight, grid", c.Network)
	}
	if !ValidPlacements[c.Placement] {
		return fmt.Errorf("unknown placement %q; valid: uniform, random", c.Placement)
	}
	if c.Lanes == 0 {
		c.Lanes = DefaultLanes
	}
	if c.SpeedLimit == 0 {
		c.SpeedLimit = DefaultSpeedLimit
	}
	if c.Lanes < 0 {
		return fmt.Errorf("lanes must be positive, got %d", c.Lanes)
	}
	if err := validateFinitePositive("speed_limit", c.SpeedLimit); err != nil {
		return err
	}
	switch c.Network {
	case "ring":
		if c.Ring.Length == 0 {
			c.Ring.Length = DefaultRingLength
		}
		if err := validateFinitePositive("ring.length", c.Ring.Length); err != nil {
			return err
		}
	case "figure_eight":
		if c.FigureEight.Radius == 0 {
			c.FigureEight.Radius = DefaultFigureRadius
		}
		if err := validateFinitePositive("figure_eight.radius", c.FigureEight.Radius); err != nil {
			return err
		}
	case "grid":
		if c.Grid.Rows < 1 || c.Grid.Cols < 1 {
			return fmt.Errorf("grid rows and cols must be >= 1, got %dx%d", c.Grid.Rows, c.Grid.Cols)
		}
		for name, v := range map[string]float64{
			"grid.inner_length": c.Grid.Lengths.Inner,
			"grid.short_length": c.Grid.Lengths.Short,
			"grid.long_length":  c.Grid.Lengths.Long,
		} {
			if err := validateFinitePositive(name, v); err != nil {
				return err
			}
		}
	}
	if c.Lights.Green == 0 {
		c.Lights.Green = DefaultGreen
	}
	if c.Lights.Yellow == 0 {
		c.Lights.Yellow = DefaultYellow
	}
	if c.Lights.Green < 0 || c.Lights.Yellow < 0 {
		return fmt.Errorf("light durations must be positive")
	}
	types := make(map[string]bool)
	for i := range c.Vehicles {
		v := &c.Vehicles[i]
		if v.Type == "" {
			return fmt.Errorf("vehicles[%d]: type is required", i)
		}
		if types[v.Type] {
			return fmt.Errorf("vehicles[%d]: duplicate type %q", i, v.Type)
		}
		types[v.Type] = true
		if v.Count < 0 {
			return fmt.Errorf("vehicles[%d]: count must be non-negative, got %d", i, v.Count)
		}
		if v.MaxSpeed == 0 {
			v.MaxSpeed = DefaultVehicleMaxSpeed
		}
		if v.Noise < 0 {
			return fmt.Errorf("vehicles[%d]: noise must be non-negative, got %f", i, v.Noise)
		}
	}
	return nil
}

// BuildNetwork constructs the network a validated config describes.
func (c *ScenarioConfig) BuildNetwork() *Network {
	switch c.Network {
	case "ring":
		return NewRingNetwork(c.Ring.Length, c.Lanes, c.SpeedLimit)
	case "figure_eight":
		return NewFigureEightNetwork(c.FigureEight.Radius, c.Lanes, c.SpeedLimit)
	case "grid":
		return NewGridNetwork(c.Grid.Rows, c.Grid.Cols, c.Grid.Lengths, c.Lanes, c.SpeedLimit)
	default:
		panic(fmt.Sprintf("unhandled network %q", c.Network))
	}
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
