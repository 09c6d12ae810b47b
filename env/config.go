package env

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMissingParam is wrapped by Validate when a required key is absent.
var ErrMissingParam = errors.New("environment parameter not supplied")

// Defaults kept compatible with the reference grid experiments.
const (
	DefaultNumObserved    = 2
	DefaultNumLocalLights = 4
	DefaultNumLocalEdges  = 4
	DefaultMinSpeed       = 0.01
	DefaultMaxSpeed       = 23.0
	DefaultResetSpeed     = 23.0
	DefaultMaxLanes       = 1
	DefaultLaneScaling    = 1
	DefaultDensityScale   = 5.0
	DefaultStandstillGain = 0.2
	DefaultRLType         = "rl"
)

// Config is the explicit, validated environment configuration.
// Pointer fields distinguish "not set" from zero. The four RL keys are
// required; everything else has a default applied by Validate.
type Config struct {
	Horizon     int     `yaml:"horizon"`
	SimStep     float64 `yaml:"sim_step"`
	SimsPerStep int     `yaml:"sims_per_step,omitempty"`
	WarmupSteps int     `yaml:"warmup_steps,omitempty"`
	Evaluate    bool    `yaml:"evaluate,omitempty"`

	MaxAccel       *float64 `yaml:"max_accel"`
	MaxDecel       *float64 `yaml:"max_decel"`
	TargetVelocity *float64 `yaml:"target_velocity"`
	AddRLIfExit    *bool    `yaml:"add_rl_if_exit"`

	NumObserved    *int `yaml:"num_observed,omitempty"`
	NumLocalLights *int `yaml:"num_local_lights,omitempty"`
	NumLocalEdges  *int `yaml:"num_local_edges,omitempty"`
	TrafficLights  bool `yaml:"traffic_lights,omitempty"`

	Observer string `yaml:"observer,omitempty"` // "grid-local" (default)
	Reward   string `yaml:"reward,omitempty"`   // "min-delay-standstill" (default), "desired-velocity", "local-delay"

	Speed      SpeedBounds      `yaml:"speed,omitempty"`
	Population PopulationConfig `yaml:"population,omitempty"`

	ControlledEdges []string `yaml:"controlled_edges,omitempty"`
	DensityScale    *float64 `yaml:"density_scale,omitempty"`
	StandstillGain  *float64 `yaml:"standstill_gain,omitempty"`
}

// SpeedBounds are the hard limits of the vehicle action mapping.
type SpeedBounds struct {
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Default *float64 `yaml:"default,omitempty"`
}

// PopulationConfig controls where exited RL vehicles come back.
type PopulationConfig struct {
	EntryEdge   string `yaml:"entry_edge,omitempty"` // empty: topology entry edge
	RLType      string `yaml:"rl_type,omitempty"`
	MaxLanes    int    `yaml:"max_lanes,omitempty"`
	LaneScaling int    `yaml:"lane_scaling,omitempty"`
}

// ValidObservers is the set of recognized observation builder names.
var ValidObservers = map[string]bool{"": true, "grid-local": true}

// ValidRewards is the set of recognized reward function names.
var ValidRewards = map[string]bool{"": true, "min-delay-standstill": true, "desired-velocity": true, "local-delay": true}

// LoadConfig reads an environment configuration from YAML.
// Unrecognized keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading env config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required keys and ranges, then fills in defaults.
func (c *Config) Validate() error {
	required := []struct {
		key string
		set bool
	}{
		{"target_velocity", c.TargetVelocity != nil},
		{"add_rl_if_exit", c.AddRLIfExit != nil},
		{"max_accel", c.MaxAccel != nil},
		{"max_decel", c.MaxDecel != nil},
	}
	for _, r := range required {
		if !r.set {
			return fmt.Errorf("%w: %q", ErrMissingParam, r.key)
		}
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", c.Horizon)
	}
	if c.SimStep <= 0 || math.IsNaN(c.SimStep) || math.IsInf(c.SimStep, 0) {
		return fmt.Errorf("sim_step must be a positive finite number, got %f", c.SimStep)
	}
	if *c.MaxAccel < 0 || *c.MaxDecel < 0 {
		return fmt.Errorf("max_accel and max_decel must be non-negative, got %f and %f", *c.MaxAccel, *c.MaxDecel)
	}
	if !ValidObservers[c.Observer] {
		return fmt.Errorf("unknown observer %q", c.Observer)
	}
	if !ValidRewards[c.Reward] {
		return fmt.Errorf("unknown reward %q", c.Reward)
	}
	if c.SimsPerStep == 0 {
		c.SimsPerStep = 1
	}
	if c.SimsPerStep < 0 || c.WarmupSteps < 0 {
		return fmt.Errorf("sims_per_step and warmup_steps must be non-negative")
	}

	c.NumObserved = intOr(c.NumObserved, DefaultNumObserved)
	c.NumLocalLights = intOr(c.NumLocalLights, DefaultNumLocalLights)
	c.NumLocalEdges = intOr(c.NumLocalEdges, DefaultNumLocalEdges)
	if *c.NumObserved < 0 || *c.NumLocalEdges < 0 {
		return fmt.Errorf("num_observed and num_local_edges must be non-negative")
	}
	if *c.NumLocalLights < 0 || *c.NumLocalLights > len(neighborOrder) {
		return fmt.Errorf("num_local_lights must be in [0, %d], got %d", len(neighborOrder), *c.NumLocalLights)
	}

	c.Speed.Min = floatOr(c.Speed.Min, DefaultMinSpeed)
	c.Speed.Max = floatOr(c.Speed.Max, DefaultMaxSpeed)
	c.Speed.Default = floatOr(c.Speed.Default, DefaultResetSpeed)
	if *c.Speed.Min > *c.Speed.Max {
		return fmt.Errorf("speed.min %f exceeds speed.max %f", *c.Speed.Min, *c.Speed.Max)
	}

	if c.Population.RLType == "" {
		c.Population.RLType = DefaultRLType
	}
	if c.Population.MaxLanes == 0 {
		c.Population.MaxLanes = DefaultMaxLanes
	}
	if c.Population.LaneScaling == 0 {
		c.Population.LaneScaling = DefaultLaneScaling
	}
	if c.Population.MaxLanes < 0 || c.Population.LaneScaling < 0 {
		return fmt.Errorf("population.max_lanes and population.lane_scaling must be positive")
	}

	c.DensityScale = floatOr(c.DensityScale, DefaultDensityScale)
	c.StandstillGain = floatOr(c.StandstillGain, DefaultStandstillGain)
	return nil
}

func intOr(v *int, def int) *int {
	if v != nil {
		return v
	}
	return &def
}

func floatOr(v *float64, def float64) *float64 {
	if v != nil {
		return v
	}
	return &def
}
