package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/traffic-rl/flowgrid/env"
	"github.com/traffic-rl/flowgrid/env/trace"
)

// Experiment bundles everything needed to run the environment on the
// built-in simulator, loadable from one YAML file.
type Experiment struct {
	Seed     int64             `yaml:"seed"`
	Env      env.Config        `yaml:"env"`
	Scenario ScenarioConfig    `yaml:"scenario"`
	Trace    trace.TraceConfig `yaml:"trace,omitempty"`
}

// LoadExperiment reads and parses a YAML experiment file.
// Unrecognized keys are rejected.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}
	return ParseExperiment(data)
}

// ParseExperiment parses experiment YAML with strict field checking.
func ParseExperiment(data []byte) (*Experiment, error) {
	var x Experiment
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&x); err != nil {
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	return &x, nil
}

// Validate checks every section without building anything.
func (x *Experiment) Validate() error {
	cfg := x.Env
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	sc := x.Scenario
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	if !trace.IsValidTraceLevel(string(x.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q", x.Trace.Level)
	}
	return nil
}

// Build creates a fresh simulator and the environment wrapped around it.
// Each call works on private copies of the configuration, so one
// Experiment can back several environments.
func (x *Experiment) Build(opts ...env.Option) (*env.MultiEnv, *Simulator, error) {
	sc := x.Scenario
	sc.Vehicles = append([]VehicleSpec(nil), x.Scenario.Vehicles...)
	s, err := NewSimulator(&sc, x.Env.SimStep, NewSimulationKey(x.Seed))
	if err != nil {
		return nil, nil, err
	}
	cfg := x.Env
	e, err := env.NewMultiEnv(&cfg, s.Kernel(), s.Network.Topology(), opts...)
	if err != nil {
		return nil, nil, err
	}
	return e, s, nil
}
