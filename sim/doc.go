// Package sim provides the built-in microscopic traffic simulator that backs
// the environment.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - network.go: road networks (ring, figure-eight, grid) and their routing graph
//   - vehicle.go: the vehicle record and IDM car following
//   - simulator.go: the fixed-step loop, stop lines, edge transitions and insertion
//
// # Architecture
//
// The simulator is exposed to the environment only through env.Kernel, built
// by (*Simulator).Kernel in kernel.go. Randomness is split per subsystem by
// PartitionedRNG so that routing choices, placement and driver noise stay
// reproducible under a fixed seed, and Reset replays the same episode.
//
// Experiment (experiment.go) ties a scenario, an environment configuration
// and a seed together and builds both halves.
package sim
