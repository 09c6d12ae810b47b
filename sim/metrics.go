// Tracks simulation-wide traffic statistics such as throughput and speeds.

package sim

import (
	"fmt"
	"io"
)

// Metrics aggregates statistics about the simulation for final reporting.
type Metrics struct {
	Steps      int // Number of simulation steps executed
	Departed   int // Vehicles inserted after the initial placement
	Arrived    int // Vehicles that left the network
	Collisions int // Steps on which at least one overlap was detected

	SpeedSum       float64 // Sum of vehicle speeds over all vehicle-steps
	VehicleSteps   int     // Number of vehicle-steps sampled
	StandstillSecs float64 // Total vehicle-seconds spent stopped

	SimEndedTime float64
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MeanSpeed is the average sampled vehicle speed, 0 when nothing was sampled.
func (m *Metrics) MeanSpeed() float64 {
	if m.VehicleSteps == 0 {
		return 0
	}
	return m.SpeedSum / float64(m.VehicleSteps)
}

// Print writes the aggregated metrics at the end of the simulation.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %.2f s\n", m.SimEndedTime)
	fmt.Fprintf(w, "Steps                : %d\n", m.Steps)
	fmt.Fprintf(w, "Departed Vehicles    : %d\n", m.Departed)
	fmt.Fprintf(w, "Arrived Vehicles     : %d\n", m.Arrived)
	fmt.Fprintf(w, "Collisions           : %d\n", m.Collisions)
	if m.VehicleSteps > 0 {
		fmt.Fprintf(w, "Mean Speed           : %.2f m/s\n", m.MeanSpeed())
		fmt.Fprintf(w, "Standstill Time      : %.2f veh*s\n", m.StandstillSecs)
	}
}
