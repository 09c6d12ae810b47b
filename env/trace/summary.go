package trace

// TraceSummary aggregates statistics from an EpisodeTrace.
type TraceSummary struct {
	Steps               int
	TotalReward         float64 // summed over agents and steps
	MeanStepReward      float64 // mean over steps of the per-step agent mean
	Collided            bool
	AppliedActions      int
	ResetActions        int
	SkippedActions      int
	ReinsertionAttempts int
	ReinsertionRejected int
	RejectedVehicles    map[string]int // vehicle ID → rejected attempts
}

// Summarize computes aggregate statistics from an EpisodeTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(et *EpisodeTrace) *TraceSummary {
	summary := &TraceSummary{
		RejectedVehicles: make(map[string]int),
	}
	if et == nil {
		return summary
	}

	summary.Steps = len(et.Steps)
	rewarded := 0
	meanSum := 0.0
	for _, s := range et.Steps {
		if s.Collided {
			summary.Collided = true
		}
		if len(s.Rewards) == 0 {
			continue
		}
		stepSum := 0.0
		for _, r := range s.Rewards {
			stepSum += r
		}
		summary.TotalReward += stepSum
		meanSum += stepSum / float64(len(s.Rewards))
		rewarded++
	}
	if rewarded > 0 {
		summary.MeanStepReward = meanSum / float64(rewarded)
	}

	for _, a := range et.Actions {
		switch a.Outcome {
		case "applied":
			summary.AppliedActions++
		case "reset":
			summary.ResetActions++
		default:
			summary.SkippedActions++
		}
	}

	summary.ReinsertionAttempts = len(et.Reinsertions)
	for _, r := range et.Reinsertions {
		if !r.Inserted {
			summary.ReinsertionRejected++
			summary.RejectedVehicles[r.VehicleID]++
		}
	}
	return summary
}
