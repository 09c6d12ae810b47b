// Package trace provides decision-trace recording for environment episodes.
// This package has no dependencies on env/ or sim/: it stores pure data types.
package trace

// StepRecord captures the outcome of one environment step.
type StepRecord struct {
	Step        int                `json:"step"`
	Time        float64            `json:"time"`
	NumVehicles int                `json:"num_vehicles"`
	NumRL       int                `json:"num_rl"`
	Rewards     map[string]float64 `json:"rewards,omitempty"` // may be empty when no agent acted
	Collided    bool               `json:"collided,omitempty"`
	Done        bool               `json:"done,omitempty"`
}

// ActionRecord captures one action mapping decision.
type ActionRecord struct {
	Step     int     `json:"step"`
	AgentID  string  `json:"agent_id"`
	Edge     string  `json:"edge"`
	Delta    float64 `json:"delta"`     // clipped speed-ceiling delta
	MaxSpeed float64 `json:"max_speed"` // ceiling after the command
	Outcome  string  `json:"outcome"`   // "applied", "reset" or "skipped"
}

// ReinsertionRecord captures one attempt to restore an exited roster member.
type ReinsertionRecord struct {
	Step      int    `json:"step"`
	VehicleID string `json:"vehicle_id"`
	Edge      string `json:"edge"`
	Lane      int    `json:"lane"`
	Inserted  bool   `json:"inserted"`
	Reason    string `json:"reason,omitempty"`
}
