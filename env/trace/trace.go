package trace

// TraceLevel controls the verbosity of episode tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures one record per environment step.
	TraceLevelSteps TraceLevel = "steps"
	// TraceLevelDecisions also captures every action and reinsertion.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelSteps:     true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel `yaml:"level"`
}

// EpisodeTrace collects records during one environment episode.
type EpisodeTrace struct {
	Config       TraceConfig
	Steps        []StepRecord
	Actions      []ActionRecord
	Reinsertions []ReinsertionRecord
}

// NewEpisodeTrace creates an EpisodeTrace ready for recording.
func NewEpisodeTrace(config TraceConfig) *EpisodeTrace {
	return &EpisodeTrace{
		Config:       config,
		Steps:        make([]StepRecord, 0),
		Actions:      make([]ActionRecord, 0),
		Reinsertions: make([]ReinsertionRecord, 0),
	}
}

// Reset drops all records, keeping the configuration.
func (et *EpisodeTrace) Reset() {
	et.Steps = et.Steps[:0]
	et.Actions = et.Actions[:0]
	et.Reinsertions = et.Reinsertions[:0]
}

func (et *EpisodeTrace) enabled() bool {
	return et.Config.Level == TraceLevelSteps || et.Config.Level == TraceLevelDecisions
}

// RecordStep appends a step record.
func (et *EpisodeTrace) RecordStep(record StepRecord) {
	if et.enabled() {
		et.Steps = append(et.Steps, record)
	}
}

// RecordAction appends an action record at decisions level.
func (et *EpisodeTrace) RecordAction(record ActionRecord) {
	if et.Config.Level == TraceLevelDecisions {
		et.Actions = append(et.Actions, record)
	}
}

// RecordReinsertion appends a reinsertion record at decisions level.
func (et *EpisodeTrace) RecordReinsertion(record ReinsertionRecord) {
	if et.Config.Level == TraceLevelDecisions {
		et.Reinsertions = append(et.Reinsertions, record)
	}
}
