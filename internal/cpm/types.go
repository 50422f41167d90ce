package cpm

// Durations maps an activity name to its non-negative duration.
type Durations map[string]float64

// CPMResult holds the complete critical path analysis.
type CPMResult struct {
	Activities    map[string]*ActivitySchedule `json:"activities"`
	CriticalPath  []string                     `json:"critical_path"` // zero-slack activities in topological order
	TotalDuration float64                      `json:"total_duration"`
	Waves         []Wave                       `json:"waves"` // parallelizable groups
	TopoOrder     []string                     `json:"topo_order"`
}

// ActivitySchedule holds the scheduling info for a single activity.
type ActivitySchedule struct {
	Activity   string  `json:"activity"`
	Duration   float64 `json:"duration"`
	ES         float64 `json:"es"` // earliest start
	EF         float64 `json:"ef"` // earliest finish
	LS         float64 `json:"ls"` // latest start
	LF         float64 `json:"lf"` // latest finish
	Slack      float64 `json:"slack"`
	IsCritical bool    `json:"is_critical"`
	Wave       int     `json:"wave"` // which parallel wave this belongs to
}

// Wave represents a group of activities that share an earliest start and can
// run in parallel.
type Wave struct {
	Index       int      `json:"index"`
	Start       float64  `json:"start"`
	ActivityIDs []string `json:"activities"`
	IsCritical  bool     `json:"is_critical"` // true if wave contains critical path activities
}

// MissingDurationPolicy decides what happens when an activity has no entry
// in the duration map.
type MissingDurationPolicy int

const (
	// MissingFail rejects the run with a *MissingDurationError.
	MissingFail MissingDurationPolicy = iota
	// MissingDefaultZero treats absent durations as 0.
	MissingDefaultZero
)

// Options tunes a scheduling run. The zero value fails on missing durations.
type Options struct {
	OnMissingDuration MissingDurationPolicy
}
