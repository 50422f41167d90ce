package graph

// NoSuccessor is the default placeholder token meaning "this activity has no
// further successors". Tokens equal to the marker never become edges.
const NoSuccessor = "-"

// EdgeDecl is one dependency declaration: a predecessor followed by zero or
// more successors. A declaration without successors still introduces From as
// an activity.
type EdgeDecl struct {
	From string   `json:"from" toml:"from" yaml:"from"`
	To   []string `json:"to,omitempty" toml:"to" yaml:"to"`
}

// Edge is a single ordered dependency: From must finish before To starts.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProjectGraph is a directed acyclic graph of activities.
type ProjectGraph struct {
	Activities []string            // first-seen order
	Adj        map[string][]string // activity -> successors, edge insertion order
	RevAdj     map[string][]string // activity -> predecessors, edge insertion order
	Roots      []string            // activities with no predecessors
	Leaves     []string            // activities with no successors

	index map[string]int
	edges []Edge
}
