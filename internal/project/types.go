package project

// ActivitySpec is one activity as written in a project file.
type ActivitySpec struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Duration    *float64 `toml:"duration,omitempty" yaml:"duration,omitempty" json:"duration,omitempty"`
	Successors  []string `toml:"successors,omitempty" yaml:"successors,omitempty" json:"successors,omitempty"`
	Description string   `toml:"description,omitempty" yaml:"description,omitempty" json:"description,omitempty"`
}

// Project is a parsed project file: an ordered activity list whose
// successors form the dependency graph.
type Project struct {
	Name       string         `toml:"name" yaml:"name" json:"name"`
	Activities []ActivitySpec `toml:"activities" yaml:"activities" json:"activities"`
}
