package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/critpath/internal/graph"
)

// Marshal encodes the project in the named format.
func (p *Project) Marshal(format string) ([]byte, error) {
	switch format {
	case "toml":
		return toml.Marshal(p)
	case "yaml", "yml":
		return yaml.Marshal(p)
	case "json":
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported project format %q (use toml, yaml or json)", format)
}

// Save writes the project to path in the format implied by its extension.
func (p *Project) Save(path string) error {
	data, err := p.Marshal(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}

// AddEdges appends each edge to its predecessor's successor list. A
// predecessor that only appeared as a successor gets its own entry.
// Edges already present are skipped. It returns the number added.
func (p *Project) AddEdges(edges []graph.Edge) int {
	index := make(map[string]int, len(p.Activities))
	for i, a := range p.Activities {
		index[strings.TrimSpace(a.Name)] = i
	}

	added := 0
	for _, e := range edges {
		i, ok := index[e.From]
		if !ok {
			p.Activities = append(p.Activities, ActivitySpec{Name: e.From})
			i = len(p.Activities) - 1
			index[e.From] = i
		}
		dup := false
		for _, s := range p.Activities[i].Successors {
			if strings.TrimSpace(s) == e.To {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		p.Activities[i].Successors = append(p.Activities[i].Successors, e.To)
		added++
	}
	return added
}
