package project

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
)

//go:embed example.toml
var exampleTOML []byte

// Load reads a project file, choosing the decoder by extension
// (.toml, .yaml/.yml, .json).
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	p, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Parse decodes project data in the named format.
func Parse(data []byte, format string) (*Project, error) {
	var p *Project
	var err error
	switch format {
	case "toml":
		p, err = parseTOML(data)
	case "yaml", "yml":
		p, err = parseYAML(data)
	case "json":
		p, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported project format %q (use toml, yaml or json)", format)
	}
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Example returns the built-in water pump project.
func Example() *Project {
	p, err := parseTOML(exampleTOML)
	if err != nil {
		panic(fmt.Sprintf("project: embedded example is invalid: %v", err))
	}
	return p
}

// ExampleTOML returns the raw embedded example file.
func ExampleTOML() []byte {
	out := make([]byte, len(exampleTOML))
	copy(out, exampleTOML)
	return out
}

func parseTOML(data []byte) (*Project, error) {
	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return &p, nil
}

func parseYAML(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &p, nil
}

func parseJSON(data []byte) (*Project, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parsing JSON: invalid document")
	}
	root := gjson.ParseBytes(data)
	acts := root.Get("activities")
	if acts.Exists() && !acts.IsArray() {
		return nil, fmt.Errorf("parsing JSON: activities must be an array")
	}

	p := &Project{Name: root.Get("name").String()}
	var ferr error
	acts.ForEach(func(_, item gjson.Result) bool {
		spec := ActivitySpec{
			Name:        item.Get("name").String(),
			Description: item.Get("description").String(),
		}
		if d := item.Get("duration"); d.Exists() && d.Type != gjson.Null {
			if d.Type != gjson.Number {
				ferr = fmt.Errorf("parsing JSON: activity %q: duration must be a number, got %s", spec.Name, d.Raw)
				return false
			}
			v := d.Float()
			spec.Duration = &v
		}
		item.Get("successors").ForEach(func(_, s gjson.Result) bool {
			spec.Successors = append(spec.Successors, s.String())
			return true
		})
		p.Activities = append(p.Activities, spec)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return p, nil
}

// Validate rejects blank and duplicate activity names.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Activities))
	for i, a := range p.Activities {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("activity %d: missing name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("activity %s declared more than once", name)
		}
		seen[name] = true
	}
	return nil
}

// Declarations converts the activity list to graph declarations, keeping
// file order.
func (p *Project) Declarations() []graph.EdgeDecl {
	decls := make([]graph.EdgeDecl, 0, len(p.Activities))
	for _, a := range p.Activities {
		decls = append(decls, graph.EdgeDecl{From: a.Name, To: a.Successors})
	}
	return decls
}

// Durations returns the durations that were given explicitly.
func (p *Project) Durations() cpm.Durations {
	durs := make(cpm.Durations, len(p.Activities))
	for _, a := range p.Activities {
		if a.Duration != nil {
			durs[strings.TrimSpace(a.Name)] = *a.Duration
		}
	}
	return durs
}

// Descriptions maps activity names to their descriptions, skipping blanks.
func (p *Project) Descriptions() map[string]string {
	out := make(map[string]string)
	for _, a := range p.Activities {
		if a.Description != "" {
			out[strings.TrimSpace(a.Name)] = a.Description
		}
	}
	return out
}
