package main

import (
	"fmt"
	"os"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
)

// inputs is everything a command needs to schedule a project.
type inputs struct {
	name         string
	project      *project.Project // nil for edge-list input
	projectPath  string
	graph        *graph.ProjectGraph
	durations    cpm.Durations
	descriptions map[string]string
	files        []string // sources to watch
}

// inputSources names where the project comes from.
type inputSources struct {
	projectPath   string
	edgesPath     string
	durationsPath string
	marker        string
}

// loadInputs reads a project file or an edge list, overlays a durations CSV
// when one is given, and builds the graph.
func loadInputs(src inputSources) (*inputs, error) {
	in := &inputs{durations: cpm.Durations{}, descriptions: map[string]string{}}

	var decls []graph.EdgeDecl
	switch {
	case src.projectPath != "":
		p, err := project.Load(src.projectPath)
		if err != nil {
			return nil, err
		}
		in.name = p.Name
		in.project = p
		in.projectPath = src.projectPath
		decls = p.Declarations()
		in.durations = p.Durations()
		in.descriptions = p.Descriptions()
		in.files = append(in.files, src.projectPath)

	case src.edgesPath != "":
		f, err := os.Open(src.edgesPath)
		if err != nil {
			return nil, fmt.Errorf("open edge list: %w", err)
		}
		defer f.Close()
		decls, err = project.ParseEdgeList(f)
		if err != nil {
			return nil, err
		}
		in.files = append(in.files, src.edgesPath)

	default:
		return nil, fmt.Errorf("no input: pass a project file or --edges (see `critpath example`)")
	}

	if src.durationsPath != "" {
		f, err := os.Open(src.durationsPath)
		if err != nil {
			return nil, fmt.Errorf("open durations: %w", err)
		}
		defer f.Close()
		durs, err := project.ParseDurations(f)
		if err != nil {
			return nil, err
		}
		for k, v := range durs {
			in.durations[k] = v
		}
		in.files = append(in.files, src.durationsPath)
	}

	g, err := graph.Build(decls, graph.WithMarker(src.marker))
	if err != nil {
		return nil, err
	}
	if g.Len() == 0 {
		return nil, fmt.Errorf("no activities found")
	}
	in.graph = g
	return in, nil
}
