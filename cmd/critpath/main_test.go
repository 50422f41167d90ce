package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/joshharrison/critpath/internal/config"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/server"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func useConfig(t *testing.T, c config.Config) {
	t.Helper()
	prevCfg, prevColor := cfg, color.NoColor
	cfg, color.NoColor = c, true
	t.Cleanup(func() { cfg, color.NoColor = prevCfg, prevColor })
}

func TestLoadInputs_EdgeListAndDurations(t *testing.T) {
	edges := writeFile(t, "edges.txt", "# diamond\nA,B,C\nB,D\nC,D\nD,-\n")
	durs := writeFile(t, "durations.csv", "activity,duration\nA,3\nB,4\nC,5\nD,2\n")

	in, err := loadInputs(inputSources{edgesPath: edges, durationsPath: durs, marker: "-"})
	if err != nil {
		t.Fatalf("loadInputs: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, in.graph.Activities); diff != "" {
		t.Errorf("activities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cpm.Durations{"A": 3, "B": 4, "C": 5, "D": 2}, in.durations); diff != "" {
		t.Errorf("durations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{edges, durs}, in.files); diff != "" {
		t.Errorf("watched files mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInputs_DurationsOverrideProject(t *testing.T) {
	proj := writeFile(t, "p.yaml", "name: demo\nactivities:\n  - name: A\n    duration: 1\n    successors: [B]\n  - name: B\n    duration: 1\n")
	durs := writeFile(t, "d.csv", "B,7\n")

	in, err := loadInputs(inputSources{projectPath: proj, durationsPath: durs, marker: "-"})
	if err != nil {
		t.Fatalf("loadInputs: %v", err)
	}
	if in.name != "demo" || in.project == nil {
		t.Errorf("expected project demo to be loaded, got %q", in.name)
	}
	if diff := cmp.Diff(cpm.Durations{"A": 1, "B": 7}, in.durations); diff != "" {
		t.Errorf("durations mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInputs_Errors(t *testing.T) {
	if _, err := loadInputs(inputSources{marker: "-"}); err == nil {
		t.Error("expected error without input")
	}

	onlyMarkers := writeFile(t, "empty.txt", "-,-\n")
	if _, err := loadInputs(inputSources{edgesPath: onlyMarkers, marker: "-"}); !errors.Is(err, graph.ErrEmptyGraph) {
		t.Errorf("expected ErrEmptyGraph, got %v", err)
	}

	comments := writeFile(t, "comments.txt", "# nothing here\n")
	if _, err := loadInputs(inputSources{edgesPath: comments, marker: "-"}); err == nil || !strings.Contains(err.Error(), "no activities") {
		t.Errorf("expected no activities error, got %v", err)
	}

	cycle := writeFile(t, "cycle.txt", "A,B\nB,A\n")
	if _, err := loadInputs(inputSources{edgesPath: cycle, marker: "-"}); !errors.Is(err, graph.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestRenderSchedule(t *testing.T) {
	useConfig(t, config.Config{Format: "csv", OnMissingDuration: "fail", NoSuccessorMarker: "-"})
	edges := writeFile(t, "edges.txt", "A,B\n")
	durs := writeFile(t, "d.csv", "A,2\nB,3\n")

	var out bytes.Buffer
	if _, err := renderSchedule(context.Background(), &out, inputSources{edgesPath: edges, durationsPath: durs, marker: "-"}); err != nil {
		t.Fatalf("renderSchedule: %v", err)
	}
	want := "activity,duration,es,ef,ls,lf,slack,critical\nA,2,0,2,0,2,0,true\nB,3,2,5,2,5,0,true\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSchedule_MissingDurationPolicy(t *testing.T) {
	edges := writeFile(t, "edges.txt", "A,B\n")
	durs := writeFile(t, "d.csv", "A,2\n")
	src := inputSources{edgesPath: edges, durationsPath: durs, marker: "-"}

	useConfig(t, config.Config{Format: "csv", OnMissingDuration: "fail", NoSuccessorMarker: "-"})
	_, err := renderSchedule(context.Background(), &bytes.Buffer{}, src)
	var me *cpm.MissingDurationError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MissingDurationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, me.Activities); diff != "" {
		t.Errorf("missing activities mismatch (-want +got):\n%s", diff)
	}

	useConfig(t, config.Config{Format: "csv", OnMissingDuration: "default-zero", NoSuccessorMarker: "-"})
	var out bytes.Buffer
	if _, err := renderSchedule(context.Background(), &out, src); err != nil {
		t.Fatalf("renderSchedule with default-zero: %v", err)
	}
	if !strings.Contains(out.String(), "B,0,2,2,2,2,0,true") {
		t.Errorf("expected B with zero duration, got:\n%s", out.String())
	}
}

func TestScheduleRequest(t *testing.T) {
	useConfig(t, config.Config{OnMissingDuration: "default-zero", NoSuccessorMarker: "-"})
	g, err := graph.BuildFromEdges([]graph.Edge{{From: "A", To: "B"}, {From: "A", To: "C"}})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	req := scheduleRequest(&inputs{name: "x", graph: g, durations: cpm.Durations{"A": 1}})
	want := []graph.EdgeDecl{
		{From: "A", To: []string{"B", "C"}},
		{From: "B"},
		{From: "C"},
	}
	if diff := cmp.Diff(want, req.Declarations); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if req.OnMissingDuration != "default-zero" || req.Name != "x" || req.Marker != "-" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestScheduleRequest_CustomMarkerKeepsDashActivity(t *testing.T) {
	useConfig(t, config.Config{OnMissingDuration: "fail", NoSuccessorMarker: "none"})
	edges := writeFile(t, "edges.txt", "A,-
-,none
")

	in, err := loadInputs(inputSources{edgesPath: edges, marker: cfg.NoSuccessorMarker})
	if err != nil {
		t.Fatalf("loadInputs: %v", err)
	}
	in.durations = cpm.Durations{"A": 2, "-": 3}

	req := scheduleRequest(in)
	if req.Marker != "none" {
		t.Errorf("expected marker none, got %q", req.Marker)
	}

	g, result, err := server.Schedule(req)
	if err != nil {
		t.Fatalf("server.Schedule: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "-"}, g.Activities); diff != "" {
		t.Errorf("activities mismatch (-want +got):\n%s", diff)
	}
	if result.TotalDuration != 5 {
		t.Errorf("expected total duration 5, got %v", result.TotalDuration)
	}
}
