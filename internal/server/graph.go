package server

import (
	"time"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
)

// --- Graph types (what a visualiser renders) ---

type GraphNode struct {
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Duration    float64 `json:"duration"`
	ES          float64 `json:"es"`
	EF          float64 `json:"ef"`
	LS          float64 `json:"ls"`
	LF          float64 `json:"lf"`
	Slack       float64 `json:"slack"`
	IsCritical  bool    `json:"is_critical"`
	WaveIndex   int     `json:"wave_index"`
}

type GraphEdge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	IsCritical bool   `json:"is_critical"`
}

type GraphMetadata struct {
	ID              string  `json:"id"`
	Name            string  `json:"name,omitempty"`
	CreatedAt       string  `json:"created_at"`
	TotalActivities int     `json:"total_activities"`
	TotalWaves      int     `json:"total_waves"`
	TotalDuration   float64 `json:"total_duration"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []string      `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph flattens a schedule into nodes and edges, both in topological order.
func toGraph(id, name string, g *graph.ProjectGraph, res *cpm.CPMResult, descs map[string]string, now time.Time) *Graph {
	nodes := make([]GraphNode, 0, len(res.TopoOrder))
	for _, row := range res.Rows() {
		nodes = append(nodes, GraphNode{
			ID:          row.Activity,
			Description: descs[row.Activity],
			Duration:    row.Duration,
			ES:          row.ES,
			EF:          row.EF,
			LS:          row.LS,
			LF:          row.LF,
			Slack:       row.Slack,
			IsCritical:  row.IsCritical,
			WaveIndex:   row.Wave,
		})
	}

	edges := []GraphEdge{}
	for _, from := range res.TopoOrder {
		for _, to := range g.Successors(from) {
			f, t := res.Activities[from], res.Activities[to]
			edges = append(edges, GraphEdge{
				From:       from,
				To:         to,
				IsCritical: f.IsCritical && t.IsCritical && t.ES == f.EF,
			})
		}
	}

	critical := res.CriticalPath
	if critical == nil {
		critical = []string{}
	}

	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: critical,
		Metadata: GraphMetadata{
			ID:              id,
			Name:            name,
			CreatedAt:       now.UTC().Format(time.RFC3339),
			TotalActivities: len(nodes),
			TotalWaves:      len(res.Waves),
			TotalDuration:   res.TotalDuration,
		},
	}
}
