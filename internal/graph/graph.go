package graph

import (
	"sort"
	"strings"
)

// Option configures a Builder.
type Option func(*Builder)

// WithMarker overrides the no-successor placeholder token.
func WithMarker(marker string) Option {
	return func(b *Builder) {
		if marker != "" {
			b.marker = marker
		}
	}
}

// Builder accumulates declarations and produces a validated ProjectGraph.
// Errors are deferred: the first one encountered is returned from Build.
// A Builder must not be reused after Build.
type Builder struct {
	marker  string
	decls   int
	edgeSet map[Edge]bool
	g       *ProjectGraph
	err     error
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		marker:  NoSuccessor,
		edgeSet: make(map[Edge]bool),
		g: &ProjectGraph{
			Adj:    make(map[string][]string),
			RevAdj: make(map[string][]string),
			index:  make(map[string]int),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs a ProjectGraph from an ordered list of declarations.
func Build(decls []EdgeDecl, opts ...Option) (*ProjectGraph, error) {
	b := NewBuilder(opts...)
	for _, d := range decls {
		b.Add(d)
	}
	return b.Build()
}

// BuildFromEdges constructs a ProjectGraph from plain (predecessor, successor) pairs.
func BuildFromEdges(edges []Edge, opts ...Option) (*ProjectGraph, error) {
	b := NewBuilder(opts...)
	for _, e := range edges {
		b.AddEdge(e.From, e.To)
	}
	return b.Build()
}

// Add records one declaration.
func (b *Builder) Add(d EdgeDecl) {
	b.decls++
	if b.err != nil {
		return
	}

	from, ok := b.token(d.From)
	var succs []string
	for _, raw := range d.To {
		if to, ok := b.token(raw); ok {
			succs = append(succs, to)
		}
	}

	if !ok {
		if len(succs) > 0 && strings.TrimSpace(d.From) == "" {
			b.err = &InvalidTokenError{Line: b.decls, Msg: "empty predecessor with successors " + strings.Join(succs, ",")}
			return
		}
		// Marker as predecessor: successors still become activities.
		for _, s := range succs {
			b.addActivity(s)
		}
		return
	}

	b.addActivity(from)
	for _, to := range succs {
		b.addEdge(from, to)
	}
}

// AddActivity records an activity that may have no edges.
func (b *Builder) AddActivity(name string) {
	b.Add(EdgeDecl{From: name})
}

// AddEdge records a single dependency from -> to.
func (b *Builder) AddEdge(from, to string) {
	b.Add(EdgeDecl{From: from, To: []string{to}})
}

// Build finalises the graph. It fails with *CycleError if the graph is not
// acyclic and with *EmptyGraphError if declarations were given but none
// produced an activity.
func (b *Builder) Build() (*ProjectGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := b.g
	if b.decls > 0 && len(g.Activities) == 0 {
		return nil, &EmptyGraphError{Declarations: b.decls}
	}

	for _, id := range g.Activities {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}
	return g, nil
}

func (b *Builder) token(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	if t == "" || t == b.marker {
		return "", false
	}
	return t, true
}

func (b *Builder) addActivity(id string) {
	if _, ok := b.g.index[id]; ok {
		return
	}
	b.g.index[id] = len(b.g.Activities)
	b.g.Activities = append(b.g.Activities, id)
}

func (b *Builder) addEdge(from, to string) {
	b.addActivity(to)
	key := Edge{From: from, To: to}
	if b.edgeSet[key] {
		return
	}
	b.edgeSet[key] = true
	b.g.Adj[from] = append(b.g.Adj[from], to)
	b.g.RevAdj[to] = append(b.g.RevAdj[to], from)
	b.g.edges = append(b.g.edges, key)
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
// Activities are visited in first-seen order so the reported cycle is stable.
func (g *ProjectGraph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.Adj[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.Activities {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Validate checks a graph that was assembled by hand or decoded from an
// external source: every edge endpoint must be a declared activity, Adj and
// RevAdj must record the same edges, and the graph must be acyclic. Checks
// run in activity order so the first problem reported is deterministic.
func (g *ProjectGraph) Validate() error {
	for _, from := range g.Activities {
		for _, to := range g.Adj[from] {
			if !g.Has(to) {
				return &DanglingEdgeError{Edge: Edge{From: from, To: to}, Activity: to}
			}
			if !contains(g.RevAdj[to], from) {
				return &MismatchedEdgeError{Edge: Edge{From: from, To: to}, Missing: "predecessors"}
			}
		}
	}
	for _, to := range g.Activities {
		for _, from := range g.RevAdj[to] {
			if !g.Has(from) {
				return &DanglingEdgeError{Edge: Edge{From: from, To: to}, Activity: from}
			}
			if !contains(g.Adj[from], to) {
				return &MismatchedEdgeError{Edge: Edge{From: from, To: to}, Missing: "successors"}
			}
		}
	}
	for _, from := range sortedKeys(g.Adj) {
		if succs := g.Adj[from]; len(succs) > 0 && !g.Has(from) {
			return &DanglingEdgeError{Edge: Edge{From: from, To: succs[0]}, Activity: from}
		}
	}
	for _, to := range sortedKeys(g.RevAdj) {
		if preds := g.RevAdj[to]; len(preds) > 0 && !g.Has(to) {
			return &DanglingEdgeError{Edge: Edge{From: preds[0], To: to}, Activity: to}
		}
	}
	if cycle := g.DetectCycle(); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of activities in the graph.
func (g *ProjectGraph) Len() int {
	return len(g.Activities)
}

// Has reports whether id is a declared activity.
func (g *ProjectGraph) Has(id string) bool {
	return g.Index(id) >= 0
}

// Index returns the first-seen position of id, or -1 if it is unknown.
func (g *ProjectGraph) Index(id string) int {
	if g.index != nil {
		if i, ok := g.index[id]; ok {
			return i
		}
		return -1
	}
	for i, a := range g.Activities {
		if a == id {
			return i
		}
	}
	return -1
}

// Successors returns the activities that depend on id.
func (g *ProjectGraph) Successors(id string) []string {
	return g.Adj[id]
}

// Predecessors returns the activities id depends on.
func (g *ProjectGraph) Predecessors(id string) []string {
	return g.RevAdj[id]
}

// Edges returns every dependency in insertion order.
func (g *ProjectGraph) Edges() []Edge {
	if g.edges != nil {
		out := make([]Edge, len(g.edges))
		copy(out, g.edges)
		return out
	}
	var out []Edge
	for _, from := range g.Activities {
		for _, to := range g.Adj[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}
