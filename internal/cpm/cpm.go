package cpm

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/joshharrison/critpath/internal/graph"
)

// Tolerance is the relative magnitude below which a computed slack is
// treated as exactly zero. Rounding noise in LS = LF - d grows with the
// project end, so the cutoff used is Tolerance * max(1, TotalDuration).
const Tolerance = 1e-9

// tolerance returns the absolute cutoff for values around magnitude v.
func tolerance(v float64) float64 {
	return Tolerance * math.Max(1, math.Abs(v))
}

// Analyze performs critical path method analysis on a project graph.
// Activities are traversed in a deterministic topological order in which
// ready activities are taken in first-seen order. That same order drives
// both passes and the critical path.
func Analyze(g *graph.ProjectGraph, durations Durations, opts Options) (*CPMResult, error) {
	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	durs, err := resolveDurations(order, durations, opts)
	if err != nil {
		return nil, err
	}

	result := &CPMResult{
		Activities: make(map[string]*ActivitySchedule, len(order)),
		TopoOrder:  order,
	}

	for _, id := range order {
		result.Activities[id] = &ActivitySchedule{Activity: id, Duration: durs[id]}
	}

	// Forward pass: ES = max(EF of all predecessors)
	for _, id := range order {
		ts := result.Activities[id]
		es := 0.0
		for _, pred := range g.Predecessors(id) {
			if ef := result.Activities[pred].EF; ef > es {
				es = ef
			}
		}
		ts.ES = es
		ts.EF = es + ts.Duration
	}

	// One project end shared by every component of the graph.
	total := 0.0
	for _, id := range order {
		if ef := result.Activities[id].EF; ef > total {
			total = ef
		}
	}
	result.TotalDuration = total
	tol := tolerance(total)

	// Backward pass: LF = min(LS of all successors), leaves finish at the project end.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Activities[id]

		succs := g.Successors(id)
		if len(succs) == 0 {
			ts.LF = total
		} else {
			lf := math.Inf(1)
			for _, succ := range succs {
				if ls := result.Activities[succ].LS; ls < lf {
					lf = ls
				}
			}
			ts.LF = lf
		}
		ts.LS = ts.LF - ts.Duration

		slack := ts.LS - ts.ES
		if math.Abs(slack) <= tol {
			slack = 0
		}
		if slack < 0 {
			return nil, &InconsistentScheduleError{Activity: id, Slack: slack}
		}
		ts.Slack = slack
		ts.IsCritical = slack == 0
	}

	for _, id := range order {
		if result.Activities[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	result.Waves = computeWaves(result)

	return result, nil
}

// resolveDurations validates the supplied durations for every activity in
// order and applies the missing-duration policy.
func resolveDurations(order []string, durations Durations, opts Options) (map[string]float64, error) {
	out := make(map[string]float64, len(order))
	var missing []string
	for _, id := range order {
		d, ok := durations[id]
		if !ok {
			if opts.OnMissingDuration == MissingDefaultZero {
				out[id] = 0
				continue
			}
			missing = append(missing, id)
			continue
		}
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return nil, &InvalidDurationError{Activity: id, Value: d}
		}
		out[id] = d
	}
	if len(missing) > 0 {
		return nil, &MissingDurationError{Activities: missing}
	}
	return out, nil
}

// readyQueue is a min-heap of first-seen activity indices.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// topoSort performs Kahn's algorithm. Among activities that are ready at the
// same time, the one seen first in the input always goes next.
func topoSort(g *graph.ProjectGraph) ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, g.Len())
	for _, id := range g.Activities {
		inDegree[id] = len(g.Predecessors(id))
	}

	q := &readyQueue{}
	for i, id := range g.Activities {
		if inDegree[id] == 0 {
			*q = append(*q, i)
		}
	}
	heap.Init(q)

	order := make([]string, 0, g.Len())
	for q.Len() > 0 {
		id := g.Activities[heap.Pop(q).(int)]
		order = append(order, id)

		for _, succ := range g.Successors(id) {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				heap.Push(q, g.Index(succ))
			}
		}
	}

	if len(order) != g.Len() {
		return nil, fmt.Errorf("%w: topological sort ordered %d of %d activities", graph.ErrCycle, len(order), g.Len())
	}

	return order, nil
}

// computeWaves groups activities by their earliest start time.
func computeWaves(result *CPMResult) []Wave {
	ids := make([]string, len(result.TopoOrder))
	copy(ids, result.TopoOrder)
	sort.SliceStable(ids, func(a, b int) bool {
		return result.Activities[ids[a]].ES < result.Activities[ids[b]].ES
	})

	var waves []Wave
	for _, id := range ids {
		ts := result.Activities[id]
		n := len(waves)
		if n == 0 || ts.ES-waves[n-1].Start > tolerance(ts.ES) {
			waves = append(waves, Wave{Index: n, Start: ts.ES})
			n++
		}
		w := &waves[n-1]
		w.ActivityIDs = append(w.ActivityIDs, id)
		ts.Wave = w.Index
		if ts.IsCritical {
			w.IsCritical = true
		}
	}

	// Critical activities first within a wave, topological order otherwise.
	for i := range waves {
		acts := waves[i].ActivityIDs
		sort.SliceStable(acts, func(a, b int) bool {
			return result.Activities[acts[a]].IsCritical && !result.Activities[acts[b]].IsCritical
		})
	}

	return waves
}

// Rows returns the per-activity schedule in topological order.
func (r *CPMResult) Rows() []ActivitySchedule {
	rows := make([]ActivitySchedule, 0, len(r.TopoOrder))
	for _, id := range r.TopoOrder {
		rows = append(rows, *r.Activities[id])
	}
	return rows
}

// CriticalPathString joins the critical path with sep (" -> " when empty).
func (r *CPMResult) CriticalPathString(sep string) string {
	if sep == "" {
		sep = " -> "
	}
	return strings.Join(r.CriticalPath, sep)
}

// Unknown returns the names in d that are not activities of g, sorted.
func (d Durations) Unknown(g *graph.ProjectGraph) []string {
	var out []string
	for name := range d {
		if !g.Has(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// String returns the configuration spelling of the policy.
func (p MissingDurationPolicy) String() string {
	switch p {
	case MissingDefaultZero:
		return "default-zero"
	default:
		return "fail"
	}
}

// ParsePolicy parses "fail" or "default-zero".
func ParsePolicy(s string) (MissingDurationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return MissingFail, nil
	case "default-zero", "default_zero", "zero":
		return MissingDefaultZero, nil
	}
	return MissingFail, fmt.Errorf("unknown missing-duration policy %q (use fail or default-zero)", s)
}
