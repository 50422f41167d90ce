package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/ui"
)

// Reporter renders a schedule in the supported output formats.
type Reporter struct {
	Name         string
	Graph        *graph.ProjectGraph
	Result       *cpm.CPMResult
	Descriptions map[string]string
}

// New creates a new Reporter.
func New(g *graph.ProjectGraph, result *cpm.CPMResult) *Reporter {
	return &Reporter{Graph: g, Result: result}
}

// Write renders the schedule to w in the named format.
func (r *Reporter) Write(w io.Writer, format string) error {
	switch format {
	case "", "table":
		r.PrintTable(w)
		return nil
	case "json":
		data, err := r.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "csv":
		return r.WriteCSV(w)
	case "dot":
		return r.WriteDOT(w)
	case "ascii":
		r.PrintWaves(w)
		return nil
	}
	return fmt.Errorf("unsupported format %q", format)
}

// FormatNumber renders a duration or time without trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	criticalStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("11"))
)

// PrintTable writes the schedule table followed by the critical path.
func (r *Reporter) PrintTable(w io.Writer) {
	title := "CPM Schedule"
	if r.Name != "" {
		title += ": " + r.Name
	}
	fmt.Fprintf(w, "📊 %s\n\n", ui.BoldCyan(title))

	rows := r.Result.Rows()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Activity", "Duration", "ES", "EF", "LS", "LF", "Slack").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && rows[row].IsCritical:
				return criticalStyle
			default:
				return cellStyle
			}
		})
	for _, row := range rows {
		t.Row(
			row.Activity,
			FormatNumber(row.Duration),
			FormatNumber(row.ES),
			FormatNumber(row.EF),
			FormatNumber(row.LS),
			FormatNumber(row.LF),
			FormatNumber(row.Slack),
		)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Summary())
}

// Summary returns the one-line critical path summary.
func (r *Reporter) Summary() string {
	return fmt.Sprintf("⚡ Critical path: %s (%d activities, project duration %s)",
		ui.BoldYellow(r.Result.CriticalPathString("")),
		len(r.Result.CriticalPath),
		ui.Bold(FormatNumber(r.Result.TotalDuration)))
}

type jsonActivity struct {
	cpm.ActivitySchedule
	Description  string   `json:"description,omitempty"`
	Predecessors []string `json:"predecessors"`
	Successors   []string `json:"successors"`
}

type jsonReport struct {
	Project          string         `json:"project,omitempty"`
	TotalDuration    float64        `json:"total_duration"`
	CriticalPath     []string       `json:"critical_path"`
	CriticalPathText string         `json:"critical_path_text"`
	Activities       []jsonActivity `json:"activities"`
	Waves            []cpm.Wave     `json:"waves"`
	Edges            []graph.Edge   `json:"edges"`
}

// JSON returns the machine-readable schedule.
func (r *Reporter) JSON() ([]byte, error) {
	out := jsonReport{
		Project:          r.Name,
		TotalDuration:    r.Result.TotalDuration,
		CriticalPath:     nonNil(r.Result.CriticalPath),
		CriticalPathText: r.Result.CriticalPathString(""),
		Activities:       []jsonActivity{},
		Waves:            r.Result.Waves,
		Edges:            nonNilEdges(r.Graph.Edges()),
	}
	if out.Waves == nil {
		out.Waves = []cpm.Wave{}
	}
	for _, row := range r.Result.Rows() {
		out.Activities = append(out.Activities, jsonActivity{
			ActivitySchedule: row,
			Description:      r.Descriptions[row.Activity],
			Predecessors:     nonNil(r.Graph.Predecessors(row.Activity)),
			Successors:       nonNil(r.Graph.Successors(row.Activity)),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteCSV writes one row per activity in topological order.
func (r *Reporter) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"activity", "duration", "es", "ef", "ls", "lf", "slack", "critical"}); err != nil {
		return err
	}
	for _, row := range r.Result.Rows() {
		rec := []string{
			row.Activity,
			FormatNumber(row.Duration),
			FormatNumber(row.ES),
			FormatNumber(row.EF),
			FormatNumber(row.LS),
			FormatNumber(row.LF),
			FormatNumber(row.Slack),
			strconv.FormatBool(row.IsCritical),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDOT writes a Graphviz digraph with the critical path in red.
func (r *Reporter) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph critpath {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, id := range r.Graph.Activities {
		ts := r.Result.Activities[id]
		label := id
		if desc := r.Descriptions[id]; desc != "" {
			label += "\n" + desc
		}
		attrs := ""
		if ts != nil {
			label += fmt.Sprintf("\nd=%s ES=%s LS=%s slack=%s",
				FormatNumber(ts.Duration), FormatNumber(ts.ES), FormatNumber(ts.LS), FormatNumber(ts.Slack))
			if ts.IsCritical {
				attrs = `, style="rounded,bold", color=red`
			}
		}
		fmt.Fprintf(&b, "  %q [label=%q%s];\n", id, label, attrs)
	}

	b.WriteString("\n")

	for _, e := range r.Graph.Edges() {
		style := ""
		from, to := r.Result.Activities[e.From], r.Result.Activities[e.To]
		if from != nil && to != nil && from.IsCritical && to.IsCritical && to.ES == from.EF {
			style = ` [color=red, penwidth=2]`
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", e.From, e.To, style)
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// PrintWaves writes the ASCII view: activities grouped by earliest start,
// each followed by its successors.
func (r *Reporter) PrintWaves(w io.Writer) {
	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Activity Dependency Graph"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════════"))
	fmt.Fprintln(w)

	for _, wave := range r.Result.Waves {
		fmt.Fprintf(w, "%s Wave %d (start %s) %s\n",
			ui.Cyan("──"), wave.Index+1, FormatNumber(wave.Start), ui.Cyan("──────────────────────────"))
		for _, id := range wave.ActivityIDs {
			ts := r.Result.Activities[id]
			title := ""
			if desc := r.Descriptions[id]; desc != "" {
				title = " " + desc
			}
			fmt.Fprintf(w, "  %s [%s]%s %s\n", ui.CriticalMark(ts.IsCritical), ui.BoldMagenta(id), title,
				ui.SlackText(fmt.Sprintf("(d=%s, slack %s)", FormatNumber(ts.Duration), FormatNumber(ts.Slack)), ts.IsCritical))

			for _, succ := range r.Graph.Successors(id) {
				fmt.Fprintf(w, "      %s %s\n", ui.Dim("└──→"), ui.Magenta(succ))
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, r.Summary())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilEdges(e []graph.Edge) []graph.Edge {
	if e == nil {
		return []graph.Edge{}
	}
	return e
}
