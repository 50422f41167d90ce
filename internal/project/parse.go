package project

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
)

// ParseEdgeList reads the plain edge-list format: one line per predecessor
// followed by comma separated successors ("A,B,C", or "A,-" for an activity
// without successors). Blank lines and lines starting with '#' are skipped.
// Marker and token validation is left to the graph builder.
func ParseEdgeList(r io.Reader) ([]graph.EdgeDecl, error) {
	var decls []graph.EdgeDecl
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Split(text, ",")
		d := graph.EdgeDecl{From: strings.TrimSpace(parts[0])}
		for _, p := range parts[1:] {
			d.To = append(d.To, strings.TrimSpace(p))
		}
		decls = append(decls, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read edge list line %d: %w", line+1, err)
	}
	return decls, nil
}

// ParseDurations reads "activity,duration" CSV rows. A first row whose
// duration column is not numeric is treated as a header.
func ParseDurations(r io.Reader) (cpm.Durations, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	durs := make(cpm.Durations)
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read durations: %w", err)
		}
		row++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("durations row %d: expected activity,duration, got %d fields", row, len(rec))
		}
		name := strings.TrimSpace(rec[0])
		raw := strings.TrimSpace(rec[1])
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("durations row %d: activity %s: %w", row, name, err)
		}
		if name == "" {
			return nil, fmt.Errorf("durations row %d: empty activity name", row)
		}
		if _, dup := durs[name]; dup {
			return nil, fmt.Errorf("durations row %d: duplicate activity %s", row, name)
		}
		durs[name] = d
	}
	return durs, nil
}
