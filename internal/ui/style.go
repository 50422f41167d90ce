package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
)

// SetEnabled forces colour output on or off, overriding terminal detection.
func SetEnabled(on bool) {
	color.NoColor = !on
}

// PrintLogo renders the colored critpath logo to w.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	path := color.New(color.Bold, color.FgYellow)
	slack := color.New(color.FgCyan, color.Faint)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	path.Fprintln(w, "   |  o==o==o==o==o==o==o==o  |")
	slack.Fprintln(w, "   |     \\__o__/   \\__o__/    |")
	brand.Fprintln(w, "   |   C R I T   P A T H      |")
	frame.Fprintln(w, "   +--------------------------+")
	fmt.Fprintf(w, "   %s Critical path scheduling\n", Dim("⚡"))
	fmt.Fprintln(w)
}

// CriticalMark returns the marker shown next to critical activities.
func CriticalMark(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}

// SlackText colours a formatted slack value: yellow for zero, dim otherwise.
func SlackText(slack string, critical bool) string {
	if critical {
		return BoldYellow(slack)
	}
	return Dim(slack)
}

// Errorf formats a user-facing error line.
func Errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", BoldRed("Error:"), fmt.Sprintf(format, args...))
}

// Warnf formats a user-facing warning line.
func Warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", Yellow("⚠"), fmt.Sprintf(format, args...))
}
