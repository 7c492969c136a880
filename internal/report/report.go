// Package report prints human-readable build summaries.
package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/dgallion1/docuwrite/internal/annotate"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	failColor   = color.New(color.FgRed, color.Bold)
)

// SetColor forces color on or off. "auto" keeps the terminal detection.
func SetColor(mode string) error {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
	default:
		return fmt.Errorf("color must be auto, on or off, got %q", mode)
	}
	return nil
}

// Summary writes the processed and skipped units, the figure outcome and
// the table and TODO counts of m. When every figure succeeded it lists how
// many diagrams of each kind were rendered; otherwise it lists the failures.
func Summary(w io.Writer, m *annotate.Manifest) {
	headerColor.Fprintln(w, "Sources")
	for _, p := range m.Processed {
		okColor.Fprint(w, "  ok   ")
		fmt.Fprintln(w, filepath.Base(p))
	}
	for _, s := range m.Skipped {
		failColor.Fprint(w, "  skip ")
		fmt.Fprintf(w, "%s: %s\n", filepath.Base(s.Path), s.Reason)
	}

	headerColor.Fprintln(w, "Figures")
	failed := m.FailedFigures()
	switch {
	case len(m.Figures) == 0:
		fmt.Fprintln(w, "  no diagrams")
	case len(failed) == 0:
		fmt.Fprintf(w, "  %-20s %s\n", "Diagram type", "Count")
		for _, kc := range m.KindCounts() {
			fmt.Fprintf(w, "  %-20s %d\n", kindLabel(kc.Kind), kc.Count)
		}
		okColor.Fprintf(w, "  all %d diagrams rendered\n", len(m.Figures))
	default:
		for _, f := range failed {
			failColor.Fprintf(w, "  figure %d", f.Number)
			fmt.Fprintf(w, " (%s, %s): %s\n", f.Name, kindLabel(f.Kind), f.Error)
		}
		warnColor.Fprintf(w, "  %d of %d diagrams failed and were left as source\n", len(failed), len(m.Figures))
	}

	headerColor.Fprintln(w, "Annotations")
	fmt.Fprintf(w, "  tables: %d\n", len(m.Tables))
	fmt.Fprintf(w, "  todos:  %d\n", len(m.Todos))

	if m.Output != "" {
		okColor.Fprint(w, "Output: ")
		if m.Pages > 0 {
			fmt.Fprintf(w, "%s (%d pages)\n", m.Output, m.Pages)
		} else {
			fmt.Fprintln(w, m.Output)
		}
	}
}

// Todos writes todos as an aligned table of section, item and line.
func Todos(w io.Writer, todos []annotate.Todo) {
	if len(todos) == 0 {
		okColor.Fprintln(w, "No TODOs found.")
		return
	}
	width := runewidth.StringWidth("Section")
	for _, t := range todos {
		width = max(width, runewidth.StringWidth(t.Section))
	}
	headerColor.Fprintf(w, "%s  %5s  %s\n", runewidth.FillRight("Section", width), "Line", "TODO Item")
	for _, t := range todos {
		fmt.Fprintf(w, "%s  %5d  ", runewidth.FillRight(t.Section, width), t.Line)
		warnColor.Fprintln(w, t.Item)
	}
}

func kindLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
