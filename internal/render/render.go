// Package render formats progress reports for terminals and pipes.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"stepwise/internal/progress"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatText, FormatMarkdown}

// ParseFormat accepts a format name; "md" is an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (valid: json, text, markdown)", s)
}

// Options control terminal rendering.
type Options struct {
	Styles Styles
	// GlamourStyle is a glamour standard style name or a style file path.
	GlamourStyle string
	Width        int
}

// DefaultOptions renders with colour where the terminal supports it.
func DefaultOptions() Options {
	return Options{Styles: DefaultStyles(), GlamourStyle: "auto", Width: 80}
}

// Write renders report to w in the given format.
func Write(w io.Writer, f Format, report progress.Report, opts Options) error {
	switch f {
	case FormatJSON:
		return JSON(w, report)
	case FormatText:
		return Text(w, report, opts.Styles)
	case FormatMarkdown:
		out, err := Markdown(report, opts.GlamourStyle, opts.Width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
	return fmt.Errorf("unknown format %q", f)
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, report progress.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// stepStatus is one row of the step listing.
type stepStatus struct {
	id     string
	status string // passed, current, sibling, failed, locked
}

// steps lists the report's artifacts in curriculum order: passed, then the
// current step when it is not passed and its siblings, then locked.
func steps(r progress.Report) []stepStatus {
	rows := make([]stepStatus, 0, len(r.Passed)+len(r.Locked)+1)
	currentPassed := false
	for _, id := range r.Passed {
		rows = append(rows, stepStatus{id: id, status: "passed"})
		if r.Current != nil && id == *r.Current {
			currentPassed = true
		}
	}
	if r.Current != nil && !currentPassed {
		status := "current"
		if r.Execution != nil && !r.Execution.Passed {
			status = "failed"
		}
		rows = append(rows, stepStatus{id: *r.Current, status: status})
	}
	for _, id := range r.Siblings {
		rows = append(rows, stepStatus{id: id, status: "sibling"})
	}
	for _, id := range r.Locked {
		rows = append(rows, stepStatus{id: id, status: "locked"})
	}
	return rows
}

const barWidth = 20

func bar(s Styles, pct int) string {
	filled := (pct*barWidth + 50) / 100
	if filled > barWidth {
		filled = barWidth
	}
	return s.BarFill.Render(strings.Repeat("█", filled)) + s.BarRest.Render(strings.Repeat("░", barWidth-filled))
}

// Text writes a styled summary.
func Text(w io.Writer, r progress.Report, s Styles) error {
	var b strings.Builder

	b.WriteString(s.Title.Render("Curriculum progress"))
	b.WriteString(s.Muted.Render(fmt.Sprintf(" (%s)", r.Mode)))
	b.WriteString("\n")

	if r.Total == 0 {
		b.WriteString(s.Muted.Render("No test artifacts found."))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s %s  %d/%d passed (%d%%), %d locked (%d%%)\n",
		s.Label.Render("Progress"), bar(s, r.PassedPercent),
		r.PassedCount, r.Total, r.PassedPercent, r.LockedCount, r.LockedPercent)

	var list []string
	for _, row := range steps(r) {
		switch row.status {
		case "passed":
			list = append(list, s.Passed.Render("✓ "+row.id))
		case "current":
			list = append(list, s.Current.Render("• "+row.id+"  (current)"))
		case "sibling":
			list = append(list, s.Current.Render("• "+row.id+"  (current, sibling)"))
		case "failed":
			list = append(list, s.Failed.Render("✗ "+row.id+"  (failing)"))
		default:
			list = append(list, s.Locked.Render("🔒 "+row.id))
		}
	}
	b.WriteString(s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, list...)))
	b.WriteString("\n")

	if r.Next != nil {
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Next:"), *r.Next)
	} else {
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Next:"), s.Muted.Render("none"))
	}

	if e := r.Execution; e != nil {
		fmt.Fprintf(&b, "%s %s %s\n", s.Label.Render("Ran:"), e.File, s.Muted.Render(executionSummary(e)))
		if !e.Passed && e.ErrorMessage != "" {
			b.WriteString(s.Failed.Render("  " + e.ErrorMessage))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func executionSummary(e *progress.ExecutionDiagnostic) string {
	var parts []string
	switch {
	case e.Passed:
		parts = append(parts, "passed")
	case e.TimedOut:
		parts = append(parts, "timed out")
	default:
		parts = append(parts, "failed")
	}
	if e.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("exit %d", *e.ExitCode))
	}
	parts = append(parts, fmt.Sprintf("%dms", e.DurationMs))
	return "(" + strings.Join(parts, ", ") + ")"
}

// MarkdownSource builds the markdown document for a report.
func MarkdownSource(r progress.Report) string {
	var b strings.Builder

	b.WriteString("# Curriculum progress\n\n")
	fmt.Fprintf(&b, "**Mode:** %s | **Passed:** %d/%d (%d%%) | **Locked:** %d/%d (%d%%)\n\n",
		r.Mode, r.PassedCount, r.Total, r.PassedPercent, r.LockedCount, r.Total, r.LockedPercent)

	rows := steps(r)
	if len(rows) == 0 {
		b.WriteString("_No test artifacts found._\n")
	} else {
		b.WriteString("| Step | Status |\n|---|---|\n")
		for _, row := range rows {
			status := row.status
			if status == "sibling" {
				status = "current (sibling)"
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", row.id, status)
		}
		b.WriteString("\n")
	}

	if r.Next != nil {
		fmt.Fprintf(&b, "**Next:** `%s`\n", *r.Next)
	}

	if e := r.Execution; e != nil {
		fmt.Fprintf(&b, "\n## Execution\n\n`%s` %s\n", e.File, executionSummary(e))
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "\n> %s\n", e.ErrorMessage)
		}
		if out := strings.TrimSpace(e.Stderr); out != "" && !e.Passed {
			fmt.Fprintf(&b, "\n```\n%s\n```\n", out)
		}
	}
	return b.String()
}

// Markdown renders the report as terminal markdown with glamour. style is a
// glamour standard style ("auto", "dark", "light", "notty") or a path.
func Markdown(r progress.Report, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return renderer.Render(MarkdownSource(r))
}
