package progress

import (
	"math"
	"path/filepath"

	"stepwise/internal/executor"
)

// ExecutionDiagnostic describes the test run behind an executed-mode report.
type ExecutionDiagnostic struct {
	File         string `json:"file"`
	Passed       bool   `json:"passed"`
	ExitCode     *int   `json:"exitCode"`
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	TimedOut     bool   `json:"timedOut"`
	DurationMs   int64  `json:"durationMs"`
}

// DiagnosticFrom converts an executor outcome for the report.
func DiagnosticFrom(o executor.Outcome) *ExecutionDiagnostic {
	return &ExecutionDiagnostic{
		File:         filepath.Base(o.File),
		Passed:       o.Passed,
		ExitCode:     o.ExitCode,
		Stdout:       o.Stdout,
		Stderr:       o.Stderr,
		ErrorMessage: o.ErrorMessage,
		TimedOut:     o.TimedOut,
		DurationMs:   o.Duration.Milliseconds(),
	}
}

// Report is the progress summary returned to callers.
type Report struct {
	Mode          Mode                 `json:"mode"`
	Current       *string              `json:"current"`
	Passed        []string             `json:"passed"`
	Locked        []string             `json:"locked"`
	Total         int                  `json:"total"`
	PassedCount   int                  `json:"passedCount"`
	LockedCount   int                  `json:"lockedCount"`
	PassedPercent int                  `json:"passedPercent"`
	LockedPercent int                  `json:"lockedPercent"`
	Next          *string              `json:"next"`
	Siblings      []string             `json:"siblings,omitempty"` // same step as current, other identifiers
	Execution     *ExecutionDiagnostic `json:"execution,omitempty"`
}

// Partial is what a classifier produces before normalisation.
type Partial struct {
	Mode      Mode
	Current   *string
	Passed    []string
	Locked    []string
	Total     int
	Next      *string
	Siblings  []string
	Execution *ExecutionDiagnostic
}

// Assemble normalises a partial classification into a Report. Sets are
// copied and never nil; a negative total counts as zero.
func Assemble(p Partial) Report {
	total := p.Total
	if total < 0 {
		total = 0
	}
	passed := append(make([]string, 0, len(p.Passed)), p.Passed...)
	locked := append(make([]string, 0, len(p.Locked)), p.Locked...)
	var siblings []string
	if len(p.Siblings) > 0 {
		siblings = append(siblings, p.Siblings...)
	}

	return Report{
		Mode:          p.Mode,
		Current:       copyString(p.Current),
		Passed:        passed,
		Locked:        locked,
		Total:         total,
		PassedCount:   len(passed),
		LockedCount:   len(locked),
		PassedPercent: percent(len(passed), total),
		LockedPercent: percent(len(locked), total),
		Next:          copyString(p.Next),
		Siblings:      siblings,
		Execution:     p.Execution,
	}
}

func percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(count) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func strPtr(s string) *string { return &s }
