package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepwise/internal/progress"
)

func strPtr(s string) *string { return &s }

func declaredReport() progress.Report {
	return progress.Assemble(progress.Partial{
		Mode:    progress.ModeDeclared,
		Current: strPtr("2.test.js"),
		Passed:  []string{"1.test.js"},
		Locked:  []string{"3.test.js"},
		Total:   3,
		Next:    strPtr("3.test.js"),
	})
}

func failedExecutedReport() progress.Report {
	code := 1
	return progress.Assemble(progress.Partial{
		Mode:    progress.ModeExecuted,
		Current: strPtr("1.test.js"),
		Total:   2,
		Next:    strPtr("1.test.js"),
		Execution: &progress.ExecutionDiagnostic{
			File: "1.test.js", ExitCode: &code, Stderr: "expected 2 to be 3\n  at line 4\n",
			ErrorMessage: "expected 2 to be 3", DurationMs: 40,
		},
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, " TEXT ": FormatText, "markdown": FormatMarkdown, "md": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, declaredReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2.test.js", decoded["current"])
	assert.Equal(t, float64(33), decoded["passedPercent"])
	assert.NotContains(t, decoded, "execution")
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \""), "indented")
}

func TestSteps(t *testing.T) {
	assert.Equal(t, []stepStatus{
		{"1.test.js", "passed"}, {"2.test.js", "current"}, {"3.test.js", "locked"},
	}, steps(declaredReport()))

	assert.Equal(t, []stepStatus{{"1.test.js", "failed"}}, steps(failedExecutedReport()))

	passedRun := progress.Assemble(progress.Partial{
		Mode: progress.ModeExecuted, Current: strPtr("1.test.js"), Passed: []string{"1.test.js"}, Total: 2,
		Execution: &progress.ExecutionDiagnostic{File: "1.test.js", Passed: true},
	})
	assert.Equal(t, []stepStatus{{"1.test.js", "passed"}}, steps(passedRun))
}

func siblingReport() progress.Report {
	return progress.Assemble(progress.Partial{
		Mode:     progress.ModeDeclared,
		Current:  strPtr("2.test.js"),
		Passed:   []string{"1.test.js"},
		Locked:   []string{"3.test.js"},
		Siblings: []string{"2.test.py"},
		Total:    4,
		Next:     strPtr("3.test.js"),
	})
}

func TestSteps_ListsSiblingsWithCurrent(t *testing.T) {
	assert.Equal(t, []stepStatus{
		{"1.test.js", "passed"}, {"2.test.js", "current"}, {"2.test.py", "sibling"}, {"3.test.js", "locked"},
	}, steps(siblingReport()))
}

func TestText_Siblings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, siblingReport(), PlainStyles()))
	out := buf.String()

	assert.Contains(t, out, "• 2.test.js  (current)")
	assert.Contains(t, out, "• 2.test.py  (current, sibling)")
	assert.Less(t, strings.Index(out, "2.test.py"), strings.Index(out, "3.test.js"))
}

func TestMarkdownSource_Siblings(t *testing.T) {
	md := MarkdownSource(siblingReport())
	assert.Contains(t, md, "| `2.test.js` | current |")
	assert.Contains(t, md, "| `2.test.py` | current (sibling) |")
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, declaredReport(), PlainStyles()))
	out := buf.String()

	assert.Contains(t, out, "Curriculum progress (declared)")
	assert.Contains(t, out, "1/3 passed (33%), 1 locked (33%)")
	assert.Contains(t, out, "✓ 1.test.js")
	assert.Contains(t, out, "• 2.test.js  (current)")
	assert.Contains(t, out, "🔒 3.test.js")
	assert.Contains(t, out, "Next: 3.test.js")
	assert.Contains(t, out, "███████"+"░")
}

func TestText_Execution(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, failedExecutedReport(), PlainStyles()))
	out := buf.String()

	assert.Contains(t, out, "✗ 1.test.js  (failing)")
	assert.Contains(t, out, "Ran: 1.test.js (failed, exit 1, 40ms)")
	assert.Contains(t, out, "  expected 2 to be 3")
}

func TestText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, progress.Assemble(progress.Partial{Mode: progress.ModeExecuted}), PlainStyles()))
	assert.Equal(t, "Curriculum progress (executed)\nNo test artifacts found.\n", buf.String())
}

func TestMarkdownSource(t *testing.T) {
	md := MarkdownSource(declaredReport())

	assert.Contains(t, md, "# Curriculum progress")
	assert.Contains(t, md, "| `1.test.js` | passed |")
	assert.Contains(t, md, "| `2.test.js` | current |")
	assert.Contains(t, md, "| `3.test.js` | locked |")
	assert.Contains(t, md, "**Next:** `3.test.js`")
	assert.NotContains(t, md, "## Execution")

	md = MarkdownSource(failedExecutedReport())
	assert.Contains(t, md, "## Execution")
	assert.Contains(t, md, "> expected 2 to be 3")
	assert.Contains(t, md, "```\nexpected 2 to be 3\n  at line 4\n```")
}

func TestMarkdown_Renders(t *testing.T) {
	out, err := Markdown(declaredReport(), "notty", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Curriculum progress")
	assert.Contains(t, out, "3.test.js")
}

func TestWrite(t *testing.T) {
	opts := Options{Styles: PlainStyles(), GlamourStyle: "notty", Width: 80}
	for _, f := range Formats {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, declaredReport(), opts), f)
		assert.Contains(t, buf.String(), "2.test.js", f)
	}
	assert.Error(t, Write(&bytes.Buffer{}, "yaml", declaredReport(), opts))
}
