package reporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/benchrun/internal/project"
)

func testProject() *project.Project {
	return &project.Project{
		Name:        "himeno",
		TestFactors: []string{"nnodes"},
		DataFiles:   nil,
	}
}

func TestConsoleProgressLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleColored(&buf, false)

	p := testProject()
	c.total = 4
	c.CaseBegin(p, &project.Case{RelPath: "nnodes-1"})
	c.CaseEnd(p, &project.Case{RelPath: "nnodes-1"}, "success")
	c.CaseBegin(p, &project.Case{RelPath: "nnodes-2"})
	c.CaseEnd(p, &project.Case{RelPath: "nnodes-2"}, "skipped since excluded")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "   [ 25%] Run nnodes-1 ... success", lines[0])
	assert.Equal(t, "   [ 50%] Run nnodes-2 ... skipped since excluded", lines[1])
}

func TestConsoleProjectHeaderAndSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleColored(&buf, false)
	p := testProject()

	c.ProjectBegin(p)

	stats := project.NewRunStats()
	require.NoError(t, stats.Add(project.BucketSuccess, project.CaseRef{Path: "a"}))
	require.NoError(t, stats.Add(project.BucketSuccess, project.CaseRef{Path: "b"}))
	require.NoError(t, stats.Add(project.BucketFailed, project.CaseRef{Path: "c"}))
	c.ProjectEnd(p, stats)

	out := buf.String()
	assert.Contains(t, out, "Start project himeno:\n")
	assert.Contains(t, out, "Done.\n")
	assert.Contains(t, out, "2 success, 0 timeout, 1 failed, 0 skipped\n")
}

func TestConsoleColorizedOutcomes(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleColored(&buf, true)
	p := testProject()
	c.total = 1

	c.CaseBegin(p, &project.Case{RelPath: "x"})
	c.CaseEnd(p, &project.Case{RelPath: "x"}, "failed")

	assert.Contains(t, buf.String(), "\x1b[31mfailed\x1b[0m")
}

func TestConsoleZeroCasesNoDivideByZero(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleColored(&buf, false)
	p := testProject()

	c.ProjectBegin(p)
	c.CaseBegin(p, &project.Case{RelPath: "x"})
	c.CaseEnd(p, &project.Case{RelPath: "x"}, "dryrun")

	assert.Contains(t, buf.String(), "[  0%] Run x ... dryrun")
}
