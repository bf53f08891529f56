package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/benchrun/internal/project"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCase(rel string) *project.Case {
	return &project.Case{
		TestVector: project.TestVector{"nnodes": "2"},
		RelPath:    rel,
	}
}

func TestRecordAndQueryExecutions(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.StartRun("stencil", "/data/stencil", "slurm")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, s.RecordExecution(testCase("small/n1"), "success", 90*time.Second))
	require.NoError(t, s.RecordExecution(testCase("small/n2"), "failed", 3*time.Second))

	execs, err := s.RunExecutions(runID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "small/n1", execs[0].CasePath)
	assert.Equal(t, "success", execs[0].Outcome)
	assert.Equal(t, int64(90000), execs[0].DurationMS)
	assert.JSONEq(t, `{"nnodes": "2"}`, execs[0].TestVector)
	assert.Equal(t, "failed", execs[1].Outcome)
}

func TestCaseExecutionsMostRecentFirst(t *testing.T) {
	s := openTestStore(t)

	_, err := s.StartRun("stencil", "/data/stencil", "mpirun")
	require.NoError(t, err)
	require.NoError(t, s.RecordExecution(testCase("small/n1"), "failed", time.Second))

	_, err = s.StartRun("stencil", "/data/stencil", "mpirun")
	require.NoError(t, err)
	require.NoError(t, s.RecordExecution(testCase("small/n1"), "success", time.Second))

	execs, err := s.CaseExecutions("small/n1")
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "success", execs[0].Outcome)
	assert.Equal(t, "failed", execs[1].Outcome)
	assert.NotEqual(t, execs[0].RunID, execs[1].RunID)
}

func TestRecordWithoutRunFails(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordExecution(testCase("n1"), "success", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StartRun")
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.StartRun("p", "/p", "pbs")
	require.NoError(t, err)
	require.NoError(t, s1.RecordExecution(testCase("n1"), "timeout", time.Minute))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	execs, err := s2.CaseExecutions("n1")
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "timeout", execs[0].Outcome)
}
