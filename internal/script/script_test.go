package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain word", "hello", "hello"},
		{"number", "42", "42"},
		{"path", "/usr/bin/app", "/usr/bin/app"},
		{"space", "a b", "\"a b\""},
		{"tab", "a\tb", "\"a\tb\""},
		{"glob star", "*.dat", "\"*.dat\""},
		{"glob question", "file?", "\"file?\""},
		{"brackets", "[abc]", "\"[abc]\""},
		{"dollar", "$HOME", "\"$HOME\""},
		{"braces", "{a,b}", "\"{a,b}\""},
		{"parens", "(x)", "\"(x)\""},
		{"semicolon", "a;b", "\"a;b\""},
		{"redirect", "a>b", "\"a>b\""},
		{"ampersand", "a&b", "\"a&b\""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.input))
		})
	}
}

func TestRenderLayout(t *testing.T) {
	s := New()
	s.AddDirective("#SBATCH -J app")
	s.AddDirective("#SBATCH -n 64")
	s.SetEnv("OMP_NUM_THREADS", "4")
	s.SetEnv("FLAGS", "-x -y")
	s.AddCommand("srun", "-n", "64", "./app")

	got := s.Render()
	want := strings.Join([]string{
		"#!/bin/bash",
		"#",
		"#SBATCH -J app",
		"#SBATCH -n 64",
		"",
		"export OMP_NUM_THREADS=4",
		"export FLAGS=\"-x -y\"",
		"",
		"srun -n 64 ./app",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderNoEnvsOmitsExportBlock(t *testing.T) {
	s := New()
	s.AddCommand("mpirun", "-np", "4", "./app")
	got := s.Render()
	assert.NotContains(t, got, "export")
	assert.Contains(t, got, "mpirun -np 4 ./app\n")
}

func TestRenderRawCommand(t *testing.T) {
	s := New()
	s.AddRawCommand("srun hostname > /tmp/hostfile-abc")
	got := s.Render()
	// Raw lines must keep their redirection unquoted.
	assert.Contains(t, got, "srun hostname > /tmp/hostfile-abc\n")
}

func TestRenderQuotesArguments(t *testing.T) {
	s := New()
	s.AddCommand("./app", "--pattern", "*.out")
	assert.Contains(t, s.Render(), "./app --pattern \"*.out\"")
}

func TestWriteFileExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")

	s := New()
	s.AddCommand("true")
	require.NoError(t, s.WriteFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "script should be executable")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/bin/bash\n"))
}
