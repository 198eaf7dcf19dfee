package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte(body), 0o644))
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringSlice("include", nil, "")
	fs.StringSlice("exclude", nil, "")
	fs.Bool("include-generated", false, "")
	fs.String("severity", "", "")
	fs.String("verbosity", "", "")
	fs.Int("jobs", 0, "")
	fs.String("report", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.Severity)
	assert.Equal(t, "normal", cfg.Verbosity)
	assert.Zero(t, cfg.Jobs)
	assert.Empty(t, cfg.Include)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "severity: error\njobs: 3\nexclude: [vendor]\ndisabled_rules: [RF1003]\ngo_version: go1.22\n")
	t.Setenv("REFORM_JOBS", "5")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--severity", "info", "--include", "src,lib"}))

	cfg, err := Load("", dir, flags)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Severity, "flag beats file")
	assert.Equal(t, 5, cfg.Jobs, "env beats file")
	assert.Equal(t, []string{"vendor"}, cfg.Exclude)
	assert.Equal(t, []string{"src", "lib"}, cfg.Include)
	assert.Equal(t, []string{"RF1003"}, cfg.DisabledRules)
	assert.Equal(t, "go1.22", cfg.GoVersion)
}

func TestLoad_UnsetFlagsKeepFileValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "verbosity: detailed\n")

	cfg, err := Load("", dir, testFlags())
	require.NoError(t, err)
	assert.Equal(t, "detailed", cfg.Verbosity)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report: out.db\n"), 0o644))

	cfg, err := Load(path, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "out.db", cfg.Report)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "", nil)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		body string
		want error
	}{
		{"severity: fatal\n", ErrInvalidSeverity},
		{"verbosity: loud\n", ErrInvalidVerbosity},
		{"jobs: -1\n", ErrInvalidJobs},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		writeConfig(t, dir, tt.body)
		_, err := Load("", dir, nil)
		assert.ErrorIs(t, err, tt.want, tt.body)
	}
}
