package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const validYAML = `
resultsDb: runs.db
dataPlatform:
  url: https://example.supabase.co
  schema: capex
  bufferFile: buffer.db
scenarios:
  - name: baseline
    inputDir: testdata/baseline
    solver:
      backend: simplex
      timeoutSecs: 120
      wantDuals: true
      flags:
        tol: 1e-8
  - name: deep_decarb
    inputDir: testdata/deep_decarb
    modules: [carbon, retrofit, hydrogen, demand_response, steam]
    storageBoundary: reset
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "runs.db", cfg.ResultsDB)
	require.NotNil(t, cfg.DataPlatform)
	assert.Equal(t, "capex", cfg.DataPlatform.Schema)

	require.Len(t, cfg.Scenarios, 2)
	base := cfg.Scenarios[0]
	assert.Empty(t, base.Modules, "no modules listed means no policies enabled")
	opts := base.Solver.Options()
	assert.Equal(t, "simplex", opts.Backend)
	assert.Equal(t, 120*time.Second, opts.Timeout)
	assert.True(t, opts.WantDuals)
	assert.Contains(t, opts.Flags, "tol")

	deep := cfg.Scenarios[1]
	assert.Equal(t, []string{"carbon", "retrofit", "hydrogen", "demand_response", "steam"}, deep.Modules)
	assert.Equal(t, "reset", deep.StorageBoundary)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no scenarios", "resultsDb: runs.db\n"},
		{"unnamed scenario", "scenarios:\n  - inputDir: d\n"},
		{"missing input dir", "scenarios:\n  - name: a\n"},
		{"duplicate names", "scenarios:\n  - name: a\n    inputDir: d\n  - name: a\n    inputDir: e\n"},
		{"unknown module", "scenarios:\n  - name: a\n    inputDir: d\n    modules: [fusion]\n"},
		{"unknown boundary", "scenarios:\n  - name: a\n    inputDir: d\n    storageBoundary: hold\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
