package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-rl/flowgrid/env/rollout"
	"github.com/traffic-rl/flowgrid/internal/testutil"
	"github.com/traffic-rl/flowgrid/sim"
)

func loadFixture(t *testing.T, name string) *sim.Experiment {
	t.Helper()
	x, err := sim.LoadExperiment(testutil.FixturePath(t, name))
	require.NoError(t, err)
	return x
}

func TestRunEpisodes_MetricsPrintedToOutput(t *testing.T) {
	// GIVEN the ring experiment and the zero policy
	x := loadFixture(t, "ring.yaml")
	var buf bytes.Buffer

	// WHEN running two episodes
	err := runEpisodes(context.Background(), x, runOptions{Episodes: 2, Policy: "zero"}, &buf)

	// THEN both episodes report their metrics
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Episode 0")
	assert.Contains(t, out, "Episode 1")
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "Collisions           : 0")
}

func TestRunEpisodes_WritesRolloutsAndIndex(t *testing.T) {
	// GIVEN the grid experiment with a rollout dir and an index
	x := loadFixture(t, "grid.yaml")
	dir := t.TempDir()
	opts := runOptions{
		Episodes:   2,
		Policy:     "random",
		RolloutDir: filepath.Join(dir, "rollouts"),
		IndexPath:  filepath.Join(dir, "episodes.db"),
	}

	// WHEN running
	require.NoError(t, runEpisodes(context.Background(), x, opts, &bytes.Buffer{}))

	// THEN every episode is indexed with its rollout file
	idx, err := rollout.OpenIndex(opts.IndexPath)
	require.NoError(t, err)
	defer idx.Close()
	rows, err := idx.Episodes(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, x.Seed, row.Seed)
		assert.Positive(t, row.Steps)

		// AND the file holds one transition per step, ending in __all__
		transitions, err := rollout.ReadFile(row.Path)
		require.NoError(t, err)
		require.Len(t, transitions, row.Steps, "episode %d", row.Episode)
		last := transitions[len(transitions)-1]
		assert.True(t, last.Dones["__all__"])
		for i, tr := range transitions {
			assert.Equal(t, row.Episode, tr.Episode)
			assert.Equal(t, i+1, tr.Step)
		}
	}
}

func TestRunEpisodes_RejectsBadOptions(t *testing.T) {
	x := loadFixture(t, "ring.yaml")
	tests := []struct {
		name string
		opts runOptions
	}{
		{"zero episodes", runOptions{Episodes: 0, Policy: "zero"}},
		{"unknown policy", runOptions{Episodes: 1, Policy: "greedy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, runEpisodes(context.Background(), x, tt.opts, &bytes.Buffer{}))
		})
	}
}

func TestPrintSpaces(t *testing.T) {
	// GIVEN the grid experiment
	x := loadFixture(t, "grid.yaml")
	var buf bytes.Buffer

	// WHEN printing spaces
	require.NoError(t, printSpaces(x, &buf))

	// THEN the output is JSON naming both boxes and the six agents
	var got struct {
		ObservationSpace struct{ Dim int } `json:"observation_space"`
		ActionSpace      struct{ Dim int } `json:"action_space"`
		Agents           []string          `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Positive(t, got.ObservationSpace.Dim)
	assert.Equal(t, 1, got.ActionSpace.Dim)
	assert.Len(t, got.Agents, 6)
}
