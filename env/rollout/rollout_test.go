package rollout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-rl/flowgrid/env/trace"
)

func TestWriter_RoundTripPerEpisode(t *testing.T) {
	// GIVEN a writer and transitions for two episodes
	dir := t.TempDir()
	w := NewWriter(dir)
	for ep := 0; ep < 2; ep++ {
		for step := 1; step <= 3; step++ {
			require.NoError(t, w.Write(Transition{
				Episode:      ep,
				Step:         step,
				Observations: map[string][]float64{"center0": {0.1, float64(step)}},
				Rewards:      map[string]float64{"rl_0": -0.5},
				Dones:        map[string]bool{"__all__": step == 3},
			}))
		}
	}
	require.NoError(t, w.Close())

	// WHEN reading each episode file back
	for ep := 0; ep < 2; ep++ {
		got, err := ReadFile(w.PathFor(ep))
		require.NoError(t, err)

		// THEN all of its transitions are there in order
		require.Len(t, got, 3)
		assert.Equal(t, ep, got[0].Episode)
		assert.Equal(t, []float64{0.1, 3}, got[2].Observations["center0"])
		assert.True(t, got[2].Dones["__all__"])
		assert.Nil(t, got[0].Actions)
	}
}

func TestWriter_BeginCreatesEmptyEpisode(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, w.Begin(4))
	require.NoError(t, w.Close())

	got, err := ReadFile(w.PathFor(4))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl.zst"))
	assert.Error(t, err)
}

func TestIndex_RecordAndList(t *testing.T) {
	// GIVEN an index with two episodes, one recorded twice
	ctx := context.Background()
	x, err := OpenIndex(filepath.Join(t.TempDir(), "db", "episodes.sqlite"))
	require.NoError(t, err)
	defer x.Close()

	sum := &trace.TraceSummary{Steps: 10, TotalReward: -2, MeanStepReward: -0.2, ReinsertionAttempts: 3, ReinsertionRejected: 1}
	require.NoError(t, x.Record(ctx, EpisodeFromSummary(0, 42, "episode-000000.jsonl.zst", sum)))
	require.NoError(t, x.Record(ctx, Episode{Episode: 1, Seed: 42, Steps: 5, Collided: true}))
	require.NoError(t, x.Record(ctx, Episode{Episode: 1, Seed: 42, Steps: 6, Collided: true}))

	// WHEN listing
	got, err := x.Episodes(ctx, 10)
	require.NoError(t, err)

	// THEN rows come back newest first with replaced values
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Episode)
	assert.Equal(t, 6, got[0].Steps)
	assert.True(t, got[0].Collided)
	assert.Equal(t, 0, got[1].Episode)
	assert.Equal(t, 3, got[1].Reinsertions)
	assert.Equal(t, 1, got[1].Rejections)
	assert.Equal(t, -0.2, got[1].MeanStepReward)
	assert.NotEmpty(t, got[1].RecordedAt)

	// AND the limit is honored
	got, err = x.Episodes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenIndex_EmptyPath(t *testing.T) {
	_, err := OpenIndex("")
	assert.Error(t, err)
}
