package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSampleBatch_Deterministic(t *testing.T) {
	a := GenerateSampleBatch(50, 42)
	b := GenerateSampleBatch(50, 42)
	assert.Equal(t, a, b, "same seed must generate the same batch")

	c := GenerateSampleBatch(50, 43)
	assert.NotEqual(t, a.Reviews, c.Reviews)
}

func TestGenerateSampleBatch_Shape(t *testing.T) {
	batch := GenerateSampleBatch(200, 7)
	assert.Len(t, batch.Reviews, 200)
	assert.Len(t, batch.Openings, len(sampleShows))

	for _, r := range batch.Reviews {
		assert.NotEmpty(t, r.ShowID)
		assert.NotEmpty(t, r.OutletName)
		assert.Contains(t, batch.Openings, r.ShowID)
	}
}

func TestSaveSampleBatch_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batch.json")
	batch := GenerateSampleBatch(10, 1)
	require.NoError(t, SaveSampleBatch(batch, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got SampleBatch
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got.Reviews, 10)
}
