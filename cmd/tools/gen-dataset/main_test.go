package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/dataset/logsource"
	"github.com/banshee-data/slamview/internal/dataset/sqlitesource"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
)

func smallDataset() *synthetic.Dataset {
	cfg := synthetic.DefaultConfig()
	cfg.Frames = 4
	cfg.PointsPerFrame = 50
	return synthetic.New("gen", cfg)
}

func TestWriteLog_RoundTrip(t *testing.T) {
	d := smallDataset()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gen")
	require.NoError(t, writeLog(ctx, d, path))

	r, err := logsource.Open(path)
	require.NoError(t, err)
	traj, err := r.Trajectory(ctx, "gen")
	require.NoError(t, err)
	assert.Len(t, traj.Trajectory, 4)

	want, err := d.FramePoints(ctx, "gen", 2, 0)
	require.NoError(t, err)
	got, err := r.FramePoints(ctx, "gen", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	img, err := r.FrameImage(ctx, "gen", 3, synthetic.CameraSensor)
	require.NoError(t, err)
	assert.NotEmpty(t, img)
}

func TestWriteDB_ImportsDatasetAndResult(t *testing.T) {
	d := smallDataset()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "datasets.db")
	require.NoError(t, writeDB(ctx, d, path))

	st, err := sqlitesource.Open(path)
	require.NoError(t, err)
	defer st.Close()

	traj, err := st.Trajectory(ctx, "gen")
	require.NoError(t, err)
	assert.Len(t, traj.Trajectory, 4)

	res, err := st.Result(ctx, d.ResultID())
	require.NoError(t, err)
	assert.Equal(t, "gen", res.DatasetID)
	assert.Positive(t, res.Metrics.ATE)
}
