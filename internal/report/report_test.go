package report

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
)

func syntheticResult(t *testing.T) dataset.Result {
	t.Helper()
	cfg := synthetic.DefaultConfig()
	cfg.Frames = 30
	cfg.PointsPerFrame = 10
	d := synthetic.New("demo", cfg)
	r, err := d.Result(context.Background(), d.ResultID())
	require.NoError(t, err)
	require.Len(t, r.Metrics.PerFrameError, 30)
	return r
}

func TestWriteTrajectoryHTML(t *testing.T) {
	r := syntheticResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTrajectoryHTML(&buf, r, ""))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"))
	assert.Contains(t, html, DefaultAssetsHost)
	assert.Contains(t, html, "estimated")
	assert.Contains(t, html, "ground truth")
	assert.Contains(t, html, "Per-frame position error")
	assert.Contains(t, html, r.ID)
}

func TestWriteTrajectoryHTML_NoGroundTruth(t *testing.T) {
	r := syntheticResult(t)
	r.GroundTruth = nil
	r.Metrics = dataset.Metrics{}

	var buf bytes.Buffer
	require.NoError(t, WriteTrajectoryHTML(&buf, r, "/assets/"))

	html := buf.String()
	assert.Contains(t, html, "/assets/")
	assert.NotContains(t, html, "ground truth")
	assert.NotContains(t, html, "Per-frame position error")
}

func TestExtent(t *testing.T) {
	assert.Equal(t, 2.0, extent(nil))
	tr := &dataset.TrajectoryResponse{Trajectory: []dataset.TrajectoryEntry{
		{Position: [3]float64{3, 100, -9}},
	}}
	// y is ignored in the top-down view
	assert.Equal(t, 10.0, extent(tr, nil))
}

func TestWriteErrorPlotPNG(t *testing.T) {
	r := syntheticResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteErrorPlotPNG(&buf, r))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestWriteErrorPlotPNG_NoErrors(t *testing.T) {
	var buf bytes.Buffer
	err := WriteErrorPlotPNG(&buf, dataset.Result{ID: "empty"})
	assert.ErrorIs(t, err, ErrNoErrors)
	assert.Zero(t, buf.Len())
}
