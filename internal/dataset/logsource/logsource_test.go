package logsource

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
)

func recordSynthetic(t *testing.T, frames int) (string, *synthetic.Dataset) {
	t.Helper()
	cfg := synthetic.DefaultConfig()
	cfg.Frames = frames
	cfg.PointsPerFrame = 50
	src := synthetic.New("demo", cfg)
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "demo")
	rec, err := NewRecorder(dir, "demo")
	require.NoError(t, err)

	traj, err := src.Trajectory(ctx, "demo")
	require.NoError(t, err)
	rec.SetTrajectory(traj)

	for i := 0; i < frames; i++ {
		fp, err := src.FramePoints(ctx, "demo", uint32(i), 0)
		require.NoError(t, err)
		var images map[string][]byte
		if i%2 == 0 {
			img, err := src.FrameImage(ctx, "demo", uint32(i), synthetic.CameraSensor)
			require.NoError(t, err)
			images = map[string][]byte{synthetic.CameraSensor: img}
		}
		require.NoError(t, rec.Record(fp, images))
	}
	assert.Equal(t, frames, rec.FrameCount())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	return dir, src
}

func TestRoundTrip(t *testing.T) {
	dir, src := recordSynthetic(t, 12)
	ctx := context.Background()

	r, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), r.Header().TotalFrames)
	assert.Equal(t, []string{synthetic.CameraSensor}, r.Header().Sensors)

	for _, frame := range []uint32{0, 7, 11, 3} {
		want, err := src.FramePoints(ctx, "demo", frame, 0)
		require.NoError(t, err)
		got, err := r.FramePoints(ctx, "demo", frame, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got, "frame %d", frame)
	}

	wantTraj, _ := src.Trajectory(ctx, "demo")
	gotTraj, err := r.Trajectory(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, wantTraj, gotTraj)

	img, err := r.FrameImage(ctx, "demo", 4, synthetic.CameraSensor)
	require.NoError(t, err)
	assert.NotEmpty(t, img)
	_, err = r.FrameImage(ctx, "demo", 5, synthetic.CameraSensor)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestChunkRotation(t *testing.T) {
	dir, _ := recordSynthetic(t, ChunkSize+3)
	_, err := os.Stat(chunkPath(dir, 1))
	require.NoError(t, err)

	r, err := Open(dir)
	require.NoError(t, err)
	fp, err := r.FramePoints(context.Background(), "demo", ChunkSize+2, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, fp.Len())

	// back to the first chunk
	_, err = r.FramePoints(context.Background(), "demo", 1, 0)
	require.NoError(t, err)
}

func TestErrors(t *testing.T) {
	dir, _ := recordSynthetic(t, 2)
	r, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.FramePoints(ctx, "other", 0, 0)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = r.FramePoints(ctx, "demo", 2, 0)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = r.Trajectory(ctx, "other")
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	require.NoError(t, os.Remove(chunkPath(dir, 0)))
	r, err = Open(dir)
	require.NoError(t, err)
	_, err = r.FramePoints(ctx, "demo", 0, 0)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)
}

func TestCorruptChunk(t *testing.T) {
	dir, src := recordSynthetic(t, 2)
	ctx := context.Background()

	r, err := Open(dir)
	require.NoError(t, err)
	first, second := r.index[0], r.index[1]
	require.Equal(t, first.ChunkID, second.ChunkID)

	data, err := os.ReadFile(chunkPath(dir, int(first.ChunkID)))
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[first.Offset:], 0xFFFFFFFF)
	require.NoError(t, os.WriteFile(chunkPath(dir, int(first.ChunkID)), data, 0644))

	r, err = Open(dir)
	require.NoError(t, err)
	_, err = r.FramePoints(ctx, "demo", 0, 0)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)
	_, err = r.FrameImage(ctx, "demo", 0, synthetic.CameraSensor)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)

	// the second frame is intact
	fp, err := r.FramePoints(ctx, "demo", 1, 0)
	require.NoError(t, err)
	want, err := src.FramePoints(ctx, "demo", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, want.Len(), fp.Len())

	// truncated inside the second frame's length prefix
	require.NoError(t, os.WriteFile(chunkPath(dir, int(first.ChunkID)), data[:second.Offset+2], 0644))
	r, err = Open(dir)
	require.NoError(t, err)
	_, err = r.FramePoints(ctx, "demo", 1, 0)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestRecorder_RejectsInvalidAndClosed(t *testing.T) {
	rec, err := NewRecorder(t.TempDir(), "demo")
	require.NoError(t, err)
	assert.Error(t, rec.Record(dataset.FramePoints{X: []float64{1}}, nil))
	require.NoError(t, rec.Close())
	assert.Error(t, rec.Record(dataset.FramePoints{}, nil))

	_, err = NewRecorder("", "demo")
	assert.Error(t, err)
}
