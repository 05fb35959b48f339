package sqlitesource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "datasets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func importSynthetic(t *testing.T, s *Store) *synthetic.Dataset {
	t.Helper()
	cfg := synthetic.DefaultConfig()
	cfg.Frames = 8
	cfg.PointsPerFrame = 64
	src := synthetic.New("loop", cfg)
	require.NoError(t, s.Import(context.Background(), src, "loop", "Loop drive", []string{synthetic.CameraSensor, "thermal"}))
	return src
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// idempotent
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	require.NoError(t, s.MigrateUp())
}

func TestImportAndServe(t *testing.T) {
	s := openTestStore(t)
	src := importSynthetic(t, s)
	ctx := context.Background()

	infos, err := s.Datasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DatasetInfo{{ID: "loop", Name: "Loop drive", Frames: 8}}, infos)

	wantTraj, _ := src.Trajectory(ctx, "loop")
	gotTraj, err := s.Trajectory(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, wantTraj, gotTraj)

	want, _ := src.FramePoints(ctx, "loop", 5, 0)
	got, err := s.FramePoints(ctx, "loop", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	capped, err := s.FramePoints(ctx, "loop", 5, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, capped.Len())

	img, err := s.FrameImage(ctx, "loop", 3, synthetic.CameraSensor)
	require.NoError(t, err)
	wantImg, _ := src.FrameImage(ctx, "loop", 3, synthetic.CameraSensor)
	assert.Equal(t, wantImg, img)
}

func TestNotFound(t *testing.T) {
	s := openTestStore(t)
	importSynthetic(t, s)
	ctx := context.Background()

	_, err := s.FramePoints(ctx, "loop", 99, 0)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = s.Trajectory(ctx, "missing")
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = s.FrameImage(ctx, "loop", 0, "thermal")
	assert.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = s.Result(ctx, "missing")
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestUnavailableAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.FramePoints(context.Background(), "loop", 0, 0)
	assert.ErrorIs(t, err, dataset.ErrUnavailable)
}

func TestResults(t *testing.T) {
	s := openTestStore(t)
	src := importSynthetic(t, s)
	ctx := context.Background()

	want, err := src.Result(ctx, src.ResultID())
	require.NoError(t, err)
	require.NoError(t, s.PutResult(ctx, want))

	got, err := s.Result(ctx, src.ResultID())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	bare := dataset.Result{ID: "bare", DatasetID: "loop", Trajectory: want.Trajectory}
	require.NoError(t, s.PutResult(ctx, bare))
	got, err = s.Result(ctx, "bare")
	require.NoError(t, err)
	assert.Nil(t, got.GroundTruth)
	assert.Nil(t, got.Metrics.PerFrameError)
}

func TestPutFrame_RejectsRaggedArrays(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateDataset(context.Background(), "x", ""))
	err := s.PutFrame(context.Background(), "x", 0, dataset.FramePoints{X: []float64{1}})
	assert.Error(t, err)
}

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)
	importSynthetic(t, s)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	for _, endpoint := range []string{"/debug/datasets", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, endpoint, nil)
			req.RemoteAddr = "127.0.0.1:4000"
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			// debug access may be refused, but the route must exist and not fail
			assert.NotEqual(t, http.StatusNotFound, w.Code)
			assert.NotEqual(t, http.StatusInternalServerError, w.Code)
			if endpoint == "/debug/datasets" && w.Code == http.StatusOK {
				assert.Contains(t, w.Body.String(), "loop\t8 frames\tLoop drive")
			}
		})
	}
}
