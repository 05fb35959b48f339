package dataset

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/slam"
)

func TestFramePoints_DecodeAndConvert(t *testing.T) {
	body := `{"x":[5,1],"y":[0,2],"z":[0,3],"intensity":[10,200]}`
	var fp FramePoints
	require.NoError(t, json.Unmarshal([]byte(body), &fp))

	batch, err := fp.ToBatch(7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), batch.FrameIndex)
	want := []slam.Point3D{
		{X: 5, Intensity: 10, HasIntensity: true},
		{X: 1, Y: 2, Z: 3, Intensity: 200, HasIntensity: true},
	}
	if diff := cmp.Diff(want, batch.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestFramePoints_WithoutIntensity(t *testing.T) {
	var fp FramePoints
	require.NoError(t, json.Unmarshal([]byte(`{"x":[1],"y":[2],"z":[3]}`), &fp))
	batch, err := fp.ToBatch(0)
	require.NoError(t, err)
	assert.False(t, batch.Points[0].HasIntensity)

	out, err := json.Marshal(FramePointsFrom(batch.Points))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":[1],"y":[2],"z":[3]}`, string(out))
}

func TestFramePoints_Validate(t *testing.T) {
	tests := []struct {
		name string
		fp   FramePoints
		ok   bool
	}{
		{"empty", FramePoints{}, true},
		{"parallel", FramePoints{X: []float64{1}, Y: []float64{1}, Z: []float64{1}}, true},
		{"short y", FramePoints{X: []float64{1, 2}, Y: []float64{1}, Z: []float64{1, 2}}, false},
		{"short intensity", FramePoints{X: []float64{1}, Y: []float64{1}, Z: []float64{1}, Intensity: []float64{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fp.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			_, err = tt.fp.ToBatch(0)
			assert.Error(t, err)
		})
	}
}

func TestFramePoints_Sample(t *testing.T) {
	fp := FramePoints{}
	for i := 0; i < 10; i++ {
		fp.X = append(fp.X, float64(i))
		fp.Y = append(fp.Y, 0)
		fp.Z = append(fp.Z, 0)
		fp.Intensity = append(fp.Intensity, float64(i*10))
	}
	s := fp.Sample(5)
	assert.Equal(t, []float64{0, 2, 4, 6, 8}, s.X)
	assert.Equal(t, []float64{0, 20, 40, 60, 80}, s.Intensity)
	assert.NoError(t, s.Validate())

	assert.Equal(t, 10, fp.Sample(0).Len())
	assert.Equal(t, 10, fp.Sample(50).Len())
}

func TestTrajectoryResponse(t *testing.T) {
	body := `{"trajectory":[
		{"position":[0,0,0],"pose":[[1,0,0],[0,1,0],[0,0,1]]},
		{"position":[1,0,0],"pose":[[1,0,0],[0,1,0],[0,0,1]]}
	]}`
	var resp TrajectoryResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	traj := resp.ToTrajectory()
	require.Len(t, traj, 2)
	assert.Equal(t, uint32(1), traj[1].FrameIndex)
	assert.Equal(t, r3.Vector{X: 1}, traj[1].Position)
	assert.Equal(t, slam.IdentityRotation, traj[1].Rotation)

	assert.Equal(t, resp, TrajectoryResponseFrom(traj))
}

func TestScore(t *testing.T) {
	gt, err := slam.NewTrajectory(
		[]r3.Vector{{}, {X: 1}, {X: 2}},
		[][3][3]float64{slam.IdentityRotation, slam.IdentityRotation, slam.IdentityRotation},
	)
	require.NoError(t, err)
	est := make(slam.Trajectory, len(gt))
	copy(est, gt)
	est[1].Position = r3.Vector{X: 1, Y: 3}
	est[2].Position = r3.Vector{X: 2, Y: 4}

	m := Score(est, gt)
	assert.Equal(t, []float64{0, 3, 4}, m.PerFrameError)
	assert.InDelta(t, 5/math.Sqrt(3), m.ATE, 1e-12)
	// displacement errors 3 and 1
	assert.InDelta(t, math.Sqrt(5), m.RPE, 1e-12)

	assert.Equal(t, Metrics{}, Score(nil, gt))
	assert.Equal(t, 0.0, Score(est[:1], gt).RPE)
}
