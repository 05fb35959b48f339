package coords

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/slam"
)

const tol = 1e-9

func identityPose(x, y, z float64, frame uint32) slam.Pose {
	return slam.Pose{
		Position:   r3.Vector{X: x, Y: y, Z: z},
		Rotation:   slam.IdentityRotation,
		FrameIndex: frame,
	}
}

// rotationZYX builds R = Rz(yaw)·Ry(pitch)·Rx(roll).
func rotationZYX(yaw, pitch, roll float64) [3][3]float64 {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)
	return [3][3]float64{
		{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr},
		{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr},
		{-sp, cp * sr, cp * cr},
	}
}

func TestAxisPermutationsAreInverse(t *testing.T) {
	v := r3.Vector{X: 1.5, Y: -2.25, Z: 3.125}
	assert.Equal(t, v, CameraToLidar(LidarToCamera(v)))
	assert.Equal(t, v, DisplayToCamera(CameraToDisplay(v)))
}

// Three identity poses along camera X; seek(1) and push a LiDAR point 5m
// straight ahead through the combined-view pipeline.
func TestSensorToDisplay_WorkedExample(t *testing.T) {
	traj := slam.Trajectory{
		identityPose(0, 0, 0, 0),
		identityPose(1, 0, 0, 1),
		identityPose(2, 0, 0, 2),
	}
	pose, ok := traj.At(1)
	require.True(t, ok)

	lidar := r3.Vector{X: 5}
	cam := LidarToCamera(lidar)
	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 5}, cam)

	world := pose.Apply(cam)
	assert.Equal(t, r3.Vector{X: 1, Y: 0, Z: 5}, world)

	tr := NewTransformer()
	got, ok := tr.SensorToDisplay(slam.Point3D{X: 5}, pose)
	require.True(t, ok)
	assert.Equal(t, r3.Vector{X: 5, Y: -1, Z: 0}, got.Vec())
	assert.Equal(t, 50.0, got.Intensity)
	assert.True(t, got.HasIntensity)
}

func TestSensorToDisplay_KeepsIntensity(t *testing.T) {
	tr := NewTransformer()
	got, ok := tr.SensorToDisplay(slam.Point3D{X: 10, Intensity: 200, HasIntensity: true}, identityPose(0, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 200.0, got.Intensity)
}

func TestGate(t *testing.T) {
	g := DefaultGate()
	tests := []struct {
		name string
		p    r3.Vector
		want bool
	}{
		{"inside", r3.Vector{X: 10, Z: 1}, true},
		{"self return", r3.Vector{X: 0.5}, false},
		{"exactly min range", r3.Vector{X: 1.0}, false},
		{"exactly max range", r3.Vector{X: 80.0}, false},
		{"beyond max range", r3.Vector{X: 100}, false},
		{"below ground band", r3.Vector{X: 10, Z: -3.5}, false},
		{"exactly min z", r3.Vector{X: 10, Z: -3}, false},
		{"sky", r3.Vector{X: 10, Z: 5}, false},
		{"just under sky", r3.Vector{X: 10, Z: 4.99}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Accepts(tt.p))
		})
	}
}

func TestTransformBatch_EmptyInput(t *testing.T) {
	out, src := NewTransformer().TransformBatch(nil, identityPose(0, 0, 0, 0))
	assert.Empty(t, out)
	assert.Empty(t, src)
}

func TestTransformBatch_DropsGatedPointsAndTracksSource(t *testing.T) {
	points := []slam.Point3D{
		{X: 0.2},           // self return
		{X: 5},             // kept
		{X: 10, Z: 6},      // sky
		{X: 3, Y: 4, Z: 1}, // kept
	}
	out, src := NewTransformer().TransformBatch(points, identityPose(0, 0, 0, 0))
	require.Len(t, out, 2)
	assert.Equal(t, []uint32{1, 3}, src)
}

func TestTransformBatch_MatchesSinglePointPath(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewTransformer()
	pose := slam.Pose{
		Position: r3.Vector{X: 3.3, Y: -1.2, Z: 40.1},
		Rotation: rotationZYX(0.4, -0.2, 1.1),
	}

	points := make([]slam.Point3D, 500)
	for i := range points {
		points[i] = slam.Point3D{
			X: rng.Float64()*120 - 60,
			Y: rng.Float64()*120 - 60,
			Z: rng.Float64()*12 - 5,
		}
		if i%3 == 0 {
			points[i].Intensity = float64(i % 256)
			points[i].HasIntensity = true
		}
	}

	out, src := tr.TransformBatch(points, pose)
	var k int
	for i, p := range points {
		single, ok := tr.SensorToDisplay(p, pose)
		if !ok {
			continue
		}
		require.Less(t, k, len(out))
		assert.Equal(t, uint32(i), src[k])
		// exact equality: both paths must produce identical bits
		assert.Equal(t, single, out[k])
		k++
	}
	assert.Equal(t, len(out), k)
}

func TestRoundTrip_RecoversSensorCoordinates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := NewTransformer()

	for trial := 0; trial < 50; trial++ {
		pose := slam.Pose{
			Position: r3.Vector{X: rng.NormFloat64() * 20, Y: rng.NormFloat64() * 2, Z: rng.NormFloat64() * 20},
			Rotation: rotationZYX(rng.Float64()*2*math.Pi, rng.Float64()-0.5, rng.Float64()-0.5),
		}
		for i := 0; i < 40; i++ {
			l := r3.Vector{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50, Z: rng.Float64()*8 - 3}
			d, ok := tr.SensorToDisplay(slam.PointAt(l, 0, false), pose)
			if !ok {
				continue
			}
			back, err := DisplayToSensor(d.Vec(), pose)
			require.NoError(t, err)
			assert.InDelta(t, l.X, back.X, 1e-6)
			assert.InDelta(t, l.Y, back.Y, 1e-6)
			assert.InDelta(t, l.Z, back.Z, 1e-6)
		}
	}
}

func TestDisplayToSensor_SingularRotation(t *testing.T) {
	pose := slam.Pose{} // all-zero rotation
	_, err := DisplayToSensor(r3.Vector{X: 1}, pose)
	assert.Error(t, err)
}

func TestMalformedPoseIsStillApplied(t *testing.T) {
	pose := slam.Pose{Rotation: [3][3]float64{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}}}
	assert.False(t, IsRotation(pose, 1e-6))
	assert.Greater(t, OrthonormalityError(pose), 1.0)

	got, ok := NewTransformer().SensorToDisplay(slam.Point3D{X: 5}, pose)
	require.True(t, ok)
	// camera (0,0,5) scaled by 2 -> (0,0,10) -> display (10,0,0)
	assert.Equal(t, r3.Vector{X: 10}, got.Vec())
}

func TestIsRotation(t *testing.T) {
	assert.True(t, IsRotation(slam.Pose{Rotation: rotationZYX(1, 0.3, -0.2)}, 1e-9))
	reflection := slam.Pose{Rotation: [3][3]float64{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
	assert.False(t, IsRotation(reflection, 1e-9))
	assert.InDelta(t, 0, OrthonormalityError(reflection), tol)
}

func TestHeadingSegment(t *testing.T) {
	pose := identityPose(1, 0, 0, 0)
	from, to := HeadingSegment(pose, 2)
	// forward axis is camera +Z, which is display +X
	assert.Equal(t, r3.Vector{X: 0, Y: -1, Z: 0}, from)
	assert.Equal(t, r3.Vector{X: 2, Y: -1, Z: 0}, to)
	assert.Equal(t, from, PoseToDisplay(pose))
}

func TestTrajectoryToDisplay(t *testing.T) {
	traj := slam.Trajectory{identityPose(1, 2, 3, 0), identityPose(4, 5, 6, 1)}

	identity := TrajectoryToDisplay(traj, slam.ViewTrajectoryOnly)
	assert.Equal(t, []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}, identity)

	combined := TrajectoryToDisplay(traj, slam.ViewCombined)
	want := []r3.Vector{{X: 3, Y: -1, Z: -2}, {X: 6, Y: -4, Z: -5}}
	if diff := cmp.Diff(want, combined, cmpopts.EquateApprox(0, tol)); diff != "" {
		t.Errorf("combined trajectory mismatch (-want +got):\n%s", diff)
	}
}
