// Package coords converts sensor-frame samples and poses into the common
// display frame.
//
// Three axis conventions are involved:
//
//	LiDAR    x forward, y left,  z up
//	camera   x right,   y down,  z forward  (poses are expressed in this frame)
//	display  x forward, y left,  z up       (what the renderer draws)
//
// The permutations below are fixed. Single-sensor and combined views must go
// through the same functions so the two stay bit-for-bit consistent.
package coords

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/slam"
)

// LidarToCamera remaps LiDAR axes into camera axes: cx=-ly, cy=-lz, cz=lx.
func LidarToCamera(l r3.Vector) r3.Vector {
	return r3.Vector{X: -l.Y, Y: -l.Z, Z: l.X}
}

// CameraToLidar is the inverse of LidarToCamera.
func CameraToLidar(c r3.Vector) r3.Vector {
	return r3.Vector{X: c.Z, Y: -c.X, Z: -c.Y}
}

// CameraToDisplay remaps camera-frame world coordinates into the display
// frame: dx=wz, dy=-wx, dz=-wy.
func CameraToDisplay(w r3.Vector) r3.Vector {
	return r3.Vector{X: w.Z, Y: -w.X, Z: -w.Y}
}

// DisplayToCamera is the inverse of CameraToDisplay.
func DisplayToCamera(d r3.Vector) r3.Vector {
	return r3.Vector{X: -d.Y, Y: -d.Z, Z: d.X}
}

// Gate rejects sensor returns outside a range shell and height band. All
// bounds are exclusive.
type Gate struct {
	MinRange float64
	MaxRange float64
	MinZ     float64
	MaxZ     float64
}

// DefaultGate suppresses self-returns inside 1m, far returns beyond 80m and
// anything outside z in (-3, 5).
func DefaultGate() Gate {
	return Gate{MinRange: 1.0, MaxRange: 80.0, MinZ: -3.0, MaxZ: 5.0}
}

// Accepts reports whether a LiDAR-frame point passes the gate.
func (g Gate) Accepts(l r3.Vector) bool {
	d := l.Norm()
	return d > g.MinRange && d < g.MaxRange && l.Z > g.MinZ && l.Z < g.MaxZ
}

// Transformer applies the sensor -> display pipeline. It holds only
// configuration and is safe to share.
type Transformer struct {
	Gate             Gate
	DefaultIntensity float64
}

// NewTransformer returns a Transformer with the default gate and a default
// intensity of 50.
func NewTransformer() Transformer {
	return Transformer{Gate: DefaultGate(), DefaultIntensity: 50}
}

// SensorToDisplay gates a LiDAR-frame point and, if accepted, carries it
// through camera axes, the pose, and into the display frame. The returned
// point always has an intensity: the original one or DefaultIntensity.
//
// The pose rotation is not checked for orthonormality.
func (t Transformer) SensorToDisplay(p slam.Point3D, pose slam.Pose) (slam.Point3D, bool) {
	l := p.Vec()
	if !t.Gate.Accepts(l) {
		return slam.Point3D{}, false
	}
	w := pose.Apply(LidarToCamera(l))
	intensity := t.DefaultIntensity
	if p.HasIntensity {
		intensity = p.Intensity
	}
	return slam.PointAt(CameraToDisplay(w), intensity, true), true
}

// TransformBatch runs SensorToDisplay over points. It returns the surviving
// display-frame points and, parallel to them, each survivor's index in the
// input. Empty input yields empty output.
func (t Transformer) TransformBatch(points []slam.Point3D, pose slam.Pose) ([]slam.Point3D, []uint32) {
	out := make([]slam.Point3D, 0, len(points))
	src := make([]uint32, 0, len(points))

	r := pose.Rotation
	tx, ty, tz := pose.Position.X, pose.Position.Y, pose.Position.Z
	g := t.Gate

	for i, p := range points {
		// Same arithmetic as SensorToDisplay, unrolled for large batches.
		d := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		if d <= g.MinRange || d >= g.MaxRange || p.Z <= g.MinZ || p.Z >= g.MaxZ {
			continue
		}
		cx, cy, cz := -p.Y, -p.Z, p.X
		wx := r[0][0]*cx + r[0][1]*cy + r[0][2]*cz + tx
		wy := r[1][0]*cx + r[1][1]*cy + r[1][2]*cz + ty
		wz := r[2][0]*cx + r[2][1]*cy + r[2][2]*cz + tz

		intensity := t.DefaultIntensity
		if p.HasIntensity {
			intensity = p.Intensity
		}
		out = append(out, slam.Point3D{X: wz, Y: -wx, Z: -wy, Intensity: intensity, HasIntensity: true})
		src = append(src, uint32(i))
	}
	return out, src
}

// PoseToDisplay remaps a pose position into the display frame.
func PoseToDisplay(pose slam.Pose) r3.Vector {
	return CameraToDisplay(pose.Position)
}

// HeadingSegment returns the display-frame endpoints of the forward
// indicator: from the pose position to position + R[:,2]*length.
func HeadingSegment(pose slam.Pose, length float64) (from, to r3.Vector) {
	tip := pose.Position.Add(pose.Forward().Mul(length))
	return CameraToDisplay(pose.Position), CameraToDisplay(tip)
}

// TrajectoryToDisplay maps trajectory positions for the given view: identity
// outside the combined view, camera -> display permutation inside it.
func TrajectoryToDisplay(traj slam.Trajectory, view slam.ViewMode) []r3.Vector {
	out := make([]r3.Vector, len(traj))
	for i, p := range traj {
		if view == slam.ViewCombined {
			out[i] = CameraToDisplay(p.Position)
		} else {
			out[i] = p.Position
		}
	}
	return out
}
