package slam

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Point3D is a single LiDAR sample. Points are recreated for every frame and
// never persisted. Intensity is meaningful only when HasIntensity is set.
type Point3D struct {
	X, Y, Z      float64
	Intensity    float64 // 0..255
	HasIntensity bool
}

// Vec returns the point position as a vector.
func (p Point3D) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// PointAt builds a Point3D from a position and an optional intensity.
func PointAt(v r3.Vector, intensity float64, hasIntensity bool) Point3D {
	return Point3D{X: v.X, Y: v.Y, Z: v.Z, Intensity: intensity, HasIntensity: hasIntensity}
}

// Pose is a rigid transform (rotation + translation) for one frame.
// Rotation is row-major: Rotation[row][col].
type Pose struct {
	Position   r3.Vector
	Rotation   [3][3]float64
	FrameIndex uint32
}

// IdentityRotation is the 3x3 identity matrix.
var IdentityRotation = [3][3]float64{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Apply returns R·v + t.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	r := p.Rotation
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z + p.Position.X,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z + p.Position.Y,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z + p.Position.Z,
	}
}

// Forward returns the third rotation column R[:,2], the pose's forward axis
// in camera convention.
func (p Pose) Forward() r3.Vector {
	return r3.Vector{X: p.Rotation[0][2], Y: p.Rotation[1][2], Z: p.Rotation[2][2]}
}

// Trajectory is an ordered pose sequence. trajectory[i].FrameIndex == i.
type Trajectory []Pose

// NewTrajectory builds a Trajectory from positions and rotations, assigning
// frame indices from array position. The two slices must have equal length.
func NewTrajectory(positions []r3.Vector, rotations [][3][3]float64) (Trajectory, error) {
	if len(positions) != len(rotations) {
		return nil, fmt.Errorf("trajectory: %d positions but %d rotations", len(positions), len(rotations))
	}
	traj := make(Trajectory, len(positions))
	for i := range positions {
		traj[i] = Pose{
			Position:   positions[i],
			Rotation:   rotations[i],
			FrameIndex: uint32(i),
		}
	}
	return traj, nil
}

// At returns the pose for a frame index.
func (t Trajectory) At(frame uint32) (Pose, bool) {
	if int(frame) >= len(t) {
		return Pose{}, false
	}
	return t[frame], true
}

// Positions returns the trajectory positions in order.
func (t Trajectory) Positions() []r3.Vector {
	out := make([]r3.Vector, len(t))
	for i, p := range t {
		out[i] = p.Position
	}
	return out
}

// PointBatch is the point set for one frame. A batch is replaced wholesale on
// frame change and never mutated after construction.
type PointBatch struct {
	FrameIndex uint32
	Points     []Point3D
}

// Len returns the number of points in the batch; safe on nil.
func (b *PointBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Points)
}

// Selection is a picked point in the currently rendered buffer.
type Selection struct {
	Position    r3.Vector
	SourceIndex uint32 // index into the rendered buffer
}

// CameraState is one panel's viewpoint in the display frame.
type CameraState struct {
	Eye    r3.Vector
	Center r3.Vector
	Up     r3.Vector
}

// PlaybackState is a snapshot of the playback timeline. Frames run from 0 to
// MaxFrame inclusive.
type PlaybackState struct {
	CurrentFrame    uint32
	Playing         bool
	SpeedMsPerFrame uint32
	MaxFrame        uint32
}

// ExportFormat names an export encoding.
type ExportFormat string

const (
	ExportPNG  ExportFormat = "png"
	ExportPLY  ExportFormat = "ply"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat parses an export format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportPNG, ExportPLY, ExportJSON:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ExportRequest asks the scene to export a view.
type ExportRequest struct {
	Format   ExportFormat
	ViewMode ViewMode
}
