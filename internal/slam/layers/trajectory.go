package layers

import (
	"sync/atomic"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/coords"
)

// Segment is a line segment in the display frame.
type Segment struct {
	From, To r3.Vector
}

// TrajectoryBuffer is an immutable renderable trajectory overlay.
type TrajectoryBuffer struct {
	View         slam.ViewMode
	CurrentFrame uint32

	Line         []r3.Vector // one vertex per pose
	Markers      []r3.Vector // every MarkerInterval-th pose
	MarkerFrames []uint32
	Current      r3.Vector
	HasCurrent   bool
	Heading      *Segment // combined view only
	Bounds       slam.Bounds

	handle Handle
}

// TrajectoryLayer builds the trajectory polyline, periodic markers, the
// current-pose marker and, in the combined view, the heading indicator.
type TrajectoryLayer struct {
	alloc          Allocator
	markerInterval int
	headingLength  float64

	buf atomic.Pointer[TrajectoryBuffer]
}

// NewTrajectoryLayer returns an empty layer. markerInterval below 1 is
// treated as 1.
func NewTrajectoryLayer(alloc Allocator, markerInterval int, headingLength float64) *TrajectoryLayer {
	if markerInterval < 1 {
		markerInterval = 1
	}
	return &TrajectoryLayer{alloc: alloc, markerInterval: markerInterval, headingLength: headingLength}
}

// Update rebuilds the overlay for the current frame. Positions are used as
// given outside the combined view and remapped into the display frame inside
// it, so the overlay lines up with transformed point clouds.
func (l *TrajectoryLayer) Update(traj slam.Trajectory, current uint32, view slam.ViewMode) {
	line := coords.TrajectoryToDisplay(traj, view)

	next := &TrajectoryBuffer{
		View:         view,
		CurrentFrame: current,
		Line:         line,
		Bounds:       slam.BoundsOf(line...),
	}
	for i := 0; i < len(line); i += l.markerInterval {
		next.Markers = append(next.Markers, line[i])
		next.MarkerFrames = append(next.MarkerFrames, uint32(i))
	}
	if int(current) < len(line) {
		next.Current = line[current]
		next.HasCurrent = true
		if view == slam.ViewCombined {
			from, to := coords.HeadingSegment(traj[current], l.headingLength)
			next.Heading = &Segment{From: from, To: to}
		}
	}
	next.handle = l.alloc.Alloc("trajectory", (len(line)+len(next.Markers)+3)*3*4)

	if prev := l.buf.Swap(next); prev != nil {
		l.alloc.Free(prev.handle)
	}
}

// Buffer returns the current overlay, or nil before the first update.
func (l *TrajectoryLayer) Buffer() *TrajectoryBuffer {
	return l.buf.Load()
}

// Dispose releases the current overlay.
func (l *TrajectoryLayer) Dispose() {
	if prev := l.buf.Swap(nil); prev != nil {
		l.alloc.Free(prev.handle)
	}
}
