package layers

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/colorize"
	"github.com/banshee-data/slamview/internal/slam/coords"
)

var (
	// ErrMissingPose is returned when the combined view is requested without
	// a pose for the batch's frame.
	ErrMissingPose = errors.New("combined view requires a pose")

	// ErrNoBatch is returned when Update is called without a batch.
	ErrNoBatch = errors.New("no point batch")
)

// bytes per rendered point: xyz float32 + rgb float32 + source index
const pointStride = 3*4 + 3*4 + 4

// PointBuffer is an immutable renderable point set. Points are in the frame
// the view draws in; Colors and SourceIndex are parallel to Points.
type PointBuffer struct {
	FrameIndex  uint32
	View        slam.ViewMode
	Mode        slam.ColorMode
	Points      []slam.Point3D
	Colors      []colorize.RGB
	SourceIndex []uint32 // index of each point in the originating batch
	Bounds      slam.Bounds

	handle Handle
}

// Len returns the number of renderable points; safe on nil.
func (b *PointBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Points)
}

// PointCloudLayer turns point batches into renderable buffers.
type PointCloudLayer struct {
	transformer coords.Transformer
	colorizer   colorize.Colorizer
	alloc       Allocator

	buf       atomic.Pointer[PointBuffer]
	pointSize atomic.Uint64 // math.Float64bits
}

// NewPointCloudLayer returns an empty layer.
func NewPointCloudLayer(t coords.Transformer, c colorize.Colorizer, alloc Allocator, pointSize float64) *PointCloudLayer {
	l := &PointCloudLayer{transformer: t, colorizer: c, alloc: alloc}
	l.SetPointSize(pointSize)
	return l
}

// Update rebuilds the buffer from a batch. In the combined view every point
// goes through the sensor -> display transform with the given pose and
// gated points are dropped; otherwise points are drawn as delivered.
//
// The new buffer is fully constructed before it replaces the old one, and the
// old one is released immediately after. On error the previous buffer stays.
func (l *PointCloudLayer) Update(batch *slam.PointBatch, mode slam.ColorMode, view slam.ViewMode, pose *slam.Pose) error {
	if batch == nil {
		return ErrNoBatch
	}

	var (
		points []slam.Point3D
		src    []uint32
	)
	if view == slam.ViewCombined {
		if pose == nil {
			return ErrMissingPose
		}
		points, src = l.transformer.TransformBatch(batch.Points, *pose)
	} else {
		points = make([]slam.Point3D, len(batch.Points))
		copy(points, batch.Points)
		src = make([]uint32, len(points))
		for i := range src {
			src[i] = uint32(i)
		}
	}

	next := &PointBuffer{
		FrameIndex:  batch.FrameIndex,
		View:        view,
		Mode:        mode,
		Points:      points,
		Colors:      l.colorizer.Colorize(points, mode),
		SourceIndex: src,
	}
	for _, p := range points {
		next.Bounds = next.Bounds.Extend(p.Vec())
	}
	next.handle = l.alloc.Alloc("points", len(points)*pointStride)

	prev := l.buf.Swap(next)
	if prev != nil {
		l.alloc.Free(prev.handle)
	}
	return nil
}

// Buffer returns the current buffer, or nil before the first update.
func (l *PointCloudLayer) Buffer() *PointBuffer {
	return l.buf.Load()
}

// SetPointSize changes the rendered point size. Positions and colours are
// not rebuilt. Non-positive sizes are ignored.
func (l *PointCloudLayer) SetPointSize(size float64) {
	if size <= 0 {
		return
	}
	l.pointSize.Store(math.Float64bits(size))
}

// PointSize returns the rendered point size.
func (l *PointCloudLayer) PointSize() float64 {
	return math.Float64frombits(l.pointSize.Load())
}

// Dispose releases the current buffer.
func (l *PointCloudLayer) Dispose() {
	if prev := l.buf.Swap(nil); prev != nil {
		l.alloc.Free(prev.handle)
	}
}
