// Package picking selects the rendered point under a screen position.
package picking

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/camera"
	"github.com/banshee-data/slamview/internal/slam/layers"
)

// DefaultRadius is the world-space hit radius around the pick ray.
const DefaultRadius = 0.2

// RayCaster turns a viewport pixel into a world-space ray.
type RayCaster interface {
	Ray(x, y float64, vp camera.Viewport) (origin, dir r3.Vector, err error)
}

// Picker finds the point nearest the eye among those within Radius of the
// pick ray.
type Picker struct {
	Radius float64
}

// New returns a Picker; non-positive radii use DefaultRadius.
func New(radius float64) Picker {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return Picker{Radius: radius}
}

// Pick casts a ray through (x, y) and returns the hit point and its index in
// buf, or nil when nothing is hit. An empty or nil buffer never hits.
func (pk Picker) Pick(x, y float64, vp camera.Viewport, cam RayCaster, buf *layers.PointBuffer) *slam.Selection {
	if buf.Len() == 0 {
		return nil
	}
	origin, dir, err := cam.Ray(x, y, vp)
	if err != nil {
		return nil
	}

	r2 := pk.Radius * pk.Radius
	best := -1
	bestT := math.Inf(1)
	for i, p := range buf.Points {
		v := p.Vec().Sub(origin)
		t := v.Dot(dir)
		if t < 0 {
			continue
		}
		// squared distance from the point to the ray
		if v.Norm2()-t*t > r2 {
			continue
		}
		if t < bestT {
			best, bestT = i, t
		}
	}
	if best < 0 {
		return nil
	}
	return &slam.Selection{Position: buf.Points[best].Vec(), SourceIndex: uint32(best)}
}
