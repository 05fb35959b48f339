package slam

import (
	"math"

	"github.com/golang/geo/r3"
)

// Bounds is an axis-aligned bounding box. The zero value is empty.
type Bounds struct {
	Min, Max r3.Vector
	nonEmpty bool
}

// BoundsOf returns the bounding box of a set of points.
func BoundsOf(points ...r3.Vector) Bounds {
	var b Bounds
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Extend returns b grown to include p.
func (b Bounds) Extend(p r3.Vector) Bounds {
	if !b.nonEmpty {
		return Bounds{Min: p, Max: p, nonEmpty: true}
	}
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union returns the smallest box containing both.
func (b Bounds) Union(o Bounds) Bounds {
	if !o.nonEmpty {
		return b
	}
	if !b.nonEmpty {
		return o
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// IsEmpty reports whether the box contains no points.
func (b Bounds) IsEmpty() bool { return !b.nonEmpty }

// Center returns the box centre.
func (b Bounds) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extent along each axis.
func (b Bounds) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// MaxDimension returns the largest extent of the box.
func (b Bounds) MaxDimension() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Radius returns the largest distance from the origin to a box corner.
func (b Bounds) Radius() float64 {
	if !b.nonEmpty {
		return 0
	}
	x := math.Max(math.Abs(b.Min.X), math.Abs(b.Max.X))
	y := math.Max(math.Abs(b.Min.Y), math.Abs(b.Max.Y))
	z := math.Max(math.Abs(b.Min.Z), math.Abs(b.Max.Z))
	return r3.Vector{X: x, Y: y, Z: z}.Norm()
}
