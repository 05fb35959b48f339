package slam

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	var empty Bounds
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0.0, empty.Radius())

	b := BoundsOf(r3.Vector{X: -1, Y: 2, Z: 0}, r3.Vector{X: 3, Y: -2, Z: 1})
	assert.False(t, b.IsEmpty())
	assert.Equal(t, r3.Vector{X: -1, Y: -2, Z: 0}, b.Min)
	assert.Equal(t, r3.Vector{X: 3, Y: 2, Z: 1}, b.Max)
	assert.Equal(t, r3.Vector{X: 1, Y: 0, Z: 0.5}, b.Center())
	assert.Equal(t, 4.0, b.MaxDimension())
	assert.InDelta(t, math.Sqrt(9+4+1), b.Radius(), 1e-12)

	u := empty.Union(b)
	assert.Equal(t, b, u)
	u = b.Union(BoundsOf(r3.Vector{Z: 10}))
	assert.Equal(t, 10.0, u.Max.Z)
}
