// Package colorize maps point scalars (depth, height, intensity) to display
// colours. It never mutates its input; results are parallel colour slices.
package colorize

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/slamview/internal/slam"
)

// RGB is a display colour with components in [0, 1].
type RGB struct {
	R, G, B float32
}

// MidGray is used for points without intensity in intensity mode.
var MidGray = RGB{R: 0.5, G: 0.5, B: 0.5}

func fromColorful(c colorful.Color) RGB {
	c = c.Clamped()
	return RGB{R: float32(c.R), G: float32(c.G), B: float32(c.B)}
}

// RGB255 returns the colour as 8-bit components.
func (c RGB) RGB255() (r, g, b uint8) {
	return uint8(math.Round(float64(c.R) * 255)),
		uint8(math.Round(float64(c.G) * 255)),
		uint8(math.Round(float64(c.B) * 255))
}

// hsl converts an HSL triple with hue in [0, 1] to RGB.
func hsl(h, s, l float64) RGB {
	return fromColorful(colorful.Hsl(h*360, s, l))
}

// Colorizer holds the fixed normalisation range of the height mode.
type Colorizer struct {
	HeightMin float64
	HeightMax float64
}

// New returns a Colorizer with the default [-10, 10] height range.
func New() Colorizer {
	return Colorizer{HeightMin: -10, HeightMax: 10}
}

// Colorize returns one colour per point for the given mode.
func (c Colorizer) Colorize(points []slam.Point3D, mode slam.ColorMode) []RGB {
	switch mode {
	case slam.ColorHeight:
		out := make([]RGB, len(points))
		for i, p := range points {
			out[i] = c.Height(p.Y)
		}
		return out
	case slam.ColorIntensity:
		out := make([]RGB, len(points))
		for i, p := range points {
			out[i] = Intensity(p)
		}
		return out
	default:
		return Depth(points)
	}
}

// DepthHues returns the hue in [0, 0.7] for each point: near points are
// blue (0.7), far points red (0). Depth is normalised over the batch's own
// range; a batch whose depths are all equal maps every point to 0.7.
func DepthHues(points []slam.Point3D) []float64 {
	hues := make([]float64, len(points))
	if len(points) == 0 {
		return hues
	}

	depths := make([]float64, len(points))
	minD, maxD := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		d := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		depths[i] = d
		minD = math.Min(minD, d)
		maxD = math.Max(maxD, d)
	}

	span := maxD - minD
	for i, d := range depths {
		var n float64
		if span > 0 {
			n = (d - minD) / span
		}
		hues[i] = (1 - n) * 0.7
	}
	return hues
}

// Depth colours points by distance from the origin.
func Depth(points []slam.Point3D) []RGB {
	hues := DepthHues(points)
	out := make([]RGB, len(hues))
	for i, h := range hues {
		out[i] = hsl(h, 1, 0.5)
	}
	return out
}

// Height colours a y value: the lower half of the range is a blue band
// getting lighter with height, the upper half a green band.
func (c Colorizer) Height(y float64) RGB {
	h := 0.0
	if span := c.HeightMax - c.HeightMin; span > 0 {
		h = (y - c.HeightMin) / span
	}
	h = math.Max(0, math.Min(1, h))

	if h < 0.5 {
		return hsl(0.6, 1, 0.3+h*0.4)
	}
	return hsl(0.3, 1, 0.5+(h-0.5)*0.5)
}

// Intensity returns a grey level of intensity/255, or MidGray when the point
// carries no intensity.
func Intensity(p slam.Point3D) RGB {
	if !p.HasIntensity {
		return MidGray
	}
	v := float32(math.Max(0, math.Min(1, p.Intensity/255)))
	return RGB{R: v, G: v, B: v}
}
