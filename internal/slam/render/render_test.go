package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/camera"
	"github.com/banshee-data/slamview/internal/slam/colorize"
	"github.com/banshee-data/slamview/internal/slam/layers"
)

var vp = camera.Viewport{Width: 200, Height: 100}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func background() color.RGBA {
	bg := DefaultStyle().Background
	return color.RGBA{R: uint8(bg[0] * 255), G: uint8(bg[1] * 255), B: uint8(bg[2] * 255), A: 255}
}

func centredPoint() (*camera.Controller, *layers.PointBuffer, int, int) {
	cam := camera.New(60)
	centre := cam.State().Center
	buf := &layers.PointBuffer{
		Points: []slam.Point3D{slam.PointAt(centre, 0, false)},
		Colors: []colorize.RGB{{R: 0, G: 1, B: 0}},
	}
	x, y, _, _ := cam.Project(centre, vp)
	return cam, buf, int(x), int(y)
}

func TestRender_Size(t *testing.T) {
	img := New(vp).Render(camera.New(60), Scene{})
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	assert.Equal(t, background(), rgbaAt(img, 5, 5))
}

func TestRender_PointsOnlyInPointViews(t *testing.T) {
	cam, buf, x, y := centredPoint()
	r := New(vp)

	img := r.Render(cam, Scene{View: slam.ViewPointCloudOnly, Points: buf, PointSize: 6})
	assert.Equal(t, color.RGBA{G: 255, A: 255}, rgbaAt(img, x, y))

	img = r.Render(cam, Scene{View: slam.ViewTrajectoryOnly, Points: buf, PointSize: 6})
	assert.Equal(t, background(), rgbaAt(img, x, y))
}

func TestRender_PointSizeChangesFootprint(t *testing.T) {
	cam, buf, x, y := centredPoint()
	r := New(vp)

	small := r.Render(cam, Scene{View: slam.ViewCombined, Points: buf, PointSize: 2})
	large := r.Render(cam, Scene{View: slam.ViewCombined, Points: buf, PointSize: 12})
	assert.Equal(t, background(), rgbaAt(small, x+4, y))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, rgbaAt(large, x+4, y))
}

func TestRender_TrajectoryAndCurrentMarker(t *testing.T) {
	cam := camera.New(60)
	centre := cam.State().Center
	tb := &layers.TrajectoryBuffer{
		Line:       []r3.Vector{centre.Add(r3.Vector{X: -1, Y: 1}), centre, centre.Add(r3.Vector{X: 1, Y: -1})},
		Current:    centre,
		HasCurrent: true,
		Heading:    &layers.Segment{From: centre, To: centre.Add(r3.Vector{Z: 1})},
	}
	x, y, _, ok := cam.Project(centre, vp)
	require.True(t, ok)

	img := New(vp).Render(cam, Scene{View: slam.ViewTrajectoryOnly, Trajectory: tb})
	cur := DefaultStyle().Current
	want := color.RGBA{R: uint8(cur[0] * 255), G: uint8(cur[1] * 255), B: uint8(cur[2] * 255), A: 255}
	assert.Equal(t, want, rgbaAt(img, int(x), int(y)+3))

	img = New(vp).Render(cam, Scene{View: slam.ViewPointCloudOnly, Trajectory: tb})
	assert.Equal(t, background(), rgbaAt(img, int(x), int(y)+3))
}

func TestRender_PointsBehindCameraAreSkipped(t *testing.T) {
	cam := camera.New(60)
	behind := cam.State().Eye.Mul(2)
	buf := &layers.PointBuffer{
		Points: []slam.Point3D{slam.PointAt(behind, 0, false)},
		Colors: []colorize.RGB{{R: 1}},
	}
	img := New(vp).Render(cam, Scene{View: slam.ViewPointCloudOnly, Points: buf, PointSize: 400})
	assert.Equal(t, background(), rgbaAt(img, 100, 50))
}
