// Package render rasterises the active panel in software: the point buffer,
// the trajectory overlay and the selection marker, seen through the panel's
// camera.
package render

import (
	"image"
	"sort"

	"github.com/fogleman/gg"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/camera"
	"github.com/banshee-data/slamview/internal/slam/layers"
)

// Scene is everything one frame draws.
type Scene struct {
	View       slam.ViewMode
	Points     *layers.PointBuffer
	PointSize  float64
	Trajectory *layers.TrajectoryBuffer
	Selection  *slam.Selection
}

// Style holds overlay colours and sizes.
type Style struct {
	Background    [3]float64
	Line          [3]float64
	Marker        [3]float64
	Current       [3]float64
	Heading       [3]float64
	Selection     [3]float64
	LineWidth     float64
	MarkerRadius  float64
	CurrentRadius float64
}

// DefaultStyle is a dark background with a white path and a red current
// pose.
func DefaultStyle() Style {
	return Style{
		Background:    [3]float64{0.08, 0.08, 0.1},
		Line:          [3]float64{0.9, 0.9, 0.9},
		Marker:        [3]float64{0.4, 0.7, 1},
		Current:       [3]float64{1, 0.2, 0.2},
		Heading:       [3]float64{1, 0.85, 0},
		Selection:     [3]float64{1, 0, 1},
		LineWidth:     2,
		MarkerRadius:  3,
		CurrentRadius: 6,
	}
}

// Renderer draws scenes into images of a fixed viewport.
type Renderer struct {
	Style    Style
	Viewport camera.Viewport
}

// New returns a renderer with the default style.
func New(vp camera.Viewport) *Renderer {
	return &Renderer{Style: DefaultStyle(), Viewport: vp}
}

// Render draws s through cam into a new image.
func (r *Renderer) Render(cam *camera.Controller, s Scene) image.Image {
	dc := gg.NewContext(r.Viewport.Width, r.Viewport.Height)
	r.Draw(dc, cam, s)
	return dc.Image()
}

// Draw draws s through cam onto dc. Layers not shown by the view are
// skipped even if their buffers are set.
func (r *Renderer) Draw(dc *gg.Context, cam *camera.Controller, s Scene) {
	st := r.Style
	dc.SetRGB(st.Background[0], st.Background[1], st.Background[2])
	dc.Clear()

	pr := cam.Projector(r.Viewport)
	if s.View.ShowsPoints() && s.Points.Len() > 0 {
		r.drawPoints(dc, pr, s.Points, s.PointSize)
	}
	if s.View.ShowsTrajectory() && s.Trajectory != nil {
		r.drawTrajectory(dc, pr, s.Trajectory)
	}
	if s.Selection != nil {
		if x, y, _, ok := pr.Project(s.Selection.Position); ok {
			dc.SetRGB(st.Selection[0], st.Selection[1], st.Selection[2])
			dc.SetLineWidth(2)
			dc.DrawCircle(x, y, st.CurrentRadius+2)
			dc.Stroke()
		}
	}
}

type projected struct {
	x, y, depth float64
	idx         int
}

func (r *Renderer) drawPoints(dc *gg.Context, pr camera.Projector, buf *layers.PointBuffer, size float64) {
	if size <= 0 {
		size = 1
	}
	pts := make([]projected, 0, buf.Len())
	for i, p := range buf.Points {
		x, y, d, ok := pr.Project(p.Vec())
		if !ok || d < 0 || d > 1 {
			continue
		}
		pts = append(pts, projected{x: x, y: y, depth: d, idx: i})
	}
	// far to near so closer points paint over
	sort.Slice(pts, func(i, j int) bool { return pts[i].depth > pts[j].depth })

	half := size / 2
	for _, p := range pts {
		c := buf.Colors[p.idx]
		dc.SetRGB(float64(c.R), float64(c.G), float64(c.B))
		dc.DrawRectangle(p.x-half, p.y-half, size, size)
		dc.Fill()
	}
}

func (r *Renderer) drawTrajectory(dc *gg.Context, pr camera.Projector, tb *layers.TrajectoryBuffer) {
	st := r.Style

	dc.SetRGB(st.Line[0], st.Line[1], st.Line[2])
	dc.SetLineWidth(st.LineWidth)
	var prevX, prevY float64
	prevOK := false
	for _, v := range tb.Line {
		x, y, _, ok := pr.Project(v)
		if ok && prevOK {
			dc.DrawLine(prevX, prevY, x, y)
		}
		prevX, prevY, prevOK = x, y, ok
	}
	dc.Stroke()

	dc.SetRGB(st.Marker[0], st.Marker[1], st.Marker[2])
	for _, m := range tb.Markers {
		if x, y, _, ok := pr.Project(m); ok {
			dc.DrawCircle(x, y, st.MarkerRadius)
			dc.Fill()
		}
	}

	if tb.Heading != nil {
		x0, y0, _, ok0 := pr.Project(tb.Heading.From)
		x1, y1, _, ok1 := pr.Project(tb.Heading.To)
		if ok0 && ok1 {
			dc.SetRGB(st.Heading[0], st.Heading[1], st.Heading[2])
			dc.SetLineWidth(st.LineWidth * 1.5)
			dc.DrawLine(x0, y0, x1, y1)
			dc.Stroke()
		}
	}

	if tb.HasCurrent {
		if x, y, _, ok := pr.Project(tb.Current); ok {
			dc.SetRGB(st.Current[0], st.Current[1], st.Current[2])
			dc.DrawCircle(x, y, st.CurrentRadius)
			dc.Fill()
		}
	}
}
