// Package camera holds per-panel viewpoints: named presets, fit-to-data and
// free orbit/pan/zoom, plus the view and projection matrices the renderer
// and picking use.
package camera

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/slam"
)

// DefaultRadius is the scene radius used when nothing is visible.
const DefaultRadius = 10.0

const (
	orbitRadPerPixel = 0.005
	maxElevation     = 89 * math.Pi / 180
	zoomStep         = 1.1
	minDistance      = 0.01
	nearPlane        = 0.01
)

// Preset names a canned viewpoint.
type Preset int

const (
	PresetTop Preset = iota
	PresetFront
	PresetIsometric
	PresetFitToData
)

func (p Preset) String() string {
	switch p {
	case PresetTop:
		return "top"
	case PresetFront:
		return "front"
	case PresetIsometric:
		return "isometric"
	case PresetFitToData:
		return "fit"
	default:
		return fmt.Sprintf("Preset(%d)", int(p))
	}
}

// ParsePreset parses a preset name as printed by String.
func ParsePreset(s string) (Preset, error) {
	for _, p := range []Preset{PresetTop, PresetFront, PresetIsometric, PresetFitToData} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown camera preset %q", s)
}

var (
	zUp = r3.Vector{Z: 1}
	xUp = r3.Vector{X: 1}
)

// SceneRadius is the r used by the presets: the largest distance of the
// bounds from the origin, or DefaultRadius when the bounds are empty or
// collapse onto the origin.
func SceneRadius(b slam.Bounds) float64 {
	if b.IsEmpty() {
		return DefaultRadius
	}
	if r := b.Radius(); r > 0 {
		return r
	}
	return DefaultRadius
}

// PresetState returns the viewpoint for a preset. Top, Front and Isometric
// look at the origin from a distance scaled by the scene radius; FitToData
// frames the bounds.
func PresetState(p Preset, b slam.Bounds) slam.CameraState {
	r := SceneRadius(b)
	switch p {
	case PresetTop:
		// looking straight down, so Z cannot be the up vector
		return slam.CameraState{Eye: r3.Vector{Z: 2.5 * r}, Up: xUp}
	case PresetFront:
		return slam.CameraState{Eye: r3.Vector{X: 2.5 * r}, Up: zUp}
	case PresetFitToData:
		return FitState(b)
	default:
		return slam.CameraState{Eye: r3.Vector{X: 1.5 * r, Y: 1.5 * r, Z: 1.5 * r}, Up: zUp}
	}
}

// FitState centres on the bounds and backs the eye off by twice the largest
// dimension along every axis. Empty bounds fall back to the isometric preset.
func FitState(b slam.Bounds) slam.CameraState {
	if b.IsEmpty() {
		return PresetState(PresetIsometric, b)
	}
	c := b.Center()
	d := b.MaxDimension() * 2
	if d == 0 {
		d = 1
	}
	return slam.CameraState{
		Eye:    c.Add(r3.Vector{X: d, Y: d, Z: d}),
		Center: c,
		Up:     zUp,
	}
}

// Controller owns one panel's camera state. It is not safe for concurrent
// use; the scene loop is the only caller.
type Controller struct {
	state  slam.CameraState
	fovDeg float64
}

// New returns a controller at the isometric preset for the default radius.
func New(fovDeg float64) *Controller {
	if fovDeg <= 0 || fovDeg >= 180 {
		fovDeg = 60
	}
	return &Controller{state: PresetState(PresetIsometric, slam.Bounds{}), fovDeg: fovDeg}
}

// State returns the current viewpoint.
func (c *Controller) State() slam.CameraState { return c.state }

// SetState replaces the viewpoint.
func (c *Controller) SetState(s slam.CameraState) {
	if s.Up == (r3.Vector{}) {
		s.Up = zUp
	}
	c.state = s
}

// FOV returns the vertical field of view in degrees.
func (c *Controller) FOV() float64 { return c.fovDeg }

// ApplyPreset moves to a preset computed against the visible bounds.
func (c *Controller) ApplyPreset(p Preset, visible slam.Bounds) {
	c.state = PresetState(p, visible)
}

// ZoomToFit frames the visible bounds.
func (c *Controller) ZoomToFit(visible slam.Bounds) {
	c.state = FitState(visible)
}

// Distance returns the eye-to-centre distance.
func (c *Controller) Distance() float64 {
	return c.state.Eye.Sub(c.state.Center).Norm()
}

// Orbit rotates the eye about the centre by a pointer delta in pixels:
// horizontal motion changes azimuth about the display Z axis, vertical motion
// changes elevation, which is kept short of the poles.
func (c *Controller) Orbit(dx, dy float64) {
	off := c.state.Eye.Sub(c.state.Center)
	r := off.Norm()
	if r == 0 {
		return
	}
	az := math.Atan2(off.Y, off.X) - dx*orbitRadPerPixel
	el := math.Asin(clamp(off.Z/r, -1, 1)) + dy*orbitRadPerPixel
	el = clamp(el, -maxElevation, maxElevation)

	c.state.Eye = c.state.Center.Add(r3.Vector{
		X: r * math.Cos(el) * math.Cos(az),
		Y: r * math.Cos(el) * math.Sin(az),
		Z: r * math.Sin(el),
	})
	c.state.Up = zUp
}

// Pan translates eye and centre together in the view plane. dx, dy are in
// pixels; viewportHeight converts them to world units at the centre's depth.
func (c *Controller) Pan(dx, dy float64, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	eye, center, up := toVec3(c.state.Eye), toVec3(c.state.Center), toVec3(c.state.Up)
	fwd := center.Sub(eye)
	dist := fwd.Len()
	if dist == 0 {
		return
	}
	fwd = fwd.Mul(1 / dist)
	right := fwd.Cross(up)
	if right.Len() == 0 {
		return
	}
	right = right.Normalize()
	camUp := right.Cross(fwd)

	perPixel := 2 * dist * math.Tan(mgl64.DegToRad(c.fovDeg)/2) / float64(viewportHeight)
	move := right.Mul(-dx * perPixel).Add(camUp.Mul(dy * perPixel))

	c.state.Eye = fromVec3(eye.Add(move))
	c.state.Center = fromVec3(center.Add(move))
}

// Zoom moves the eye along the view direction. Positive steps move closer.
func (c *Controller) Zoom(steps float64) {
	off := c.state.Eye.Sub(c.state.Center)
	r := off.Norm()
	if r == 0 {
		return
	}
	nr := math.Max(minDistance, r*math.Pow(zoomStep, -steps))
	c.state.Eye = c.state.Center.Add(off.Mul(nr / r))
}

// View returns the look-at matrix for the current state.
func (c *Controller) View() mgl64.Mat4 {
	return mgl64.LookAtV(toVec3(c.state.Eye), toVec3(c.state.Center), toVec3(c.state.Up))
}

// Projection returns the perspective matrix for a viewport. The far plane
// grows with the eye distance so fitted scenes are never clipped.
func (c *Controller) Projection(width, height int) mgl64.Mat4 {
	aspect := 1.0
	if width > 0 && height > 0 {
		aspect = float64(width) / float64(height)
	}
	far := math.Max(1000, c.Distance()*10)
	return mgl64.Perspective(mgl64.DegToRad(c.fovDeg), aspect, nearPlane, far)
}

// Viewport is a pixel rectangle with its origin at the top-left.
type Viewport struct {
	Width, Height int
}

// Projector maps display-frame points to viewport pixels with the
// view-projection matrix of one camera state, computed once.
type Projector struct {
	mvp mgl64.Mat4
	vp  Viewport
}

// Projector freezes the current camera state for projecting many points.
func (c *Controller) Projector(vp Viewport) Projector {
	return Projector{mvp: c.Projection(vp.Width, vp.Height).Mul4(c.View()), vp: vp}
}

// Project maps p to viewport pixels (origin top-left) and its depth in
// [0,1]. ok is false for points behind the eye.
func (pr Projector) Project(p r3.Vector) (x, y, depth float64, ok bool) {
	clip := pr.mvp.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	w := clip.W()
	if w <= 0 {
		return 0, 0, 0, false
	}
	nx, ny, nz := clip.X()/w, clip.Y()/w, clip.Z()/w
	x = float64(pr.vp.Width) * (nx + 1) / 2
	y = float64(pr.vp.Height) * (1 - ny) / 2
	return x, y, (nz + 1) / 2, true
}

// Project maps a display-frame point to viewport pixels (origin top-left)
// and its depth in [0,1]. ok is false for points behind the eye. Use a
// Projector when projecting more than a few points.
func (c *Controller) Project(p r3.Vector, vp Viewport) (x, y, depth float64, ok bool) {
	return c.Projector(vp).Project(p)
}

// Ray returns the world-space ray through a viewport pixel (origin
// top-left): it starts on the near plane and points away from the eye.
func (c *Controller) Ray(x, y float64, vp Viewport) (origin, dir r3.Vector, err error) {
	view, proj := c.View(), c.Projection(vp.Width, vp.Height)
	winY := float64(vp.Height) - y
	near, err := mgl64.UnProject(mgl64.Vec3{x, winY, 0}, view, proj, 0, 0, vp.Width, vp.Height)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, fmt.Errorf("unproject near: %w", err)
	}
	far, err := mgl64.UnProject(mgl64.Vec3{x, winY, 1}, view, proj, 0, 0, vp.Width, vp.Height)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, fmt.Errorf("unproject far: %w", err)
	}
	d := far.Sub(near)
	if d.Len() == 0 {
		return r3.Vector{}, r3.Vector{}, fmt.Errorf("degenerate pick ray")
	}
	return fromVec3(near), fromVec3(d.Normalize()), nil
}

func toVec3(v r3.Vector) mgl64.Vec3   { return mgl64.Vec3{v.X, v.Y, v.Z} }
func fromVec3(v mgl64.Vec3) r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
