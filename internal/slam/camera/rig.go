package camera

import "github.com/banshee-data/slamview/internal/slam"

// Rig holds one independent Controller per view mode, so switching panels
// keeps each panel's viewpoint.
type Rig struct {
	panels map[slam.ViewMode]*Controller
}

// NewRig returns a rig with every panel at its initial viewpoint.
func NewRig(fovDeg float64) *Rig {
	r := &Rig{panels: make(map[slam.ViewMode]*Controller, len(slam.ViewModes))}
	for _, v := range slam.ViewModes {
		r.panels[v] = New(fovDeg)
	}
	return r
}

// For returns the controller of a panel. Unknown modes get the combined
// panel's controller.
func (r *Rig) For(view slam.ViewMode) *Controller {
	if c, ok := r.panels[view]; ok {
		return c
	}
	return r.panels[slam.ViewCombined]
}

// States snapshots every panel's state.
func (r *Rig) States() map[slam.ViewMode]slam.CameraState {
	out := make(map[slam.ViewMode]slam.CameraState, len(r.panels))
	for v, c := range r.panels {
		out[v] = c.State()
	}
	return out
}
