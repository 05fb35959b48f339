package slam

import "fmt"

// ColorMode selects the scalar used to colour point-cloud points.
type ColorMode int

const (
	ColorDepth ColorMode = iota
	ColorHeight
	ColorIntensity
)

// String returns the string representation of a ColorMode.
func (m ColorMode) String() string {
	switch m {
	case ColorDepth:
		return "depth"
	case ColorHeight:
		return "height"
	case ColorIntensity:
		return "intensity"
	default:
		return "unknown"
	}
}

// ParseColorMode parses a string into a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "depth":
		return ColorDepth, nil
	case "height":
		return ColorHeight, nil
	case "intensity":
		return ColorIntensity, nil
	default:
		return ColorDepth, fmt.Errorf("unknown color mode %q", s)
	}
}

// ViewMode selects the active panel. It decides which layers are drawn and
// which transform path the point cloud takes.
type ViewMode int

const (
	ViewTrajectoryOnly ViewMode = iota
	ViewPointCloudOnly
	ViewCombined
)

// ViewModes lists every view mode, one per visualisation panel.
var ViewModes = []ViewMode{ViewTrajectoryOnly, ViewPointCloudOnly, ViewCombined}

// String returns the string representation of a ViewMode.
func (v ViewMode) String() string {
	switch v {
	case ViewTrajectoryOnly:
		return "trajectory"
	case ViewPointCloudOnly:
		return "pointcloud"
	case ViewCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ParseViewMode parses a string into a ViewMode.
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "trajectory":
		return ViewTrajectoryOnly, nil
	case "pointcloud":
		return ViewPointCloudOnly, nil
	case "combined":
		return ViewCombined, nil
	default:
		return ViewTrajectoryOnly, fmt.Errorf("unknown view mode %q", s)
	}
}

// ShowsPoints reports whether the point-cloud layer is drawn in this view.
func (v ViewMode) ShowsPoints() bool {
	return v == ViewPointCloudOnly || v == ViewCombined
}

// ShowsTrajectory reports whether the trajectory layer is drawn in this view.
func (v ViewMode) ShowsTrajectory() bool {
	return v == ViewTrajectoryOnly || v == ViewCombined
}
