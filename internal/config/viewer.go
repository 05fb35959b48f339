package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical viewer defaults file.
const DefaultConfigPath = "config/viewer.defaults.json"

// ViewerConfig holds the tunable parameters of the preview core. Every field
// is optional: a nil field falls back to the default returned by its Get*
// accessor, so partial JSON files are safe.
type ViewerConfig struct {
	// Sensor-frame gate applied before the combined-view transform.
	// Bounds are exclusive.
	MinRangeM   *float64 `json:"min_range_m,omitempty"`
	MaxRangeM   *float64 `json:"max_range_m,omitempty"`
	MinSensorZM *float64 `json:"min_sensor_z_m,omitempty"`
	MaxSensorZM *float64 `json:"max_sensor_z_m,omitempty"`

	// Intensity assigned to transformed points that carry none.
	DefaultIntensity *float64 `json:"default_intensity,omitempty"`

	// Fixed normalisation range of the height colour mode.
	HeightMinM *float64 `json:"height_min_m,omitempty"`
	HeightMaxM *float64 `json:"height_max_m,omitempty"`

	// Trajectory overlay
	MarkerInterval *int     `json:"marker_interval,omitempty"`
	HeadingLengthM *float64 `json:"heading_length_m,omitempty"`

	// Playback and render loop
	PlaybackInterval *string `json:"playback_interval,omitempty"` // duration string like "100ms"
	RenderInterval   *string `json:"render_interval,omitempty"`   // duration string like "16ms"
	ResizeDebounce   *string `json:"resize_debounce,omitempty"`   // duration string like "150ms"

	// Rendering and picking
	PointSize      *float64 `json:"point_size,omitempty"`
	PickRadius     *float64 `json:"pick_radius,omitempty"`
	FOVDeg         *float64 `json:"fov_deg,omitempty"`
	ViewportWidth  *int     `json:"viewport_width,omitempty"`
	ViewportHeight *int     `json:"viewport_height,omitempty"`

	// Resolution caps the number of points requested per frame.
	Resolution *int `json:"resolution,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyViewerConfig returns a ViewerConfig with all fields set to nil.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// DefaultViewerConfig returns a ViewerConfig with every field populated from
// the built-in defaults.
func DefaultViewerConfig() *ViewerConfig {
	c := EmptyViewerConfig()
	return &ViewerConfig{
		MinRangeM:        ptrFloat64(c.GetMinRangeM()),
		MaxRangeM:        ptrFloat64(c.GetMaxRangeM()),
		MinSensorZM:      ptrFloat64(c.GetMinSensorZM()),
		MaxSensorZM:      ptrFloat64(c.GetMaxSensorZM()),
		DefaultIntensity: ptrFloat64(c.GetDefaultIntensity()),
		HeightMinM:       ptrFloat64(c.GetHeightMinM()),
		HeightMaxM:       ptrFloat64(c.GetHeightMaxM()),
		MarkerInterval:   ptrInt(c.GetMarkerInterval()),
		HeadingLengthM:   ptrFloat64(c.GetHeadingLengthM()),
		PlaybackInterval: ptrString(c.GetPlaybackInterval().String()),
		RenderInterval:   ptrString(c.GetRenderInterval().String()),
		ResizeDebounce:   ptrString(c.GetResizeDebounce().String()),
		PointSize:        ptrFloat64(c.GetPointSize()),
		PickRadius:       ptrFloat64(c.GetPickRadius()),
		FOVDeg:           ptrFloat64(c.GetFOVDeg()),
		ViewportWidth:    ptrInt(c.GetViewportWidth()),
		ViewportHeight:   ptrInt(c.GetViewportHeight()),
		Resolution:       ptrInt(c.GetResolution()),
	}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *ViewerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadViewerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ViewerConfig) Validate() error {
	if c.MinRangeM != nil && *c.MinRangeM < 0 {
		return fmt.Errorf("min_range_m must be non-negative, got %f", *c.MinRangeM)
	}
	if c.GetMaxRangeM() <= c.GetMinRangeM() {
		return fmt.Errorf("max_range_m (%f) must exceed min_range_m (%f)", c.GetMaxRangeM(), c.GetMinRangeM())
	}
	if c.GetMaxSensorZM() <= c.GetMinSensorZM() {
		return fmt.Errorf("max_sensor_z_m (%f) must exceed min_sensor_z_m (%f)", c.GetMaxSensorZM(), c.GetMinSensorZM())
	}
	if c.GetHeightMaxM() <= c.GetHeightMinM() {
		return fmt.Errorf("height_max_m (%f) must exceed height_min_m (%f)", c.GetHeightMaxM(), c.GetHeightMinM())
	}
	if c.DefaultIntensity != nil && (*c.DefaultIntensity < 0 || *c.DefaultIntensity > 255) {
		return fmt.Errorf("default_intensity must be between 0 and 255, got %f", *c.DefaultIntensity)
	}
	if c.MarkerInterval != nil && *c.MarkerInterval < 1 {
		return fmt.Errorf("marker_interval must be at least 1, got %d", *c.MarkerInterval)
	}

	for name, v := range map[string]*string{
		"playback_interval": c.PlaybackInterval,
		"render_interval":   c.RenderInterval,
		"resize_debounce":   c.ResizeDebounce,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	if c.PlaybackInterval != nil && *c.PlaybackInterval != "" && c.GetPlaybackInterval() <= 0 {
		return fmt.Errorf("playback_interval must be positive, got %s", *c.PlaybackInterval)
	}
	if c.RenderInterval != nil && *c.RenderInterval != "" && c.GetRenderInterval() <= 0 {
		return fmt.Errorf("render_interval must be positive, got %s", *c.RenderInterval)
	}

	if c.PointSize != nil && *c.PointSize <= 0 {
		return fmt.Errorf("point_size must be positive, got %f", *c.PointSize)
	}
	if c.PickRadius != nil && *c.PickRadius <= 0 {
		return fmt.Errorf("pick_radius must be positive, got %f", *c.PickRadius)
	}
	if c.FOVDeg != nil && (*c.FOVDeg <= 0 || *c.FOVDeg >= 180) {
		return fmt.Errorf("fov_deg must be in (0, 180), got %f", *c.FOVDeg)
	}
	if c.ViewportWidth != nil && *c.ViewportWidth <= 0 {
		return fmt.Errorf("viewport_width must be positive, got %d", *c.ViewportWidth)
	}
	if c.ViewportHeight != nil && *c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport_height must be positive, got %d", *c.ViewportHeight)
	}
	if c.Resolution != nil && *c.Resolution < 0 {
		return fmt.Errorf("resolution must be non-negative, got %d", *c.Resolution)
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetMinRangeM returns the min_range_m value or the default.
func (c *ViewerConfig) GetMinRangeM() float64 {
	if c.MinRangeM == nil {
		return 1.0
	}
	return *c.MinRangeM
}

// GetMaxRangeM returns the max_range_m value or the default.
func (c *ViewerConfig) GetMaxRangeM() float64 {
	if c.MaxRangeM == nil {
		return 80.0
	}
	return *c.MaxRangeM
}

// GetMinSensorZM returns the min_sensor_z_m value or the default.
func (c *ViewerConfig) GetMinSensorZM() float64 {
	if c.MinSensorZM == nil {
		return -3.0
	}
	return *c.MinSensorZM
}

// GetMaxSensorZM returns the max_sensor_z_m value or the default.
func (c *ViewerConfig) GetMaxSensorZM() float64 {
	if c.MaxSensorZM == nil {
		return 5.0
	}
	return *c.MaxSensorZM
}

// GetDefaultIntensity returns the default_intensity value or the default.
func (c *ViewerConfig) GetDefaultIntensity() float64 {
	if c.DefaultIntensity == nil {
		return 50
	}
	return *c.DefaultIntensity
}

// GetHeightMinM returns the height_min_m value or the default.
func (c *ViewerConfig) GetHeightMinM() float64 {
	if c.HeightMinM == nil {
		return -10
	}
	return *c.HeightMinM
}

// GetHeightMaxM returns the height_max_m value or the default.
func (c *ViewerConfig) GetHeightMaxM() float64 {
	if c.HeightMaxM == nil {
		return 10
	}
	return *c.HeightMaxM
}

// GetMarkerInterval returns the marker_interval value or the default.
func (c *ViewerConfig) GetMarkerInterval() int {
	if c.MarkerInterval == nil {
		return 10
	}
	return *c.MarkerInterval
}

// GetHeadingLengthM returns the heading_length_m value or the default.
func (c *ViewerConfig) GetHeadingLengthM() float64 {
	if c.HeadingLengthM == nil {
		return 2.0
	}
	return *c.HeadingLengthM
}

// GetPlaybackInterval parses and returns the PlaybackInterval as a time.Duration.
func (c *ViewerConfig) GetPlaybackInterval() time.Duration {
	return durationOr(c.PlaybackInterval, 100*time.Millisecond)
}

// GetRenderInterval parses and returns the RenderInterval as a time.Duration.
func (c *ViewerConfig) GetRenderInterval() time.Duration {
	return durationOr(c.RenderInterval, 16*time.Millisecond)
}

// GetResizeDebounce parses and returns the ResizeDebounce as a time.Duration.
func (c *ViewerConfig) GetResizeDebounce() time.Duration {
	return durationOr(c.ResizeDebounce, 150*time.Millisecond)
}

// GetPointSize returns the point_size value or the default.
func (c *ViewerConfig) GetPointSize() float64 {
	if c.PointSize == nil {
		return 2.0
	}
	return *c.PointSize
}

// GetPickRadius returns the pick_radius value or the default.
func (c *ViewerConfig) GetPickRadius() float64 {
	if c.PickRadius == nil {
		return 0.2
	}
	return *c.PickRadius
}

// GetFOVDeg returns the fov_deg value or the default.
func (c *ViewerConfig) GetFOVDeg() float64 {
	if c.FOVDeg == nil {
		return 60
	}
	return *c.FOVDeg
}

// GetViewportWidth returns the viewport_width value or the default.
func (c *ViewerConfig) GetViewportWidth() int {
	if c.ViewportWidth == nil {
		return 1280
	}
	return *c.ViewportWidth
}

// GetViewportHeight returns the viewport_height value or the default.
func (c *ViewerConfig) GetViewportHeight() int {
	if c.ViewportHeight == nil {
		return 720
	}
	return *c.ViewportHeight
}

// GetResolution returns the resolution value or the default.
func (c *ViewerConfig) GetResolution() int {
	if c.Resolution == nil {
		return 20000
	}
	return *c.Resolution
}
