// Package export writes the current view to disk: a rendered PNG, an ASCII
// PLY of the rendered points with their colours, or a JSON snapshot of the
// frame. Files always land inside the configured export directory.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/monitoring"
	"github.com/banshee-data/slamview/internal/security"
	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/layers"
)

var logf = monitoring.Tagged("export")

// ErrNoImage is returned for a PNG export without a rendered image.
var ErrNoImage = errors.New("no rendered image to export")

// Snapshot is the state of one panel at export time.
type Snapshot struct {
	DatasetID  string
	Frame      uint32
	View       slam.ViewMode
	Mode       slam.ColorMode
	Points     *layers.PointBuffer
	Trajectory *layers.TrajectoryBuffer
	Selection  *slam.Selection
	Image      image.Image
}

// FileName is the default export file name for a snapshot.
func FileName(s Snapshot, format slam.ExportFormat) string {
	return fmt.Sprintf("%s_%s_f%06d.%s", s.DatasetID, s.View, s.Frame, format)
}

// Exporter writes snapshots into one directory.
type Exporter struct {
	dir string
}

// New returns an exporter for dir, creating it if needed.
func New(dir string) (*Exporter, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string { return e.dir }

// Export writes s in the given format and returns the file path.
func (e *Exporter) Export(s Snapshot, format slam.ExportFormat) (string, error) {
	path, err := security.ExportPath(e.dir, FileName(s, format))
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	switch format {
	case slam.ExportPNG:
		err = WritePNG(w, s.Image)
	case slam.ExportPLY:
		err = WritePLY(w, s.Points)
	case slam.ExportJSON:
		err = WriteJSON(w, s)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	logf("wrote %s", path)
	return path, nil
}

// WritePNG encodes a rendered image.
func WritePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return ErrNoImage
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

// WritePLY writes the buffer as an ASCII PLY with per-vertex colour. A nil
// buffer writes a valid file with no vertices.
func WritePLY(w io.Writer, buf *layers.PointBuffer) error {
	n := buf.Len()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment slamview point export\n")
	fmt.Fprintf(bw, "element vertex %d\n", n)
	fmt.Fprintf(bw, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(bw, "property uchar red\nproperty uchar green\nproperty uchar blue\n")
	fmt.Fprintf(bw, "property float intensity\nend_header\n")
	for i := 0; i < n; i++ {
		p := buf.Points[i]
		r, g, b := buf.Colors[i].RGB255()
		intensity := 0.0
		if p.HasIntensity {
			intensity = p.Intensity
		}
		fmt.Fprintf(bw, "%.6f %.6f %.6f %d %d %d %.3f\n", p.X, p.Y, p.Z, r, g, b, intensity)
	}
	return bw.Flush()
}

type jsonPoint struct {
	Position  [3]float64 `json:"position"`
	Color     [3]uint8   `json:"color"`
	Intensity *float64   `json:"intensity,omitempty"`
	Source    uint32     `json:"source_index"`
}

type jsonSelection struct {
	Position    [3]float64 `json:"position"`
	SourceIndex uint32     `json:"source_index"`
}

type jsonSnapshot struct {
	DatasetID    string         `json:"dataset_id"`
	Frame        uint32         `json:"frame"`
	View         string         `json:"view"`
	ColorMode    string         `json:"color_mode"`
	Points       []jsonPoint    `json:"points"`
	Trajectory   [][3]float64   `json:"trajectory,omitempty"`
	MarkerFrames []uint32       `json:"marker_frames,omitempty"`
	Current      *[3]float64    `json:"current_pose,omitempty"`
	Selection    *jsonSelection `json:"selection,omitempty"`
}

func arr(v r3.Vector) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// WriteJSON writes a snapshot of the frame: points with colours, the
// trajectory overlay and the selection, all in the frame the view draws in.
func WriteJSON(w io.Writer, s Snapshot) error {
	out := jsonSnapshot{
		DatasetID: s.DatasetID,
		Frame:     s.Frame,
		View:      s.View.String(),
		ColorMode: s.Mode.String(),
		Points:    make([]jsonPoint, s.Points.Len()),
	}
	for i := range out.Points {
		p := s.Points.Points[i]
		r, g, b := s.Points.Colors[i].RGB255()
		jp := jsonPoint{Position: arr(p.Vec()), Color: [3]uint8{r, g, b}, Source: s.Points.SourceIndex[i]}
		if p.HasIntensity {
			v := p.Intensity
			jp.Intensity = &v
		}
		out.Points[i] = jp
	}
	if tb := s.Trajectory; tb != nil {
		for _, v := range tb.Line {
			out.Trajectory = append(out.Trajectory, arr(v))
		}
		out.MarkerFrames = tb.MarkerFrames
		if tb.HasCurrent {
			c := arr(tb.Current)
			out.Current = &c
		}
	}
	if s.Selection != nil {
		out.Selection = &jsonSelection{Position: arr(s.Selection.Position), SourceIndex: s.Selection.SourceIndex}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
