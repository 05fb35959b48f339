// Package synthetic generates deterministic datasets for tests, demos and
// the dataset generator: a vehicle driving a circle, ring-shaped LiDAR scans
// with range-dependent intensity, a camera image per frame, and one
// evaluation result with a drifting estimate.
package synthetic

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/fogleman/gg"

	"github.com/banshee-data/slamview/internal/dataset"
)

// CameraSensor is the only image sensor a synthetic dataset has.
const CameraSensor = "cam0"

// Config controls the generated data.
type Config struct {
	Frames         int     // trajectory length
	PointsPerFrame int     // points per scan before resolution capping
	PathRadius     float64 // metres, radius of the driven circle
	Rings          int     // LiDAR rings per scan
	Seed           int64   // per-frame noise is seeded from Seed+frame
	DriftPerFrame  float64 // metres of lateral drift added to the estimate per frame
	ImageWidth     int
	ImageHeight    int
}

// DefaultConfig returns a small dataset that exercises every code path.
func DefaultConfig() Config {
	return Config{
		Frames:         120,
		PointsPerFrame: 4000,
		PathRadius:     20,
		Rings:          16,
		Seed:           1,
		DriftPerFrame:  0.01,
		ImageWidth:     160,
		ImageHeight:    120,
	}
}

// Dataset serves one synthetic dataset and its result.
type Dataset struct {
	id  string
	cfg Config
}

// New returns a dataset with the given id.
func New(id string, cfg Config) *Dataset {
	if cfg.Frames < 1 {
		cfg.Frames = 1
	}
	if cfg.Rings < 1 {
		cfg.Rings = 1
	}
	if cfg.ImageWidth <= 0 || cfg.ImageHeight <= 0 {
		cfg.ImageWidth, cfg.ImageHeight = 160, 120
	}
	return &Dataset{id: id, cfg: cfg}
}

// ID returns the dataset id.
func (d *Dataset) ID() string { return d.id }

// ResultID returns the id of the dataset's evaluation result.
func (d *Dataset) ResultID() string { return d.id + "-odometry" }

// Frames returns the number of frames.
func (d *Dataset) Frames() int { return d.cfg.Frames }

func (d *Dataset) check(datasetID string, frame uint32) error {
	if datasetID != d.id {
		return fmt.Errorf("dataset %q: %w", datasetID, dataset.ErrNotFound)
	}
	if int(frame) >= d.cfg.Frames {
		return fmt.Errorf("dataset %q frame %d: %w", datasetID, frame, dataset.ErrNotFound)
	}
	return nil
}

// FramePoints generates the LiDAR scan of a frame in sensor coordinates
// (x forward, y left, z up).
func (d *Dataset) FramePoints(ctx context.Context, datasetID string, frame uint32, resolution int) (dataset.FramePoints, error) {
	if err := ctx.Err(); err != nil {
		return dataset.FramePoints{}, err
	}
	if err := d.check(datasetID, frame); err != nil {
		return dataset.FramePoints{}, err
	}

	rng := rand.New(rand.NewSource(d.cfg.Seed + int64(frame)))
	n := d.cfg.PointsPerFrame
	fp := dataset.FramePoints{
		X:         make([]float64, n),
		Y:         make([]float64, n),
		Z:         make([]float64, n),
		Intensity: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ring := i % d.cfg.Rings
		// rings fan out from the ground close by to walls further away
		elev := -15 + 30*float64(ring)/float64(d.cfg.Rings)
		az := rng.Float64() * 2 * math.Pi
		r := 3 + float64(ring)*4 + rng.NormFloat64()*0.05

		e := elev * math.Pi / 180
		fp.X[i] = r * math.Cos(e) * math.Cos(az)
		fp.Y[i] = r * math.Cos(e) * math.Sin(az)
		fp.Z[i] = r * math.Sin(e)

		intensity := 220 - r*3
		if intensity < 20 {
			intensity = 20
		}
		fp.Intensity[i] = math.Min(255, intensity+rng.Float64()*30)
	}
	return fp.Sample(resolution), nil
}

// groundTruth returns the pose of a frame in camera convention (x right,
// y down, z forward): the vehicle drives counter-clockwise around a circle
// in the x-z plane, always facing along the path.
func (d *Dataset) groundTruth(frame int) dataset.TrajectoryEntry {
	theta := 2 * math.Pi * float64(frame) / float64(d.cfg.Frames)
	c, s := math.Cos(theta), math.Sin(theta)
	// forward column (-sin, 0, cos) is the circle's tangent
	return dataset.TrajectoryEntry{
		Position: [3]float64{d.cfg.PathRadius * c, 0, d.cfg.PathRadius * s},
		Pose: [3][3]float64{
			{c, 0, -s},
			{0, 1, 0},
			{s, 0, c},
		},
	}
}

// Trajectory returns the ground-truth trajectory.
func (d *Dataset) Trajectory(ctx context.Context, datasetID string) (dataset.TrajectoryResponse, error) {
	if err := ctx.Err(); err != nil {
		return dataset.TrajectoryResponse{}, err
	}
	if err := d.check(datasetID, 0); err != nil {
		return dataset.TrajectoryResponse{}, err
	}
	out := dataset.TrajectoryResponse{Trajectory: make([]dataset.TrajectoryEntry, d.cfg.Frames)}
	for i := range out.Trajectory {
		out.Trajectory[i] = d.groundTruth(i)
	}
	return out, nil
}

// FrameImage renders a PNG showing the frame number and a horizon line.
func (d *Dataset) FrameImage(ctx context.Context, datasetID string, frame uint32, sensor string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.check(datasetID, frame); err != nil {
		return nil, err
	}
	if sensor != CameraSensor {
		return nil, fmt.Errorf("dataset %q has no sensor %q: %w", datasetID, sensor, dataset.ErrNotFound)
	}

	w, h := d.cfg.ImageWidth, d.cfg.ImageHeight
	dc := gg.NewContext(w, h)
	dc.SetRGB(0.55, 0.7, 0.9)
	dc.Clear()
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.DrawRectangle(0, float64(h)/2, float64(w), float64(h)/2)
	dc.Fill()

	// a marker sweeping across the image keeps consecutive frames distinct
	x := float64(w) * float64(frame) / float64(d.cfg.Frames)
	dc.SetRGB(1, 0.8, 0)
	dc.DrawCircle(x, float64(h)/2, float64(h)/10)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawString(fmt.Sprintf("%s #%d", d.id, frame), 4, 14)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode frame image: %w", err)
	}
	return buf.Bytes(), nil
}

// Result returns the odometry result: the ground truth with a lateral drift
// that grows linearly, scored against the ground truth.
func (d *Dataset) Result(ctx context.Context, resultID string) (dataset.Result, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Result{}, err
	}
	if resultID != d.ResultID() {
		return dataset.Result{}, fmt.Errorf("result %q: %w", resultID, dataset.ErrNotFound)
	}
	gt, err := d.Trajectory(ctx, d.id)
	if err != nil {
		return dataset.Result{}, err
	}

	est := dataset.TrajectoryResponse{Trajectory: make([]dataset.TrajectoryEntry, len(gt.Trajectory))}
	for i, e := range gt.Trajectory {
		drift := d.cfg.DriftPerFrame * float64(i)
		e.Position[0] += drift
		est.Trajectory[i] = e
	}

	return dataset.Result{
		ID:          d.ResultID(),
		DatasetID:   d.id,
		Algorithm:   "synthetic-odometry",
		Trajectory:  est,
		GroundTruth: &gt,
		Metrics:     dataset.Score(est.ToTrajectory(), gt.ToTrajectory()),
	}, nil
}
