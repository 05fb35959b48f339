// Package dataset defines the data-source contract the viewer consumes and
// the wire shapes it exchanges: per-frame points as parallel arrays, the
// trajectory as position + rotation pairs, per-frame sensor images, and
// evaluation results.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/slamview/internal/slam"
)

var (
	// ErrUnavailable means the source could not deliver the data right now.
	ErrUnavailable = errors.New("data unavailable")
	// ErrNotFound means the dataset, frame, sensor or result does not exist.
	ErrNotFound = errors.New("not found")
)

// Source serves one or more datasets by id.
type Source interface {
	// FramePoints returns at most resolution points of a frame; resolution
	// <= 0 means no cap. Sampling is up to the source.
	FramePoints(ctx context.Context, datasetID string, frame uint32, resolution int) (FramePoints, error)
	Trajectory(ctx context.Context, datasetID string) (TrajectoryResponse, error)
	FrameImage(ctx context.Context, datasetID string, frame uint32, sensor string) ([]byte, error)
}

// ResultSource serves evaluation results by id.
type ResultSource interface {
	Result(ctx context.Context, resultID string) (Result, error)
}

// FramePoints is one frame's points as parallel arrays. Intensity is either
// absent or as long as the coordinates.
type FramePoints struct {
	X         []float64 `json:"x"`
	Y         []float64 `json:"y"`
	Z         []float64 `json:"z"`
	Intensity []float64 `json:"intensity,omitempty"`
}

// Len returns the number of points.
func (fp FramePoints) Len() int { return len(fp.X) }

// Validate checks that the arrays are parallel.
func (fp FramePoints) Validate() error {
	n := len(fp.X)
	if len(fp.Y) != n || len(fp.Z) != n {
		return fmt.Errorf("frame points: x/y/z lengths %d/%d/%d differ", len(fp.X), len(fp.Y), len(fp.Z))
	}
	if fp.Intensity != nil && len(fp.Intensity) != n {
		return fmt.Errorf("frame points: %d intensities for %d points", len(fp.Intensity), n)
	}
	return nil
}

// ToBatch converts the arrays into a PointBatch for frame.
func (fp FramePoints) ToBatch(frame uint32) (*slam.PointBatch, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	pts := make([]slam.Point3D, fp.Len())
	hasIntensity := fp.Intensity != nil
	for i := range pts {
		pts[i] = slam.Point3D{X: fp.X[i], Y: fp.Y[i], Z: fp.Z[i], HasIntensity: hasIntensity}
		if hasIntensity {
			pts[i].Intensity = fp.Intensity[i]
		}
	}
	return &slam.PointBatch{FrameIndex: frame, Points: pts}, nil
}

// FramePointsFrom is the inverse of ToBatch. Intensity is emitted only when
// every point carries one.
func FramePointsFrom(points []slam.Point3D) FramePoints {
	fp := FramePoints{
		X: make([]float64, len(points)),
		Y: make([]float64, len(points)),
		Z: make([]float64, len(points)),
	}
	withIntensity := len(points) > 0
	for i, p := range points {
		fp.X[i], fp.Y[i], fp.Z[i] = p.X, p.Y, p.Z
		withIntensity = withIntensity && p.HasIntensity
	}
	if withIntensity {
		fp.Intensity = make([]float64, len(points))
		for i, p := range points {
			fp.Intensity[i] = p.Intensity
		}
	}
	return fp
}

// Sample returns at most n points, taking every k-th so the whole scan is
// still covered. n <= 0 returns fp unchanged.
func (fp FramePoints) Sample(n int) FramePoints {
	total := fp.Len()
	if n <= 0 || total <= n {
		return fp
	}
	out := FramePoints{
		X: make([]float64, 0, n),
		Y: make([]float64, 0, n),
		Z: make([]float64, 0, n),
	}
	if fp.Intensity != nil {
		out.Intensity = make([]float64, 0, n)
	}
	for k := 0; k < n; k++ {
		i := k * total / n
		out.X = append(out.X, fp.X[i])
		out.Y = append(out.Y, fp.Y[i])
		out.Z = append(out.Z, fp.Z[i])
		if fp.Intensity != nil {
			out.Intensity = append(out.Intensity, fp.Intensity[i])
		}
	}
	return out
}

// TrajectoryEntry is one pose on the wire. Pose is the row-major rotation.
type TrajectoryEntry struct {
	Position [3]float64    `json:"position"`
	Pose     [3][3]float64 `json:"pose"`
}

// TrajectoryResponse is the trajectory endpoint's body.
type TrajectoryResponse struct {
	Trajectory []TrajectoryEntry `json:"trajectory"`
}

// ToTrajectory converts to a Trajectory; frame indices follow array order.
func (r TrajectoryResponse) ToTrajectory() slam.Trajectory {
	traj := make(slam.Trajectory, len(r.Trajectory))
	for i, e := range r.Trajectory {
		traj[i] = slam.Pose{
			Position:   r3.Vector{X: e.Position[0], Y: e.Position[1], Z: e.Position[2]},
			Rotation:   e.Pose,
			FrameIndex: uint32(i),
		}
	}
	return traj
}

// TrajectoryResponseFrom is the inverse of ToTrajectory.
func TrajectoryResponseFrom(traj slam.Trajectory) TrajectoryResponse {
	out := TrajectoryResponse{Trajectory: make([]TrajectoryEntry, len(traj))}
	for i, p := range traj {
		out.Trajectory[i] = TrajectoryEntry{
			Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
			Pose:     p.Rotation,
		}
	}
	return out
}

// Metrics are the accuracy figures computed by the evaluation backend.
type Metrics struct {
	ATE           float64   `json:"ate"`
	RPE           float64   `json:"rpe"`
	PerFrameError []float64 `json:"per_frame_error,omitempty"`
}

// Result is one algorithm run over a dataset.
type Result struct {
	ID          string              `json:"id"`
	DatasetID   string              `json:"dataset_id"`
	Algorithm   string              `json:"algorithm"`
	Trajectory  TrajectoryResponse  `json:"trajectory"`
	GroundTruth *TrajectoryResponse `json:"ground_truth,omitempty"`
	Metrics     Metrics             `json:"metrics"`
}
