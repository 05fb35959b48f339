// Package sqlitesource keeps datasets and evaluation results in a SQLite
// database and serves them as a dataset.Source and dataset.ResultSource.
package sqlitesource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/monitoring"
)

var logf = monitoring.Tagged("sqlitesource")

// Store is a dataset database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for admin tooling.
func (s *Store) DB() *sql.DB { return s.db }

// DatasetInfo summarises a stored dataset.
type DatasetInfo struct {
	ID     string
	Name   string
	Frames int
}

// CreateDataset registers a dataset id. Re-creating an existing id updates
// its name.
func (s *Store) CreateDataset(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, name) VALUES (?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET name = excluded.name`, id, name)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", id, err)
	}
	return nil
}

// Datasets lists stored datasets with their frame counts.
func (s *Store) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.dataset_id, d.name, COUNT(p.frame_index)
		FROM datasets d LEFT JOIN poses p ON p.dataset_id = d.dataset_id
		GROUP BY d.dataset_id, d.name
		ORDER BY d.dataset_id`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var d DatasetInfo
		if err := rows.Scan(&d.ID, &d.Name, &d.Frames); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PutTrajectory replaces a dataset's trajectory.
func (s *Store) PutTrajectory(ctx context.Context, datasetID string, traj dataset.TrajectoryResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM poses WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clear trajectory: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO poses (dataset_id, frame_index, px, py, pz,
			r00, r01, r02, r10, r11, r12, r20, r21, r22)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range traj.Trajectory {
		p, r := e.Position, e.Pose
		if _, err := stmt.ExecContext(ctx, datasetID, i, p[0], p[1], p[2],
			r[0][0], r[0][1], r[0][2], r[1][0], r[1][1], r[1][2], r[2][0], r[2][1], r[2][2]); err != nil {
			return fmt.Errorf("insert pose %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// PutFrame stores (or replaces) a frame's points.
func (s *Store) PutFrame(ctx context.Context, datasetID string, frame uint32, points dataset.FramePoints) error {
	if err := points.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", frame, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO frames (dataset_id, frame_index, point_count, points_json)
		VALUES (?, ?, ?, ?)`, datasetID, frame, points.Len(), blob)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", frame, err)
	}
	return nil
}

// PutFrameImage stores (or replaces) one sensor image of a frame.
func (s *Store) PutFrameImage(ctx context.Context, datasetID string, frame uint32, sensor string, image []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO frame_images (dataset_id, frame_index, sensor, image)
		VALUES (?, ?, ?, ?)`, datasetID, frame, sensor, image)
	if err != nil {
		return fmt.Errorf("insert image %s/%d: %w", sensor, frame, err)
	}
	return nil
}

// PutResult stores (or replaces) an evaluation result.
func (s *Store) PutResult(ctx context.Context, res dataset.Result) error {
	traj, err := json.Marshal(res.Trajectory)
	if err != nil {
		return err
	}
	var gt []byte
	if res.GroundTruth != nil {
		if gt, err = json.Marshal(res.GroundTruth); err != nil {
			return err
		}
	}
	perFrame, err := json.Marshal(res.Metrics.PerFrameError)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results (result_id, dataset_id, algorithm,
			trajectory_json, ground_truth_json, ate, rpe, per_frame_error_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.DatasetID, res.Algorithm, string(traj), nullString(gt),
		res.Metrics.ATE, res.Metrics.RPE, string(perFrame))
	if err != nil {
		return fmt.Errorf("insert result %s: %w", res.ID, err)
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// notFound maps sql.ErrNoRows to dataset.ErrNotFound and anything else to
// dataset.ErrUnavailable.
func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, dataset.ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", what, err, dataset.ErrUnavailable)
}

// FramePoints implements dataset.Source.
func (s *Store) FramePoints(ctx context.Context, datasetID string, frame uint32, resolution int) (dataset.FramePoints, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT points_json FROM frames WHERE dataset_id = ? AND frame_index = ?`,
		datasetID, frame).Scan(&blob)
	if err != nil {
		return dataset.FramePoints{}, notFound(fmt.Sprintf("dataset %q frame %d", datasetID, frame), err)
	}
	var fp dataset.FramePoints
	if err := json.Unmarshal(blob, &fp); err != nil {
		return dataset.FramePoints{}, fmt.Errorf("decode frame %d: %v: %w", frame, err, dataset.ErrUnavailable)
	}
	return fp.Sample(resolution), nil
}

// Trajectory implements dataset.Source.
func (s *Store) Trajectory(ctx context.Context, datasetID string) (dataset.TrajectoryResponse, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM datasets WHERE dataset_id = ?`, datasetID).Scan(&exists); err != nil {
		return dataset.TrajectoryResponse{}, notFound(fmt.Sprintf("dataset %q", datasetID), err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT px, py, pz, r00, r01, r02, r10, r11, r12, r20, r21, r22
		FROM poses WHERE dataset_id = ? ORDER BY frame_index`, datasetID)
	if err != nil {
		return dataset.TrajectoryResponse{}, notFound("trajectory", err)
	}
	defer rows.Close()

	out := dataset.TrajectoryResponse{Trajectory: []dataset.TrajectoryEntry{}}
	for rows.Next() {
		var e dataset.TrajectoryEntry
		p, r := &e.Position, &e.Pose
		if err := rows.Scan(&p[0], &p[1], &p[2],
			&r[0][0], &r[0][1], &r[0][2], &r[1][0], &r[1][1], &r[1][2], &r[2][0], &r[2][1], &r[2][2]); err != nil {
			return dataset.TrajectoryResponse{}, notFound("trajectory", err)
		}
		out.Trajectory = append(out.Trajectory, e)
	}
	if err := rows.Err(); err != nil {
		return dataset.TrajectoryResponse{}, notFound("trajectory", err)
	}
	return out, nil
}

// FrameImage implements dataset.Source.
func (s *Store) FrameImage(ctx context.Context, datasetID string, frame uint32, sensor string) ([]byte, error) {
	var img []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT image FROM frame_images WHERE dataset_id = ? AND frame_index = ? AND sensor = ?`,
		datasetID, frame, sensor).Scan(&img)
	if err != nil {
		return nil, notFound(fmt.Sprintf("dataset %q frame %d sensor %q", datasetID, frame, sensor), err)
	}
	return img, nil
}

// Result implements dataset.ResultSource.
func (s *Store) Result(ctx context.Context, resultID string) (dataset.Result, error) {
	var (
		res          dataset.Result
		traj         string
		gt, perFrame sql.NullString
		ate, rpe     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT result_id, dataset_id, algorithm, trajectory_json, ground_truth_json,
			ate, rpe, per_frame_error_json
		FROM results WHERE result_id = ?`, resultID).
		Scan(&res.ID, &res.DatasetID, &res.Algorithm, &traj, &gt, &ate, &rpe, &perFrame)
	if err != nil {
		return dataset.Result{}, notFound(fmt.Sprintf("result %q", resultID), err)
	}

	if err := json.Unmarshal([]byte(traj), &res.Trajectory); err != nil {
		return dataset.Result{}, fmt.Errorf("decode result trajectory: %v: %w", err, dataset.ErrUnavailable)
	}
	if gt.Valid {
		res.GroundTruth = &dataset.TrajectoryResponse{}
		if err := json.Unmarshal([]byte(gt.String), res.GroundTruth); err != nil {
			return dataset.Result{}, fmt.Errorf("decode ground truth: %v: %w", err, dataset.ErrUnavailable)
		}
	}
	if perFrame.Valid && perFrame.String != "null" {
		if err := json.Unmarshal([]byte(perFrame.String), &res.Metrics.PerFrameError); err != nil {
			return dataset.Result{}, fmt.Errorf("decode per-frame error: %v: %w", err, dataset.ErrUnavailable)
		}
	}
	res.Metrics.ATE = ate.Float64
	res.Metrics.RPE = rpe.Float64
	return res, nil
}

// Import copies a whole dataset from another source: trajectory, every
// frame's points and, for the listed sensors, every frame's image. Missing
// images are skipped.
func (s *Store) Import(ctx context.Context, src dataset.Source, datasetID, name string, sensors []string) error {
	if err := s.CreateDataset(ctx, datasetID, name); err != nil {
		return err
	}
	traj, err := src.Trajectory(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("import trajectory: %w", err)
	}
	if err := s.PutTrajectory(ctx, datasetID, traj); err != nil {
		return err
	}
	for i := range traj.Trajectory {
		frame := uint32(i)
		fp, err := src.FramePoints(ctx, datasetID, frame, 0)
		if err != nil {
			return fmt.Errorf("import frame %d: %w", frame, err)
		}
		if err := s.PutFrame(ctx, datasetID, frame, fp); err != nil {
			return err
		}
		for _, sensor := range sensors {
			img, err := src.FrameImage(ctx, datasetID, frame, sensor)
			if errors.Is(err, dataset.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("import image %s/%d: %w", sensor, frame, err)
			}
			if err := s.PutFrameImage(ctx, datasetID, frame, sensor, img); err != nil {
				return err
			}
		}
	}
	logf("imported dataset %s: %d frames", datasetID, len(traj.Trajectory))
	return nil
}
