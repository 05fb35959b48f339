// Command gen-dataset writes a synthetic SLAM dataset as a dataset log
// and/or into a SQLite dataset store, for exercising slamview.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/slamview/internal/dataset/logsource"
	"github.com/banshee-data/slamview/internal/dataset/sqlitesource"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
	"github.com/banshee-data/slamview/internal/version"
)

// writeLog records every frame of d, with its camera image, under path.
func writeLog(ctx context.Context, d *synthetic.Dataset, path string) error {
	rec, err := logsource.NewRecorder(path, d.ID())
	if err != nil {
		return err
	}
	traj, err := d.Trajectory(ctx, d.ID())
	if err != nil {
		rec.Close()
		return err
	}
	rec.SetTrajectory(traj)

	for i := 0; i < d.Frames(); i++ {
		frame := uint32(i)
		points, err := d.FramePoints(ctx, d.ID(), frame, 0)
		if err != nil {
			rec.Close()
			return err
		}
		img, err := d.FrameImage(ctx, d.ID(), frame, synthetic.CameraSensor)
		if err != nil {
			rec.Close()
			return err
		}
		if err := rec.Record(points, map[string][]byte{synthetic.CameraSensor: img}); err != nil {
			rec.Close()
			return fmt.Errorf("record frame %d: %w", i, err)
		}
		if (i+1)%50 == 0 {
			log.Printf("%d/%d frames", i+1, d.Frames())
		}
	}
	return rec.Close()
}

// writeDB imports d and its odometry result into the store at path.
func writeDB(ctx context.Context, d *synthetic.Dataset, path string) error {
	st, err := sqlitesource.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Import(ctx, d, d.ID(), "synthetic "+d.ID(), []string{synthetic.CameraSensor}); err != nil {
		return err
	}
	res, err := d.Result(ctx, d.ResultID())
	if err != nil {
		return err
	}
	return st.PutResult(ctx, res)
}

func main() {
	output := flag.String("o", "", "dataset log directory to write")
	dbPath := flag.String("db", "", "SQLite dataset store to import into")
	id := flag.String("id", "demo", "dataset id")
	frames := flag.Int("n", 120, "number of frames")
	points := flag.Int("points", 4000, "points per frame")
	seed := flag.Int64("seed", 1, "random seed")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("gen-dataset"))
		return
	}

	if *output == "" && *dbPath == "" {
		log.Fatal("nothing to write: set -o and/or -db")
	}

	cfg := synthetic.DefaultConfig()
	cfg.Frames = *frames
	cfg.PointsPerFrame = *points
	cfg.Seed = *seed
	d := synthetic.New(*id, cfg)
	ctx := context.Background()

	if *output != "" {
		if err := writeLog(ctx, d, *output); err != nil {
			log.Fatalf("failed to write log: %v", err)
		}
		log.Printf("✓ Created: %s", *output)
	}
	if *dbPath != "" {
		if err := writeDB(ctx, d, *dbPath); err != nil {
			log.Fatalf("failed to write database: %v", err)
		}
		log.Printf("✓ Imported %s into %s", *id, *dbPath)
	}
}
