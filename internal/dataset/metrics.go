package dataset

import (
	"math"

	"github.com/banshee-data/slamview/internal/slam"
)

// Score compares an estimated trajectory with ground truth frame by frame.
// ATE is the RMS position error; RPE is the RMS error of the frame-to-frame
// displacement. Only the common prefix of the two trajectories is scored.
// Adapters that stand in for an evaluation backend use it to fill Metrics.
func Score(est, gt slam.Trajectory) Metrics {
	n := min(len(est), len(gt))
	if n == 0 {
		return Metrics{}
	}

	m := Metrics{PerFrameError: make([]float64, n)}
	var ate, rpe float64
	for i := 0; i < n; i++ {
		e := est[i].Position.Sub(gt[i].Position).Norm()
		m.PerFrameError[i] = e
		ate += e * e
		if i > 0 {
			de := est[i].Position.Sub(est[i-1].Position)
			dg := gt[i].Position.Sub(gt[i-1].Position)
			r := de.Sub(dg).Norm()
			rpe += r * r
		}
	}
	m.ATE = math.Sqrt(ate / float64(n))
	if n > 1 {
		m.RPE = math.Sqrt(rpe / float64(n-1))
	}
	return m
}
