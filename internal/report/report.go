// Package report renders evaluation results: an HTML page with the
// top-down estimated and ground-truth paths plus the per-frame error, and a
// static PNG plot of the per-frame error.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/monitoring"
)

// DefaultAssetsHost serves the echarts javascript for rendered pages.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ErrNoErrors is returned when a result carries no per-frame error series.
var ErrNoErrors = errors.New("result has no per-frame error")

var logf = monitoring.Tagged("report")

// pathXY projects a trajectory onto the ground plane (x right, z forward).
func pathXY(tr dataset.TrajectoryResponse) []opts.ScatterData {
	out := make([]opts.ScatterData, len(tr.Trajectory))
	for i, e := range tr.Trajectory {
		out[i] = opts.ScatterData{Value: []interface{}{e.Position[0], e.Position[2], i}}
	}
	return out
}

func extent(trs ...*dataset.TrajectoryResponse) float64 {
	pad := 1.0
	for _, tr := range trs {
		if tr == nil {
			continue
		}
		for _, e := range tr.Trajectory {
			pad = math.Max(pad, math.Max(math.Abs(e.Position[0]), math.Abs(e.Position[2])))
		}
	}
	return math.Ceil(pad * 1.1)
}

// WriteTrajectoryHTML writes an interactive report for r. assetsHost may be
// empty to use DefaultAssetsHost.
func WriteTrajectoryHTML(w io.Writer, r dataset.Result, assetsHost string) error {
	if assetsHost == "" {
		assetsHost = DefaultAssetsHost
	}
	pad := extent(&r.Trajectory, r.GroundTruth)

	path := charts.NewScatter()
	path.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "SLAM Result " + r.ID, Theme: "dark", Width: "900px", Height: "900px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s on %s", r.Algorithm, r.DatasetID),
			Subtitle: fmt.Sprintf("result=%s poses=%d ATE=%.3f m RPE=%.3f m", r.ID, len(r.Trajectory.Trajectory), r.Metrics.ATE, r.Metrics.RPE),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Z (m)", NameLocation: "middle", NameGap: 30}),
	)
	path.AddSeries("estimated", pathXY(r.Trajectory), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	if r.GroundTruth != nil {
		path.AddSeries("ground truth", pathXY(*r.GroundTruth), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.AddCharts(path)

	if n := len(r.Metrics.PerFrameError); n > 0 {
		frames := make([]int, n)
		errs := make([]opts.LineData, n)
		for i, v := range r.Metrics.PerFrameError {
			frames[i] = i
			errs[i] = opts.LineData{Value: v}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "360px", AssetsHost: assetsHost}),
			charts.WithTitleOpts(opts.Title{Title: "Per-frame position error"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Error (m)", NameLocation: "middle", NameGap: 40}),
		)
		line.SetXAxis(frames).AddSeries("error", errs, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	logf("rendered report for %s (%d poses)", r.ID, len(r.Trajectory.Trajectory))
	return nil
}

// WriteErrorPlotPNG writes the per-frame error of r as a PNG line plot.
func WriteErrorPlotPNG(w io.Writer, r dataset.Result) error {
	if len(r.Metrics.PerFrameError) == 0 {
		return ErrNoErrors
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Per-frame Error (ATE %.3f m)", r.ID, r.Metrics.ATE)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Error (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(r.Metrics.PerFrameError))
	for i, v := range r.Metrics.PerFrameError {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("create error line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("position error", line)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write error plot: %w", err)
	}
	return nil
}
