// Command slamview replays a SLAM dataset headlessly: it steps the preview
// through the frames, exports the chosen views, writes evaluation reports
// and can serve the dataset API for other viewers. With -listen the scene
// stays up after the replay and its events are tailed at /debug/events.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/slamview/internal/config"
	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/dataset/httpsource"
	"github.com/banshee-data/slamview/internal/dataset/logsource"
	"github.com/banshee-data/slamview/internal/dataset/sqlitesource"
	"github.com/banshee-data/slamview/internal/dataset/synthetic"
	"github.com/banshee-data/slamview/internal/eventmux"
	"github.com/banshee-data/slamview/internal/httputil"
	"github.com/banshee-data/slamview/internal/report"
	"github.com/banshee-data/slamview/internal/security"
	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/scene"
	"github.com/banshee-data/slamview/internal/version"
)

var (
	configPath = flag.String("config", "", "Viewer config JSON (defaults when empty)")
	sourceKind = flag.String("source", "synthetic", "Data source: synthetic, log, sqlite or http")
	sourcePath = flag.String("path", "", "Dataset log directory (log) or database file (sqlite)")
	sourceURL  = flag.String("url", "", "Base URL of the dataset API (http)")
	datasetID  = flag.String("dataset", "demo", "Dataset to replay")
	synFrames  = flag.Int("frames", 120, "Frame count of the synthetic dataset")

	viewFlag   = flag.String("view", "combined", "View to export: trajectory, pointcloud or combined")
	colorFlag  = flag.String("color", "depth", "Colour mode: depth, height or intensity")
	formatFlag = flag.String("formats", "png", "Comma-separated export formats: png, ply, json")
	every      = flag.Int("every", 10, "Export every Nth frame; 0 disables the replay")
	exportDir  = flag.String("export-dir", "exports", "Directory for exports and reports")

	resultID   = flag.String("result", "", "Write an HTML and PNG report for this result id")
	assetsHost = flag.String("assets-host", "", "Override the chart assets host in HTML reports")

	listen = flag.String("listen", "", "Serve the dataset API, reports and debug pages on this address")

	showVersion = flag.Bool("version", false, "Print version and exit")
)

// sources is what a -source flag opens: the frame source, an optional result
// source, admin routes and a closer.
type sources struct {
	src     dataset.Source
	results dataset.ResultSource
	admin   func(*http.ServeMux) error
	close   func() error
}

func openSources() (*sources, error) {
	switch *sourceKind {
	case "synthetic":
		cfg := synthetic.DefaultConfig()
		cfg.Frames = *synFrames
		d := synthetic.New(*datasetID, cfg)
		return &sources{src: d, results: d, close: func() error { return nil }}, nil
	case "log":
		r, err := logsource.Open(*sourcePath)
		if err != nil {
			return nil, err
		}
		return &sources{src: r, close: func() error { return nil }}, nil
	case "sqlite":
		st, err := sqlitesource.Open(*sourcePath)
		if err != nil {
			return nil, err
		}
		return &sources{src: st, results: st, admin: st.AttachAdminRoutes, close: st.Close}, nil
	case "http":
		c, err := httpsource.NewClient(*sourceURL, httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second}))
		if err != nil {
			return nil, err
		}
		return &sources{src: c, results: c, close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", *sourceKind)
	}
}

func parseFormats(s string) ([]slam.ExportFormat, error) {
	var out []slam.ExportFormat
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := slam.ParseExportFormat(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func writeReports(ctx context.Context, results dataset.ResultSource, id, dir string) error {
	if results == nil {
		return fmt.Errorf("source %q serves no results", *sourceKind)
	}
	res, err := results.Result(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch result %s: %w", id, err)
	}

	htmlPath, err := security.ExportPath(dir, id+"_report.html")
	if err != nil {
		return err
	}
	if err := writeFile(htmlPath, func(f *os.File) error { return report.WriteTrajectoryHTML(f, res, *assetsHost) }); err != nil {
		return err
	}
	log.Printf("wrote %s", htmlPath)

	if len(res.Metrics.PerFrameError) == 0 {
		return nil
	}
	pngPath, err := security.ExportPath(dir, id+"_error.png")
	if err != nil {
		return err
	}
	if err := writeFile(pngPath, func(f *os.File) error { return report.WriteErrorPlotPNG(f, res) }); err != nil {
		return err
	}
	log.Printf("wrote %s", pngPath)
	return nil
}

// reportHandler renders a result report as HTML on request.
func reportHandler(results dataset.ResultSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := results.Result(r.Context(), r.PathValue("id"))
		if err != nil {
			httputil.WriteJSONError(w, httpsource.StatusFor(err), err.Error())
			return
		}
		var buf bytes.Buffer
		if err := report.WriteTrajectoryHTML(&buf, res, *assetsHost); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("slamview"))
		return
	}
	log.Print(version.String("slamview"))

	cfg := config.DefaultViewerConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadViewerConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	view, err := slam.ParseViewMode(*viewFlag)
	if err != nil {
		log.Fatal(err)
	}
	color, err := slam.ParseColorMode(*colorFlag)
	if err != nil {
		log.Fatal(err)
	}
	formats, err := parseFormats(*formatFlag)
	if err != nil {
		log.Fatal(err)
	}

	srcs, err := openSources()
	if err != nil {
		log.Fatalf("failed to open %s source: %v", *sourceKind, err)
	}
	defer srcs.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *resultID != "" {
		if err := os.MkdirAll(*exportDir, 0755); err != nil {
			log.Fatalf("failed to create export directory: %v", err)
		}
		if err := writeReports(ctx, srcs.results, *resultID, *exportDir); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
	}

	var sc *scene.Scene
	events := eventmux.New[scene.Event](eventmux.DefaultBuffer)
	if *every > 0 {
		sc, err = scene.New(srcs.src, scene.Options{Config: cfg, ExportDir: *exportDir})
		if err != nil {
			log.Fatalf("failed to create scene: %v", err)
		}
	}

	var wg sync.WaitGroup

	if *listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/api/", httpsource.NewHandler(srcs.src, srcs.results))
		if srcs.results != nil {
			mux.HandleFunc("GET /reports/{id}", reportHandler(srcs.results))
		}
		if srcs.admin != nil {
			if err := srcs.admin(mux); err != nil {
				log.Fatalf("failed to attach admin routes: %v", err)
			}
		}
		if sc != nil {
			events.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				log.Printf("serving dataset API on %s", *listen)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start server: %v", err)
				}
			}()

			<-ctx.Done()
			log.Println("shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}
		}()
	}

	if sc != nil {
		replayID, replayEvents := events.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := sc.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("scene stopped: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := events.Monitor(ctx, sc.Events()); err != nil && err != context.Canceled {
				log.Printf("event fan-out stopped: %v", err)
			}
		}()

		paths, err := replay(ctx, sc, replayEvents, replayOptions{
			DatasetID: *datasetID,
			View:      view,
			Color:     color,
			Formats:   formats,
			Every:     *every,
		})
		events.Unsubscribe(replayID)
		if err != nil {
			log.Printf("replay failed: %v", err)
		}
		log.Printf("exported %d files to %s", len(paths), *exportDir)
		if *listen == "" {
			sc.Close()
		}
	}

	wg.Wait()
	if sc != nil {
		sc.Close()
	}
}
