// Package scene runs the preview: it owns the frame store, playback,
// layers, cameras and renderer of one viewer, and serialises every change to
// them on a single loop goroutine.
//
// Public methods post commands to the loop and wait for them to run, so they
// block until Run is serving. Point fetches run on short-lived goroutines
// that only post their result back; a result whose frame is no longer
// current, or which belongs to a previous dataset, is dropped.
package scene

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bep/debounce"

	"github.com/banshee-data/slamview/internal/config"
	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/monitoring"
	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/camera"
	"github.com/banshee-data/slamview/internal/slam/colorize"
	"github.com/banshee-data/slamview/internal/slam/coords"
	"github.com/banshee-data/slamview/internal/slam/export"
	"github.com/banshee-data/slamview/internal/slam/framestore"
	"github.com/banshee-data/slamview/internal/slam/layers"
	"github.com/banshee-data/slamview/internal/slam/picking"
	"github.com/banshee-data/slamview/internal/slam/playback"
	"github.com/banshee-data/slamview/internal/slam/render"
)

var logf = monitoring.Tagged("scene")

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("scene closed")
	// ErrRunning is returned by a second call to Run.
	ErrRunning = errors.New("scene already running")
)

// Options configures a Scene. Zero values select defaults.
type Options struct {
	Config    *config.ViewerConfig
	Clock     clock.Clock
	Allocator layers.Allocator
	// ExportDir enables Export; empty leaves exports failing.
	ExportDir string
}

// Scene is one viewer. Create it with New, serve it with Run and tear it
// down with Close.
type Scene struct {
	src    dataset.Source
	cfg    *config.ViewerConfig
	clk    clock.Clock
	alloc  layers.Allocator
	resize func(func())

	cmds   chan func()
	events chan Event
	quit   chan struct{}
	done   chan struct{}

	lifecycle sync.Mutex
	started   bool
	closed    bool

	// owned by the loop
	ctx         context.Context
	store       *framestore.Store
	play        *playback.Controller
	playTicker  *clock.Ticker
	playC       <-chan time.Time
	rig         *camera.Rig
	transformer coords.Transformer
	colorizer   colorize.Colorizer
	points      *layers.PointCloudLayer
	traj        *layers.TrajectoryLayer
	picker      picking.Picker
	renderer    *render.Renderer
	exporter    *export.Exporter
	exportErr   error
	view        slam.ViewMode
	mode        slam.ColorMode
	dirty       bool
	frame       image.Image
	renders     uint64
}

// New builds a scene over src. It does not start the loop.
func New(src dataset.Source, opts Options) (*Scene, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultViewerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = layers.NewCountingAllocator()
	}

	s := &Scene{
		src:    src,
		cfg:    cfg,
		clk:    clk,
		alloc:  alloc,
		resize: debounce.New(cfg.GetResizeDebounce()),
		cmds:   make(chan func()),
		events: make(chan Event, eventBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    context.Background(),
		play:   playback.New(cfg.GetPlaybackInterval(), 0),
		rig:    camera.NewRig(cfg.GetFOVDeg()),
		transformer: coords.Transformer{
			Gate: coords.Gate{
				MinRange: cfg.GetMinRangeM(),
				MaxRange: cfg.GetMaxRangeM(),
				MinZ:     cfg.GetMinSensorZM(),
				MaxZ:     cfg.GetMaxSensorZM(),
			},
			DefaultIntensity: cfg.GetDefaultIntensity(),
		},
		colorizer: colorize.Colorizer{HeightMin: cfg.GetHeightMinM(), HeightMax: cfg.GetHeightMaxM()},
		picker:    picking.New(cfg.GetPickRadius()),
		renderer:  render.New(camera.Viewport{Width: cfg.GetViewportWidth(), Height: cfg.GetViewportHeight()}),
		view:      slam.ViewCombined,
		mode:      slam.ColorDepth,
	}
	s.points = layers.NewPointCloudLayer(s.transformer, s.colorizer, alloc, cfg.GetPointSize())
	s.traj = layers.NewTrajectoryLayer(alloc, cfg.GetMarkerInterval(), cfg.GetHeadingLengthM())

	if opts.ExportDir != "" {
		s.exporter, s.exportErr = export.New(opts.ExportDir)
	} else {
		s.exportErr = errors.New("no export directory configured")
	}
	return s, nil
}

// Events is the scene's event stream. It is closed when the scene stops.
// Events are dropped, not queued, when the reader falls behind.
func (s *Scene) Events() <-chan Event { return s.events }

// Run serves commands, playback ticks, render ticks and fetch results until
// ctx is done or Close is called. Teardown happens before Run returns.
func (s *Scene) Run(ctx context.Context) error {
	s.lifecycle.Lock()
	switch {
	case s.closed:
		s.lifecycle.Unlock()
		return ErrClosed
	case s.started:
		s.lifecycle.Unlock()
		return ErrRunning
	}
	s.started = true
	s.lifecycle.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx
	defer s.teardown()

	renderTicker := s.clk.Ticker(s.cfg.GetRenderInterval())
	defer renderTicker.Stop()

	logf("running (render every %v)", s.cfg.GetRenderInterval())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		case fn := <-s.cmds:
			fn()
		case <-s.playC:
			s.tick()
		case <-renderTicker.C:
			s.renderIfDirty()
		}
	}
}

// Close stops the loop, disposes every layer buffer and closes the event
// stream. It is safe to call more than once and before Run.
func (s *Scene) Close() error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.lifecycle.Unlock()

	close(s.quit)
	if started {
		<-s.done
	} else {
		s.teardown()
	}
	return nil
}

func (s *Scene) teardown() {
	s.stopTicker()
	s.points.Dispose()
	s.traj.Dispose()
	close(s.events)
	close(s.done)
	logf("closed")
}

// do runs fn on the loop and waits for it.
func (s *Scene) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.quit:
		return ErrClosed
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// post queues fn for the loop without waiting. It gives up once the scene
// has stopped.
func (s *Scene) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

func (s *Scene) startTicker() {
	s.stopTicker()
	s.playTicker = s.clk.Ticker(s.play.Interval())
	s.playC = s.playTicker.C
}

func (s *Scene) stopTicker() {
	if s.playTicker != nil {
		s.playTicker.Stop()
	}
	s.playTicker = nil
	s.playC = nil
}

func (s *Scene) tick() {
	if s.play.Tick() {
		s.frameChanged()
		return
	}
	if !s.play.Playing() {
		s.stopTicker()
		s.emitPlayback()
	}
}

// frameChanged makes the playback frame current everywhere and fetches its
// points. It runs on every seek, even to the same frame.
func (s *Scene) frameChanged() {
	if s.store == nil {
		return
	}
	cur := s.play.Current()
	s.store.SetCurrentFrame(cur)
	s.traj.Update(s.store.Trajectory(), cur, s.view)
	s.dirty = true
	s.emitPlayback()
	s.fetch(cur)
}

func (s *Scene) fetch(frame uint32) {
	tok := s.store.BeginFetch(frame)
	id := s.store.DatasetID()
	ctx := s.ctx
	resolution := s.cfg.GetResolution()
	go func() {
		fp, err := s.src.FramePoints(ctx, id, frame, resolution)
		s.post(func() { s.applyFetch(tok, fp, err) })
	}()
}

func (s *Scene) applyFetch(tok framestore.Token, fp dataset.FramePoints, err error) {
	if s.store == nil || tok.Session != s.store.Session() {
		logf("fetch frame %d from a previous dataset discarded", tok.Frame)
		return
	}
	if err != nil {
		if tok.Frame != s.store.CurrentFrame() || errors.Is(err, context.Canceled) {
			return
		}
		s.notify(DataUnavailable, "frame %d points unavailable: %v", tok.Frame, err)
		return
	}
	batch, err := fp.ToBatch(tok.Frame)
	if err != nil {
		if tok.Frame == s.store.CurrentFrame() {
			s.notify(DataUnavailable, "frame %d points malformed: %v", tok.Frame, err)
		}
		return
	}
	hadSelection := s.store.Selection() != nil
	if !s.store.Accept(tok, batch) {
		return
	}
	s.rebuildPoints()
	s.emit(Event{Kind: EventFrameLoaded, Playback: s.play.State(), Points: fp.Len()})
	if hadSelection {
		s.emit(Event{Kind: EventSelection})
	}
}

// rebuildPoints rebuilds the point buffer from the current batch for the
// active view and colour mode. Views without points keep the old buffer.
func (s *Scene) rebuildPoints() {
	if s.store == nil || !s.view.ShowsPoints() {
		return
	}
	batch := s.store.Batch()
	if batch == nil {
		return
	}
	err := s.points.Update(batch, s.mode, s.view, s.store.Pose(batch.FrameIndex))
	if errors.Is(err, layers.ErrMissingPose) {
		s.notify(DataUnavailable, "frame %d has no pose", batch.FrameIndex)
		return
	}
	if err != nil {
		logf("rebuild points: %v", err)
		return
	}
	s.dirty = true
}

// visibleBounds is the bounding box of what the active view draws.
func (s *Scene) visibleBounds(view slam.ViewMode) slam.Bounds {
	var b slam.Bounds
	if view.ShowsPoints() {
		if buf := s.points.Buffer(); buf != nil && buf.View == view {
			b = b.Union(buf.Bounds)
		}
	}
	if view.ShowsTrajectory() {
		if tb := s.traj.Buffer(); tb != nil && tb.View == view {
			b = b.Union(tb.Bounds)
		}
	}
	return b
}

func (s *Scene) currentScene() render.Scene {
	var sel *slam.Selection
	if s.store != nil {
		sel = s.store.Selection()
	}
	return render.Scene{
		View:       s.view,
		Points:     s.points.Buffer(),
		PointSize:  s.points.PointSize(),
		Trajectory: s.traj.Buffer(),
		Selection:  sel,
	}
}

func (s *Scene) renderIfDirty() {
	if !s.dirty {
		return
	}
	s.frame = s.renderer.Render(s.rig.For(s.view), s.currentScene())
	s.renders++
	s.dirty = false
}
