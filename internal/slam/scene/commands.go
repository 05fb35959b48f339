package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/camera"
	"github.com/banshee-data/slamview/internal/slam/coords"
	"github.com/banshee-data/slamview/internal/slam/export"
	"github.com/banshee-data/slamview/internal/slam/framestore"
	"github.com/banshee-data/slamview/internal/slam/layers"
	"github.com/banshee-data/slamview/internal/slam/render"
)

// DragMode selects what a pointer drag does to the active camera.
type DragMode int

const (
	DragOrbit DragMode = iota
	DragPan
)

// State is a snapshot of the scene for the shell and for tests.
type State struct {
	DatasetID   string
	Frames      int
	Playback    slam.PlaybackState
	View        slam.ViewMode
	ColorMode   slam.ColorMode
	PointSize   float64
	Selection   *slam.Selection
	Cameras     map[slam.ViewMode]slam.CameraState
	Viewport    camera.Viewport
	BatchFrame  *uint32 // frame of the accepted batch, nil before the first
	PointCount  int     // points in the rendered buffer
	HasPose     bool
	RenderCount uint64
}

// State returns a snapshot taken on the loop.
func (s *Scene) State() (State, error) {
	var st State
	err := s.do(func() {
		st = State{
			Playback:    s.play.State(),
			View:        s.view,
			ColorMode:   s.mode,
			PointSize:   s.points.PointSize(),
			Cameras:     s.rig.States(),
			Viewport:    s.renderer.Viewport,
			PointCount:  s.points.Buffer().Len(),
			RenderCount: s.renders,
		}
		if s.store == nil {
			return
		}
		st.DatasetID = s.store.DatasetID()
		st.Frames = s.store.Len()
		st.Selection = s.store.Selection()
		st.HasPose = s.store.Pose(s.store.CurrentFrame()) != nil
		if b := s.store.Batch(); b != nil {
			f := b.FrameIndex
			st.BatchFrame = &f
		}
	})
	return st, err
}

// Frame returns the most recently rendered image, or nil before the first
// render tick with something to draw.
func (s *Scene) Frame() (image.Image, error) {
	var img image.Image
	err := s.do(func() { img = s.frame })
	return img, err
}

// LoadDataset replaces the frame store with one for id, stops playback and
// fetches the trajectory in the background. Results of the previous
// dataset still in flight are dropped.
func (s *Scene) LoadDataset(id string) error {
	return s.do(func() {
		s.stopTicker()
		s.play.Pause()
		s.play.SetBounds(0)
		s.play.Seek(0)
		s.points.Dispose()
		s.traj.Dispose()
		s.store = framestore.New(id)
		s.dirty = true
		logf("loading dataset %s (session %s)", id, s.store.Session())

		session := s.store.Session()
		ctx := s.ctx
		go func() {
			resp, err := s.src.Trajectory(ctx, id)
			s.post(func() { s.applyTrajectory(session, resp, err) })
		}()
	})
}

func (s *Scene) applyTrajectory(session uuid.UUID, resp dataset.TrajectoryResponse, err error) {
	if s.store == nil || session != s.store.Session() {
		logf("trajectory for a previous dataset discarded")
		return
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.notify(DataUnavailable, "trajectory of %s unavailable: %v", s.store.DatasetID(), err)
		}
		return
	}

	traj := resp.ToTrajectory()
	s.store.SetTrajectory(traj)
	s.play.SetBounds(len(traj))
	for _, v := range slam.ViewModes {
		s.rig.For(v).ApplyPreset(camera.PresetIsometric, slam.BoundsOf(coords.TrajectoryToDisplay(traj, v)...))
	}
	logf("dataset %s: %d frames", s.store.DatasetID(), len(traj))
	s.emit(Event{Kind: EventDatasetLoaded, Frames: len(traj), Playback: s.play.State()})
	s.frameChanged()
}

// Play starts playback. Playing again after the end starts from frame 0;
// playing while already playing leaves the tick schedule alone.
func (s *Scene) Play() error {
	return s.do(func() {
		wasPlaying := s.play.Playing()
		if s.play.Play() {
			s.frameChanged()
		} else {
			s.emitPlayback()
		}
		if !wasPlaying {
			s.startTicker()
		}
	})
}

// Pause stops playback on the current frame.
func (s *Scene) Pause() error {
	return s.do(func() {
		s.play.Pause()
		s.stopTicker()
		s.emitPlayback()
	})
}

// Seek clamps frame into the timeline, makes it current and refetches it,
// whether or not the frame changed. Playback keeps running.
func (s *Scene) Seek(frame int) error {
	return s.do(func() {
		s.play.Seek(frame)
		s.frameChanged()
	})
}

// SetSpeed changes the playback interval; while playing the tick is re-armed
// immediately.
func (s *Scene) SetSpeed(d time.Duration) error {
	return s.do(func() {
		s.play.SetSpeed(d)
		if s.play.Playing() {
			s.startTicker()
		}
		s.emitPlayback()
	})
}

// SetColorMode recolours the current batch.
func (s *Scene) SetColorMode(m slam.ColorMode) error {
	return s.do(func() {
		if m == s.mode {
			return
		}
		s.mode = m
		s.rebuildPoints()
	})
}

// SetViewMode switches the active panel. Each panel keeps its own camera.
// The selection is cleared: its index and position refer to the previous
// panel's buffer.
func (s *Scene) SetViewMode(v slam.ViewMode) error {
	return s.do(func() {
		if v == s.view {
			return
		}
		s.view = v
		if s.store != nil && s.store.Selection() != nil {
			s.store.SetSelection(nil)
			s.emit(Event{Kind: EventSelection})
		}
		if s.store != nil && s.store.Len() > 0 {
			s.traj.Update(s.store.Trajectory(), s.store.CurrentFrame(), v)
		}
		s.rebuildPoints()
		s.dirty = true
	})
}

// SetPointSize changes the drawn point size without rebuilding the buffer.
func (s *Scene) SetPointSize(size float64) error {
	return s.do(func() {
		s.points.SetPointSize(size)
		s.dirty = true
	})
}

// Pick selects the point under (x, y) in the active panel. A miss clears
// the selection and returns nil.
func (s *Scene) Pick(x, y float64) (*slam.Selection, error) {
	var sel *slam.Selection
	err := s.do(func() {
		if s.store == nil {
			return
		}
		if s.view.ShowsPoints() {
			if buf := s.points.Buffer(); buf != nil && buf.View == s.view {
				sel = s.picker.Pick(x, y, s.renderer.Viewport, s.rig.For(s.view), buf)
			}
		}
		if sel == nil && s.store.Selection() == nil {
			return
		}
		s.store.SetSelection(sel)
		s.dirty = true
		s.emit(Event{Kind: EventSelection, Selection: sel})
	})
	return sel, err
}

// Drag moves the active panel's camera by a pointer delta in pixels.
func (s *Scene) Drag(mode DragMode, dx, dy float64) error {
	return s.do(func() {
		cam := s.rig.For(s.view)
		switch mode {
		case DragPan:
			cam.Pan(dx, dy, s.renderer.Viewport.Height)
		default:
			cam.Orbit(dx, dy)
		}
		s.dirty = true
	})
}

// Wheel zooms the active panel's camera; positive steps move closer.
func (s *Scene) Wheel(steps float64) error {
	return s.do(func() {
		s.rig.For(s.view).Zoom(steps)
		s.dirty = true
	})
}

// ApplyPreset moves the active panel's camera to a named viewpoint sized to
// the visible geometry.
func (s *Scene) ApplyPreset(p camera.Preset) error {
	return s.do(func() {
		s.rig.For(s.view).ApplyPreset(p, s.visibleBounds(s.view))
		s.dirty = true
	})
}

// ZoomToFit frames the visible geometry in the active panel.
func (s *Scene) ZoomToFit() error {
	return s.do(func() {
		s.rig.For(s.view).ZoomToFit(s.visibleBounds(s.view))
		s.dirty = true
	})
}

// Resize changes the viewport after the configured debounce; only the last
// of a burst of calls is applied.
func (s *Scene) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.resize(func() {
		s.post(func() {
			vp := camera.Viewport{Width: width, Height: height}
			if vp == s.renderer.Viewport {
				return
			}
			logf("viewport %dx%d", width, height)
			s.renderer.Viewport = vp
			s.dirty = true
		})
	})
}

// Export writes the current frame as seen in req.ViewMode, using that
// panel's camera. Failures are also published as ExportFailed
// notifications.
func (s *Scene) Export(req slam.ExportRequest) (string, error) {
	var (
		path string
		err  error
	)
	doErr := s.do(func() {
		path, err = s.export(req)
		if err != nil {
			s.notify(ExportFailed, "export %s of %s view: %v", req.Format, req.ViewMode, err)
			return
		}
		s.emit(Event{Kind: EventExported, Path: path})
	})
	if doErr != nil {
		return "", doErr
	}
	return path, err
}

func (s *Scene) export(req slam.ExportRequest) (string, error) {
	if s.exporter == nil {
		return "", s.exportErr
	}
	if s.store == nil {
		return "", fmt.Errorf("no dataset loaded")
	}

	snap := export.Snapshot{
		DatasetID: s.store.DatasetID(),
		Frame:     s.store.CurrentFrame(),
		View:      req.ViewMode,
		Mode:      s.mode,
		Selection: s.store.Selection(),
	}

	points, traj := s.points, s.traj
	if req.ViewMode != s.view {
		points = layers.NewPointCloudLayer(s.transformer, s.colorizer, s.alloc, s.points.PointSize())
		traj = layers.NewTrajectoryLayer(s.alloc, s.cfg.GetMarkerInterval(), s.cfg.GetHeadingLengthM())
		defer points.Dispose()
		defer traj.Dispose()
		if b := s.store.Batch(); b != nil && req.ViewMode.ShowsPoints() {
			if err := points.Update(b, s.mode, req.ViewMode, s.store.Pose(b.FrameIndex)); err != nil {
				return "", err
			}
		}
		if s.store.Len() > 0 {
			traj.Update(s.store.Trajectory(), s.store.CurrentFrame(), req.ViewMode)
		}
		// selection indices refer to the active panel's buffer
		snap.Selection = nil
	}
	if req.ViewMode.ShowsPoints() {
		snap.Points = points.Buffer()
	}
	if req.ViewMode.ShowsTrajectory() {
		snap.Trajectory = traj.Buffer()
	}
	if req.Format == slam.ExportPNG {
		snap.Image = s.renderer.Render(s.rig.For(req.ViewMode), render.Scene{
			View:       req.ViewMode,
			Points:     snap.Points,
			PointSize:  points.PointSize(),
			Trajectory: snap.Trajectory,
			Selection:  snap.Selection,
		})
	}
	return s.exporter.Export(snap, req.Format)
}

// FrameImage fetches the current frame's image for a sensor. The fetch runs
// on the caller's goroutine; a failure is also published as DataUnavailable.
func (s *Scene) FrameImage(ctx context.Context, sensor string) ([]byte, error) {
	var (
		id    string
		frame uint32
	)
	if err := s.do(func() {
		if s.store != nil {
			id = s.store.DatasetID()
			frame = s.store.CurrentFrame()
		}
	}); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("no dataset loaded: %w", dataset.ErrUnavailable)
	}
	img, err := s.src.FrameImage(ctx, id, frame, sensor)
	if err != nil {
		s.post(func() {
			s.notify(DataUnavailable, "frame %d image from %s unavailable: %v", frame, sensor, err)
		})
		return nil, err
	}
	return img, nil
}
