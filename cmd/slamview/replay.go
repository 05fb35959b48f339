package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/scene"
)

type replayOptions struct {
	DatasetID string
	View      slam.ViewMode
	Color     slam.ColorMode
	Formats   []slam.ExportFormat
	Every     int
	// per-frame wait for the point fetch
	Timeout time.Duration
}

// errFrameSkipped marks a frame whose points could not be fetched.
var errFrameSkipped = errors.New("frame skipped")

// replay loads a dataset into sc, steps through its frames and exports every
// Every-th one in each format, following the scene on events. It returns
// the written paths.
func replay(ctx context.Context, sc *scene.Scene, events <-chan scene.Event, o replayOptions) ([]string, error) {
	if o.Every < 1 {
		o.Every = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if err := sc.SetViewMode(o.View); err != nil {
		return nil, err
	}
	if err := sc.SetColorMode(o.Color); err != nil {
		return nil, err
	}
	if err := sc.LoadDataset(o.DatasetID); err != nil {
		return nil, err
	}

	ev, err := waitEvent(ctx, events, o.Timeout, func(ev scene.Event) bool {
		return ev.Kind == scene.EventDatasetLoaded ||
			(ev.Kind == scene.EventNotification && ev.Notification == scene.DataUnavailable)
	})
	if err != nil {
		return nil, err
	}
	if ev.Kind == scene.EventNotification {
		return nil, fmt.Errorf("load %s: %s", o.DatasetID, ev.Message)
	}
	frames := ev.Frames
	log.Printf("replaying %s: %d frames, exporting every %d", o.DatasetID, frames, o.Every)

	var paths []string
	for f := 0; f < frames; f += o.Every {
		if f > 0 {
			if err := sc.Seek(f); err != nil {
				return paths, err
			}
		}
		if err := waitFrame(ctx, events, uint32(f), o.Timeout); err != nil {
			if errors.Is(err, errFrameSkipped) {
				log.Printf("frame %d skipped", f)
				continue
			}
			return paths, err
		}
		if f == 0 {
			if err := sc.ZoomToFit(); err != nil {
				return paths, err
			}
		}
		for _, format := range o.Formats {
			p, err := sc.Export(slam.ExportRequest{Format: format, ViewMode: o.View})
			if err != nil {
				return paths, fmt.Errorf("frame %d: %w", f, err)
			}
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func waitFrame(ctx context.Context, events <-chan scene.Event, frame uint32, timeout time.Duration) error {
	ev, err := waitEvent(ctx, events, timeout, func(ev scene.Event) bool {
		switch ev.Kind {
		case scene.EventFrameLoaded:
			return ev.Playback.CurrentFrame == frame
		case scene.EventNotification:
			return ev.Notification == scene.DataUnavailable
		}
		return false
	})
	if err != nil {
		return err
	}
	if ev.Kind == scene.EventNotification {
		log.Printf("frame %d: %s", frame, ev.Message)
		return errFrameSkipped
	}
	return nil
}

func waitEvent(ctx context.Context, events <-chan scene.Event, timeout time.Duration, match func(scene.Event) bool) (scene.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return scene.Event{}, scene.ErrClosed
			}
			if match(ev) {
				return ev, nil
			}
		case <-timer.C:
			return scene.Event{}, fmt.Errorf("timed out after %v", timeout)
		case <-ctx.Done():
			return scene.Event{}, ctx.Err()
		}
	}
}
