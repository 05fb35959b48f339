package scene

import (
	"fmt"

	"github.com/banshee-data/slamview/internal/slam"
)

// EventKind tells the shell what changed.
type EventKind int

const (
	// EventDatasetLoaded fires once a dataset's trajectory is installed.
	EventDatasetLoaded EventKind = iota
	// EventPlayback carries the playback state after any frame or play state change.
	EventPlayback
	// EventFrameLoaded fires when a fetched point batch is accepted.
	EventFrameLoaded
	// EventSelection carries the new selection, nil when cleared.
	EventSelection
	// EventExported carries the path of a written export.
	EventExported
	// EventNotification carries a one-line user-facing message.
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventDatasetLoaded:
		return "dataset-loaded"
	case EventPlayback:
		return "playback"
	case EventFrameLoaded:
		return "frame-loaded"
	case EventSelection:
		return "selection"
	case EventExported:
		return "exported"
	case EventNotification:
		return "notification"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// NotificationKind classifies recoverable failures.
type NotificationKind int

const (
	NotifyNone NotificationKind = iota
	// DataUnavailable: a fetch failed, the dataset lacks a sensor, or a
	// frame has no pose. The last good buffer stays on screen.
	DataUnavailable
	// ExportFailed: an export request could not be written.
	ExportFailed
)

func (k NotificationKind) String() string {
	switch k {
	case DataUnavailable:
		return "data-unavailable"
	case ExportFailed:
		return "export-failed"
	default:
		return "none"
	}
}

func (k NotificationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is published on the scene's event stream.
type Event struct {
	Kind         EventKind          `json:"kind"`
	DatasetID    string             `json:"dataset_id,omitempty"`
	Playback     slam.PlaybackState `json:"playback"`
	Frames       int                `json:"frames,omitempty"` // EventDatasetLoaded
	Points       int                `json:"points,omitempty"` // EventFrameLoaded
	Selection    *slam.Selection    `json:"selection,omitempty"`
	Path         string             `json:"path,omitempty"` // EventExported
	Notification NotificationKind   `json:"notification,omitempty"`
	Message      string             `json:"message,omitempty"`
}

const eventBuffer = 256

// emit publishes without blocking the loop; a full stream drops the event.
func (s *Scene) emit(ev Event) {
	if ev.DatasetID == "" && s.store != nil {
		ev.DatasetID = s.store.DatasetID()
	}
	select {
	case s.events <- ev:
	default:
		logf("event stream full, dropped %s event", ev.Kind)
	}
}

func (s *Scene) notify(kind NotificationKind, format string, v ...interface{}) {
	ev := Event{Kind: EventNotification, Notification: kind, Message: fmt.Sprintf(format, v...)}
	logf("%s: %s", kind, ev.Message)
	s.emit(ev)
}

func (s *Scene) emitPlayback() {
	s.emit(Event{Kind: EventPlayback, Playback: s.play.State()})
}
