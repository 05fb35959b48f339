// Package playback is the frame-index state machine behind the timeline.
//
// There are two states, Stopped and Playing. A tick while Playing advances
// one frame; a tick that would pass the last frame stops playback and leaves
// the index on the last frame. Playing again from there starts over at frame
// 0. Seeks clamp into range, never change the play state, and always ask for
// a refresh.
package playback

import (
	"time"

	"github.com/banshee-data/slamview/internal/monitoring"
	"github.com/banshee-data/slamview/internal/slam"
)

// DefaultSpeed is the tick interval used when none is configured.
const DefaultSpeed = 100 * time.Millisecond

var logf = monitoring.Tagged("playback")

// Controller holds the playback state. It is driven from a single goroutine
// and does no locking.
type Controller struct {
	current  uint32
	maxFrame uint32
	playing  bool
	speed    time.Duration

	// set when a tick ran off the end; cleared by seek
	ended bool
}

// New returns a stopped controller at frame 0 with bounds [0, maxFrame].
func New(speed time.Duration, maxFrame uint32) *Controller {
	c := &Controller{maxFrame: maxFrame}
	c.SetSpeed(speed)
	return c
}

// State returns a snapshot.
func (c *Controller) State() slam.PlaybackState {
	return slam.PlaybackState{
		CurrentFrame:    c.current,
		Playing:         c.playing,
		SpeedMsPerFrame: uint32(c.speed / time.Millisecond),
		MaxFrame:        c.maxFrame,
	}
}

// Current returns the current frame index.
func (c *Controller) Current() uint32 { return c.current }

// Playing reports whether the controller is in the Playing state.
func (c *Controller) Playing() bool { return c.playing }

// Interval returns the tick interval.
func (c *Controller) Interval() time.Duration { return c.speed }

// SetBounds sets the timeline to a sequence of n frames and clamps the
// current frame into it. An empty sequence has the single frame 0.
func (c *Controller) SetBounds(n int) {
	c.maxFrame = 0
	if n > 1 {
		c.maxFrame = uint32(n - 1)
	}
	if c.current > c.maxFrame {
		c.current = c.maxFrame
	}
	c.ended = false
}

// Play enters the Playing state. It reports whether the frame changed, which
// only happens when replaying after the end was reached.
func (c *Controller) Play() (frameChanged bool) {
	if c.ended {
		c.ended = false
		frameChanged = c.current != 0
		c.current = 0
		logf("replay from frame 0")
	}
	if !c.playing {
		logf("play from frame %d at %v/frame", c.current, c.speed)
	}
	c.playing = true
	return frameChanged
}

// Pause enters the Stopped state, keeping the current frame.
func (c *Controller) Pause() {
	if c.playing {
		logf("paused at frame %d", c.current)
	}
	c.playing = false
}

// Stop is Pause; it exists so callers can name the intent.
func (c *Controller) Stop() { c.Pause() }

// Seek clamps frame into [0, max] and makes it current. The play state is
// unchanged. The returned frame is the clamped index, which always needs a
// refresh.
func (c *Controller) Seek(frame int) uint32 {
	target := uint32(0)
	switch {
	case frame <= 0:
	case uint64(frame) > uint64(c.maxFrame):
		target = c.maxFrame
	default:
		target = uint32(frame)
	}
	logf("seek %d -> %d", frame, target)
	c.current = target
	c.ended = false
	return target
}

// Tick advances one frame while Playing. It reports whether the frame
// changed. Running past the last frame stops playback instead.
func (c *Controller) Tick() (advanced bool) {
	if !c.playing {
		return false
	}
	if c.current >= c.maxFrame {
		c.playing = false
		c.ended = true
		logf("end of sequence at frame %d", c.current)
		return false
	}
	c.current++
	return true
}

// SetSpeed sets the tick interval. Values below one millisecond use
// DefaultSpeed.
func (c *Controller) SetSpeed(d time.Duration) {
	if d < time.Millisecond {
		d = DefaultSpeed
	}
	c.speed = d
}
