package playback

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/slam"
)

func TestSeek_Clamps(t *testing.T) {
	c := New(DefaultSpeed, 9)
	tests := []struct {
		in   int
		want uint32
	}{
		{-1, 0},
		{math.MinInt, 0},
		{0, 0},
		{4, 4},
		{9, 9},
		{10, 9},
		{math.MaxInt, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Seek(tt.in), "seek(%d)", tt.in)
		assert.Equal(t, tt.want, c.Current())
	}
}

func TestSeek_WhilePlayingKeepsPlaying(t *testing.T) {
	c := New(DefaultSpeed, 9)
	c.Play()
	c.Seek(5)
	assert.True(t, c.Playing())
	require.True(t, c.Tick())
	assert.Equal(t, uint32(6), c.Current())
}

func TestTick_OnlyWhilePlaying(t *testing.T) {
	c := New(DefaultSpeed, 3)
	assert.False(t, c.Tick())
	assert.Equal(t, uint32(0), c.Current())

	c.Play()
	assert.True(t, c.Tick())
	c.Pause()
	assert.False(t, c.Tick())
	assert.Equal(t, uint32(1), c.Current())
}

func TestTick_StopsAtEndAndReplaysFromStart(t *testing.T) {
	c := New(DefaultSpeed, 2)
	c.Seek(2)
	c.Play()

	assert.False(t, c.Tick())
	assert.False(t, c.Playing())
	assert.Equal(t, uint32(2), c.Current())

	// still parked on the last frame
	assert.False(t, c.Tick())
	assert.Equal(t, uint32(2), c.Current())

	assert.True(t, c.Play())
	assert.True(t, c.Playing())
	assert.Equal(t, uint32(0), c.Current())
}

func TestPlay_AfterSeekFromEndDoesNotRewind(t *testing.T) {
	c := New(DefaultSpeed, 2)
	c.Play()
	c.Tick()
	c.Tick()
	c.Tick() // runs off the end
	require.False(t, c.Playing())

	c.Seek(1)
	assert.False(t, c.Play())
	assert.Equal(t, uint32(1), c.Current())
}

func TestFullRun(t *testing.T) {
	c := New(DefaultSpeed, 4)
	c.Play()
	var seen []uint32
	for c.Tick() {
		seen = append(seen, c.Current())
	}
	assert.Equal(t, []uint32{1, 2, 3, 4}, seen)
	assert.Equal(t, slam.PlaybackState{CurrentFrame: 4, SpeedMsPerFrame: 100, MaxFrame: 4}, c.State())
}

func TestSetBounds(t *testing.T) {
	c := New(DefaultSpeed, 100)
	c.Seek(50)
	c.SetBounds(10)
	assert.Equal(t, uint32(9), c.Current())
	assert.Equal(t, uint32(9), c.State().MaxFrame)

	c.SetBounds(0)
	assert.Equal(t, uint32(0), c.State().MaxFrame)
	assert.Equal(t, uint32(0), c.Seek(3))
}

func TestStop(t *testing.T) {
	c := New(DefaultSpeed, 5)
	c.Play()
	c.Tick()
	c.Stop()
	assert.False(t, c.Playing())
	assert.Equal(t, uint32(1), c.Current())
}

func TestSetSpeed(t *testing.T) {
	c := New(0, 5)
	assert.Equal(t, DefaultSpeed, c.Interval())

	c.SetSpeed(40 * time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, c.Interval())
	assert.Equal(t, uint32(40), c.State().SpeedMsPerFrame)

	c.SetSpeed(-time.Second)
	assert.Equal(t, DefaultSpeed, c.Interval())
}
