package framestore

import (
	"fmt"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamview/internal/monitoring"
	"github.com/banshee-data/slamview/internal/slam"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return &lines
}

func threePoses() slam.Trajectory {
	traj, _ := slam.NewTrajectory(
		[]r3.Vector{{}, {X: 1}, {X: 2}},
		[][3][3]float64{slam.IdentityRotation, slam.IdentityRotation, slam.IdentityRotation},
	)
	return traj
}

func TestNew_FreshSession(t *testing.T) {
	a, b := New("ds"), New("ds")
	assert.NotEqual(t, a.Session(), b.Session())
	assert.Equal(t, "ds", a.DatasetID())
	assert.Nil(t, a.Batch())
	assert.Nil(t, a.Pose(0))
}

func TestAccept_LastSeekWins(t *testing.T) {
	s := New("ds")
	s.SetTrajectory(threePoses())

	s.SetCurrentFrame(1)
	first := s.BeginFetch(1)
	s.SetCurrentFrame(2)
	second := s.BeginFetch(2)

	// the second fetch completes first
	require.True(t, s.Accept(second, &slam.PointBatch{FrameIndex: 2}))
	assert.False(t, s.Accept(first, &slam.PointBatch{FrameIndex: 1}))
	assert.Equal(t, uint32(2), s.Batch().FrameIndex)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestAccept_RejectsOtherSessionAndMismatchedBatch(t *testing.T) {
	old, s := New("a"), New("b")
	tok := old.BeginFetch(0)
	assert.False(t, s.Accept(tok, &slam.PointBatch{}))

	tok = s.BeginFetch(0)
	assert.False(t, s.Accept(tok, &slam.PointBatch{FrameIndex: 3}))
	assert.False(t, s.Accept(tok, nil))
	assert.Nil(t, s.Batch())
}

func TestAccept_ClearsSelection(t *testing.T) {
	s := New("ds")
	require.True(t, s.Accept(s.BeginFetch(0), &slam.PointBatch{Points: []slam.Point3D{{X: 2}}}))
	s.SetSelection(&slam.Selection{Position: r3.Vector{X: 2}})
	require.NotNil(t, s.Selection())

	require.True(t, s.Accept(s.BeginFetch(0), &slam.PointBatch{}))
	assert.Nil(t, s.Selection())
}

func TestSetTrajectory_RenumbersAndServesPoses(t *testing.T) {
	s := New("ds")
	traj := threePoses()
	traj[2].FrameIndex = 40
	s.SetTrajectory(traj)

	require.Equal(t, 3, s.Len())
	p := s.Pose(2)
	require.NotNil(t, p)
	assert.Equal(t, uint32(2), p.FrameIndex)
	assert.Equal(t, r3.Vector{X: 2}, p.Position)
	assert.Nil(t, s.Pose(3))
	assert.Equal(t, uint32(40), traj[2].FrameIndex, "input is not mutated")
}

func TestSetTrajectory_LogsMalformedRotations(t *testing.T) {
	logs := captureLogs(t)
	s := New("ds")
	traj := threePoses()
	traj[1].Rotation = [3][3]float64{{2, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	traj[2].Rotation = [3][3]float64{}
	s.SetTrajectory(traj)

	require.Len(t, *logs, 2)
	assert.Contains(t, (*logs)[0], "[framestore] dataset ds frame 1: rotation not orthonormal")
	assert.Contains(t, (*logs)[1], "2 poses")
	// kept as delivered
	assert.Equal(t, 2.0, s.Pose(1).Rotation[0][0])
}
