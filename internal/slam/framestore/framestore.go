// Package framestore holds the data of one loaded dataset: its trajectory,
// the point batch of the current frame and the current selection.
//
// A Store is created when a dataset is selected and replaced when another is
// selected. Each Store has its own session id; fetches are tagged with the
// session and frame they were issued for, and a completed fetch is accepted
// only if both still match, so the last seek wins.
package framestore

import (
	"github.com/google/uuid"

	"github.com/banshee-data/slamview/internal/monitoring"
	"github.com/banshee-data/slamview/internal/slam"
	"github.com/banshee-data/slamview/internal/slam/coords"
)

// rotation tolerance for the malformed-pose diagnostic
const orthonormalTol = 1e-6

var logf = monitoring.Tagged("framestore")

// Token identifies one outstanding fetch.
type Token struct {
	Session uuid.UUID
	Frame   uint32
	Seq     uint64
}

// Store is owned by the scene loop and does no locking.
type Store struct {
	session   uuid.UUID
	datasetID string

	traj      slam.Trajectory
	batch     *slam.PointBatch
	current   uint32
	seq       uint64
	selection *slam.Selection
}

// New returns an empty store for a dataset with a fresh session id.
func New(datasetID string) *Store {
	return &Store{session: uuid.New(), datasetID: datasetID}
}

// Session returns the store's session id.
func (s *Store) Session() uuid.UUID { return s.session }

// DatasetID returns the dataset this store was created for.
func (s *Store) DatasetID() string { return s.datasetID }

// SetTrajectory installs the dataset trajectory, renumbering frame indices
// to array order. Rotations that are not orthonormal are logged and kept.
func (s *Store) SetTrajectory(traj slam.Trajectory) {
	out := make(slam.Trajectory, len(traj))
	bad := 0
	for i, p := range traj {
		p.FrameIndex = uint32(i)
		out[i] = p
		if !coords.IsRotation(p, orthonormalTol) {
			if bad == 0 {
				logf("dataset %s frame %d: rotation not orthonormal (|RtR-I|=%.3g)",
					s.datasetID, i, coords.OrthonormalityError(p))
			}
			bad++
		}
	}
	if bad > 1 {
		logf("dataset %s: %d poses with malformed rotations", s.datasetID, bad)
	}
	s.traj = out
}

// Trajectory returns the installed trajectory.
func (s *Store) Trajectory() slam.Trajectory { return s.traj }

// Len returns the number of frames in the trajectory.
func (s *Store) Len() int { return len(s.traj) }

// Pose returns the pose of a frame, or nil when the trajectory has none.
func (s *Store) Pose(frame uint32) *slam.Pose {
	p, ok := s.traj.At(frame)
	if !ok {
		return nil
	}
	return &p
}

// SetCurrentFrame records the frame the viewer is showing.
func (s *Store) SetCurrentFrame(frame uint32) { s.current = frame }

// CurrentFrame returns the frame the viewer is showing.
func (s *Store) CurrentFrame() uint32 { return s.current }

// BeginFetch issues a token for fetching a frame.
func (s *Store) BeginFetch(frame uint32) Token {
	s.seq++
	return Token{Session: s.session, Frame: frame, Seq: s.seq}
}

// Accept installs a fetched batch. It reports false, leaving the store
// untouched, when the token is from another session, its frame is no longer
// current, or the batch is for a different frame. Accepting clears the
// selection.
func (s *Store) Accept(tok Token, batch *slam.PointBatch) bool {
	switch {
	case tok.Session != s.session:
		logf("fetch for frame %d from another session discarded", tok.Frame)
		return false
	case tok.Frame != s.current:
		logf("fetch frame %d discarded (current %d)", tok.Frame, s.current)
		return false
	case batch == nil || batch.FrameIndex != tok.Frame:
		logf("fetch frame %d returned a batch for another frame", tok.Frame)
		return false
	}
	s.batch = batch
	s.selection = nil
	return true
}

// Batch returns the most recently accepted batch, or nil.
func (s *Store) Batch() *slam.PointBatch { return s.batch }

// Selection returns the current selection, or nil.
func (s *Store) Selection() *slam.Selection { return s.selection }

// SetSelection replaces the selection; nil clears it.
func (s *Store) SetSelection(sel *slam.Selection) { s.selection = sel }
