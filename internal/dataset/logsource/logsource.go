// Package logsource stores a dataset as an on-disk log and serves it back as
// a dataset.Source.
//
// Layout of a log directory:
//
//	header.json          dataset id, frame count, sensors
//	trajectory.json      dataset.TrajectoryResponse
//	index.bin            little-endian {frame u32, chunk u32, offset u32} per frame
//	frames/chunk_NNNN.frames
//
// Chunk files hold ChunkSize length-prefixed JSON frame records each.
package logsource

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/monitoring"
)

// ChunkSize is the number of frames per chunk file.
const ChunkSize = 500

const formatVersion = "1.0"

var logf = monitoring.Tagged("logsource")

// Header describes a recorded dataset.
type Header struct {
	Version     string   `json:"version"`
	DatasetID   string   `json:"dataset_id"`
	CreatedNs   int64    `json:"created_ns"`
	TotalFrames uint32   `json:"total_frames"`
	Sensors     []string `json:"sensors,omitempty"`
}

// indexEntry locates one frame record.
type indexEntry struct {
	Frame   uint32
	ChunkID uint32
	Offset  uint32
}

// frameRecord is the JSON payload stored per frame.
type frameRecord struct {
	Frame  uint32              `json:"frame"`
	Points dataset.FramePoints `json:"points"`
	Images map[string][]byte   `json:"images,omitempty"`
}

func chunkPath(base string, id int) string {
	return filepath.Join(base, "frames", fmt.Sprintf("chunk_%04d.frames", id))
}

// Recorder writes frames in order to a log directory.
type Recorder struct {
	basePath string
	header   Header
	sensors  map[string]bool

	index        []indexEntry
	currentChunk int
	chunkFile    *os.File
	chunkOffset  uint32
	trajectory   *dataset.TrajectoryResponse

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates the log directory and returns a Recorder for it.
func NewRecorder(basePath, datasetID string) (*Recorder, error) {
	if basePath == "" {
		return nil, errors.New("log directory required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Recorder{
		basePath:     basePath,
		currentChunk: -1,
		sensors:      make(map[string]bool),
		header: Header{
			Version:   formatVersion,
			DatasetID: datasetID,
			CreatedNs: time.Now().UnixNano(),
		},
	}, nil
}

// SetTrajectory stores the trajectory written on Close.
func (r *Recorder) SetTrajectory(traj dataset.TrajectoryResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trajectory = &traj
}

// Record appends the next frame. Frames must be recorded in order starting
// at 0. images maps sensor name to encoded image bytes and may be nil.
func (r *Recorder) Record(points dataset.FramePoints, images map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if err := points.Validate(); err != nil {
		return err
	}

	frame := uint32(len(r.index))
	chunkIdx := int(frame / ChunkSize)
	if chunkIdx != r.currentChunk {
		if err := r.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(frameRecord{Frame: frame, Points: points, Images: images})
	if err != nil {
		return fmt.Errorf("failed to serialize frame: %w", err)
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := r.chunkFile.Write(lenBuf); err != nil {
		return fmt.Errorf("failed to write frame length: %w", err)
	}
	if _, err := r.chunkFile.Write(data); err != nil {
		return fmt.Errorf("failed to write frame data: %w", err)
	}

	r.index = append(r.index, indexEntry{Frame: frame, ChunkID: uint32(chunkIdx), Offset: r.chunkOffset})
	r.chunkOffset += uint32(4 + len(data))
	for s := range images {
		r.sensors[s] = true
	}
	return nil
}

func (r *Recorder) rotateChunk(chunkIdx int) error {
	if r.chunkFile != nil {
		if err := r.chunkFile.Close(); err != nil {
			return err
		}
	}
	f, err := os.Create(chunkPath(r.basePath, chunkIdx))
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	r.chunkFile = f
	r.currentChunk = chunkIdx
	r.chunkOffset = 0
	return nil
}

// Close writes the header, trajectory and index.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.chunkFile != nil {
		if err := r.chunkFile.Close(); err != nil {
			return fmt.Errorf("failed to close chunk: %w", err)
		}
	}

	r.header.TotalFrames = uint32(len(r.index))
	for s := range r.sensors {
		r.header.Sensors = append(r.header.Sensors, s)
	}
	sort.Strings(r.header.Sensors)

	if err := writeJSON(filepath.Join(r.basePath, "header.json"), r.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	traj := dataset.TrajectoryResponse{Trajectory: []dataset.TrajectoryEntry{}}
	if r.trajectory != nil {
		traj = *r.trajectory
	}
	if err := writeJSON(filepath.Join(r.basePath, "trajectory.json"), traj); err != nil {
		return fmt.Errorf("failed to write trajectory: %w", err)
	}

	indexFile, err := os.Create(filepath.Join(r.basePath, "index.bin"))
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer indexFile.Close()
	if err := binary.Write(indexFile, binary.LittleEndian, r.index); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	logf("wrote %s: %d frames, %d poses", r.basePath, r.header.TotalFrames, len(traj.Trajectory))
	return nil
}

// Path returns the log directory.
func (r *Recorder) Path() string { return r.basePath }

// FrameCount returns the number of frames recorded so far.
func (r *Recorder) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Reader serves a recorded log. It is safe for concurrent use.
type Reader struct {
	basePath   string
	header     Header
	index      []indexEntry
	trajectory dataset.TrajectoryResponse

	mu           sync.Mutex
	currentChunk int
	chunkData    []byte
}

// Open loads a log's header, trajectory and index.
func Open(basePath string) (*Reader, error) {
	r := &Reader{basePath: basePath, currentChunk: -1}

	headerData, err := os.ReadFile(filepath.Join(basePath, "header.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerData, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	trajData, err := os.ReadFile(filepath.Join(basePath, "trajectory.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read trajectory: %w", err)
	}
	if err := json.Unmarshal(trajData, &r.trajectory); err != nil {
		return nil, fmt.Errorf("failed to parse trajectory: %w", err)
	}

	indexFile, err := os.Open(filepath.Join(basePath, "index.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer indexFile.Close()

	r.index = make([]indexEntry, 0, r.header.TotalFrames)
	for {
		var e indexEntry
		if err := binary.Read(indexFile, binary.LittleEndian, &e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read index: %w", err)
		}
		r.index = append(r.index, e)
	}
	if uint32(len(r.index)) != r.header.TotalFrames {
		return nil, fmt.Errorf("index has %d entries, header says %d frames", len(r.index), r.header.TotalFrames)
	}
	return r, nil
}

// Header returns the log header.
func (r *Reader) Header() Header { return r.header }

func (r *Reader) readFrame(datasetID string, frame uint32) (*frameRecord, error) {
	if datasetID != r.header.DatasetID {
		return nil, fmt.Errorf("dataset %q: %w", datasetID, dataset.ErrNotFound)
	}
	if int(frame) >= len(r.index) {
		return nil, fmt.Errorf("dataset %q frame %d: %w", datasetID, frame, dataset.ErrNotFound)
	}
	entry := r.index[frame]

	r.mu.Lock()
	if int(entry.ChunkID) != r.currentChunk {
		data, err := os.ReadFile(chunkPath(r.basePath, int(entry.ChunkID)))
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("failed to read chunk %d: %v: %w", entry.ChunkID, err, dataset.ErrUnavailable)
		}
		r.chunkData = data
		r.currentChunk = int(entry.ChunkID)
	}
	chunk := r.chunkData
	r.mu.Unlock()

	// bounds are checked in 64 bits so a corrupt length cannot wrap
	offset := uint64(entry.Offset)
	if offset+4 > uint64(len(chunk)) {
		return nil, fmt.Errorf("frame %d: invalid offset: %w", frame, dataset.ErrUnavailable)
	}
	n := uint64(binary.LittleEndian.Uint32(chunk[offset:]))
	offset += 4
	if offset+n > uint64(len(chunk)) {
		return nil, fmt.Errorf("frame %d: invalid length %d: %w", frame, n, dataset.ErrUnavailable)
	}

	var rec frameRecord
	if err := json.Unmarshal(chunk[offset:offset+n], &rec); err != nil {
		return nil, fmt.Errorf("frame %d: failed to deserialize: %v: %w", frame, err, dataset.ErrUnavailable)
	}
	return &rec, nil
}

// FramePoints implements dataset.Source.
func (r *Reader) FramePoints(ctx context.Context, datasetID string, frame uint32, resolution int) (dataset.FramePoints, error) {
	if err := ctx.Err(); err != nil {
		return dataset.FramePoints{}, err
	}
	rec, err := r.readFrame(datasetID, frame)
	if err != nil {
		return dataset.FramePoints{}, err
	}
	return rec.Points.Sample(resolution), nil
}

// Trajectory implements dataset.Source.
func (r *Reader) Trajectory(ctx context.Context, datasetID string) (dataset.TrajectoryResponse, error) {
	if err := ctx.Err(); err != nil {
		return dataset.TrajectoryResponse{}, err
	}
	if datasetID != r.header.DatasetID {
		return dataset.TrajectoryResponse{}, fmt.Errorf("dataset %q: %w", datasetID, dataset.ErrNotFound)
	}
	return r.trajectory, nil
}

// FrameImage implements dataset.Source.
func (r *Reader) FrameImage(ctx context.Context, datasetID string, frame uint32, sensor string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.readFrame(datasetID, frame)
	if err != nil {
		return nil, err
	}
	img, ok := rec.Images[sensor]
	if !ok {
		return nil, fmt.Errorf("frame %d has no image from %q: %w", frame, sensor, dataset.ErrNotFound)
	}
	return img, nil
}
