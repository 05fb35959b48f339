// Package slam defines the frame-indexed data model shared by the preview
// core: sensor points, poses, trajectories, point batches and the view and
// colour modes that select how they are drawn.
//
// The sub-packages implement the pipeline stages:
//
//	framestore  current dataset session, trajectory, point batch and frame index
//	coords      sensor -> camera -> display frame conversions
//	colorize    scalar -> RGB mapping per colour mode
//	layers      renderable point-cloud and trajectory buffers
//	picking     ray / point selection
//	camera      per-panel orbit/pan/zoom state and presets
//	playback    play/pause/seek state machine
//	render      software rasteriser
//	export      png / ply / json exports
//	scene       the single-goroutine loop tying the stages together
package slam
