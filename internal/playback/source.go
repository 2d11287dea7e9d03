// Package playback owns the frame cursor: which pose of a loaded movement
// is current, the trim bounds, the event ledger and the recording state.
// It never touches geometry; the viewer feeds the cursor's pose to the
// scene synchronizer.
package playback

import "gonum.org/v1/gonum/mat"

// Source wraps a loaded movement matrix and an optional experimental
// capture length. The two streams share one cursor, so the total length is
// whichever is longer.
type Source struct {
	motion             *mat.Dense // frames x nQ, nil when only a capture is loaded
	experimentalFrames int
}

// NewSource builds a source from a movement matrix (may be nil) and the
// number of experimental capture frames (0 when none).
func NewSource(motion *mat.Dense, experimentalFrames int) *Source {
	return &Source{motion: motion, experimentalFrames: experimentalFrames}
}

// HasMotion reports whether a movement matrix is loaded.
func (s *Source) HasMotion() bool { return s.motion != nil }

// MotionFrames returns the number of movement frames.
func (s *Source) MotionFrames() int {
	if s.motion == nil {
		return 0
	}
	frames, _ := s.motion.Dims()
	return frames
}

// ExperimentalFrames returns the number of capture frames.
func (s *Source) ExperimentalFrames() int { return s.experimentalFrames }

// Frames returns the total playable length.
func (s *Source) Frames() int {
	if n := s.MotionFrames(); n > s.experimentalFrames {
		return n
	}
	return s.experimentalFrames
}

// NQ returns the pose dimension of the movement, 0 when none is loaded.
func (s *Source) NQ() int {
	if s.motion == nil {
		return 0
	}
	_, nq := s.motion.Dims()
	return nq
}

// PoseAt returns the pose at 1-based frame i. Indices are clamped, so a
// capture longer than the movement holds the last pose instead of failing.
func (s *Source) PoseAt(i int) []float64 {
	if s.motion == nil {
		return nil
	}
	frames, nq := s.motion.Dims()
	if i < 1 {
		i = 1
	}
	if i > frames {
		i = frames
	}
	out := make([]float64, nq)
	mat.Row(out, i-1, s.motion)
	return out
}
