package scene

// PoseState holds the current generalized-coordinate vector. It is only
// written by Synchronizer.ApplyPose, so the stored pose always matches what
// the collections were last synchronized to.
type PoseState struct {
	q []float64
}

// NewPoseState creates a zero pose of dimension n.
func NewPoseState(n int) *PoseState {
	return &PoseState{q: make([]float64, n)}
}

// Len returns the pose dimension.
func (s *PoseState) Len() int { return len(s.q) }

// Q returns a copy of the current pose.
func (s *PoseState) Q() []float64 {
	out := make([]float64, len(s.q))
	copy(out, s.q)
	return out
}

// At returns one coordinate.
func (s *PoseState) At(i int) float64 { return s.q[i] }

func (s *PoseState) set(q []float64) {
	s.q = append(s.q[:0], q...)
}
