package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// fakeProvider is a two-segment model whose markers sit at (q0, 0, 0) and
// (q0+q1, 0, 0). It counts every query so tests can assert that disabled
// layers are never touched.
type fakeProvider struct {
	q []float64

	kinematicsCalls int
	markerCalls     int
	meshCalls       int
	muscleCalls     int

	// extraMarker simulates a provider whose counts drift after load.
	extraMarker bool
}

func (f *fakeProvider) Topology() Topology {
	return Topology{
		NQ:             2,
		NSegments:      2,
		MarkerSegments: []int{0, 1},
		MeshSegments:   []int{0, 1},
		MeshFaces: [][][3]int{
			{{0, 1, 2}},
			{{0, 1, 2}},
		},
		NMuscles: 1,
	}
}

func (f *fakeProvider) UpdateKinematics(q []float64) error {
	f.kinematicsCalls++
	f.q = append([]float64(nil), q...)
	return nil
}

func (f *fakeProvider) Markers() []r3.Vec {
	f.markerCalls++
	out := []r3.Vec{
		{X: f.q[0]},
		{X: f.q[0] + f.q[1]},
	}
	if f.extraMarker {
		out = append(out, r3.Vec{})
	}
	return out
}

func (f *fakeProvider) CenterOfMass() r3.Vec { return r3.Vec{X: f.q[0] / 2} }

func (f *fakeProvider) SegmentCenterOfMass() []r3.Vec {
	return []r3.Vec{{X: f.q[0] / 2}, {X: f.q[0] + f.q[1]/2}}
}

func (f *fakeProvider) SegmentFrames() []mgl64.Mat4 {
	return []mgl64.Mat4{
		mgl64.Translate3D(f.q[0], 0, 0),
		mgl64.Translate3D(f.q[0]+f.q[1], 0, 0),
	}
}

func (f *fakeProvider) MeshVertices() [][]r3.Vec {
	f.meshCalls++
	return [][]r3.Vec{
		{{X: f.q[0]}, {X: f.q[0] + 1}, {X: f.q[0], Y: 1}},
		{{X: f.q[1]}, {X: f.q[1] + 1}, {X: f.q[1], Y: 1}},
	}
}

func (f *fakeProvider) MusclePaths() [][]r3.Vec {
	f.muscleCalls++
	return [][]r3.Vec{{{X: f.q[0]}, {X: f.q[0] + f.q[1]}}}
}

func (f *fakeProvider) LigamentPaths() [][]r3.Vec   { return nil }
func (f *fakeProvider) Contacts() []r3.Vec          { return nil }
func (f *fakeProvider) SoftContacts() []r3.Vec      { return nil }
func (f *fakeProvider) WrappingVertices() [][]r3.Vec { return nil }
func (f *fakeProvider) Gravity() r3.Vec             { return r3.Vec{Z: -9.81} }

func allLayers() Layers {
	return Layers{
		Markers:             true,
		CenterOfMass:        true,
		SegmentCenterOfMass: true,
		SegmentFrames:       true,
		Meshes:              true,
		Muscles:             true,
		Gravity:             true,
	}
}

func TestApplyPoseWrongDimension(t *testing.T) {
	s := NewSynchronizer(&fakeProvider{}, allLayers(), nil)

	err := s.ApplyPose([]float64{1, 2, 3})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestApplyPoseSingleKinematicsPass(t *testing.T) {
	p := &fakeProvider{}
	s := NewSynchronizer(p, allLayers(), nil)

	require.NoError(t, s.ApplyPose([]float64{0.3, 0.5}))

	assert.Equal(t, 1, p.kinematicsCalls)
	assert.Equal(t, 1, p.markerCalls)
	assert.Equal(t, 1, p.meshCalls)
	assert.Equal(t, 1, p.muscleCalls)

	// No staleness: collections agree with a direct provider query.
	assert.Equal(t, 0.3, s.Markers.At(0).Pos.X)
	assert.Equal(t, 0.8, s.Markers.At(1).Pos.X)
	assert.Equal(t, []float64{0.3, 0.5}, s.Pose().Q())
}

func TestApplyPoseSkipsDisabledLayers(t *testing.T) {
	p := &fakeProvider{}
	show := allLayers()
	show.Meshes = false
	show.Muscles = false
	s := NewSynchronizer(p, show, nil)

	require.NoError(t, s.ApplyPose([]float64{0.1, 0.2}))

	assert.Zero(t, p.meshCalls, "disabled layer must not be queried")
	assert.Zero(t, p.muscleCalls)
	assert.Zero(t, s.Meshes.Len())
}

func TestApplyPoseIdempotent(t *testing.T) {
	p := &fakeProvider{}
	s := NewSynchronizer(p, allLayers(), nil)
	q := []float64{0.25, -0.75}

	require.NoError(t, s.ApplyPose(q))
	first := snapshotMarkers(s)
	gen := s.Markers.Generation()

	require.NoError(t, s.ApplyPose(q))

	assert.Equal(t, first, snapshotMarkers(s), "same pose twice must be bit-identical")
	assert.Equal(t, gen, s.Markers.Generation())
}

func TestApplyPoseTopologyDrift(t *testing.T) {
	p := &fakeProvider{}
	s := NewSynchronizer(p, allLayers(), nil)
	require.NoError(t, s.ApplyPose([]float64{0, 0}))

	p.extraMarker = true
	err := s.ApplyPose([]float64{0, 0})
	require.ErrorIs(t, err, ErrTopologyMismatch)
}

func TestToggleSegmentsHidesOwnedGeometry(t *testing.T) {
	p := &fakeProvider{}
	s := NewSynchronizer(p, allLayers(), nil)
	require.NoError(t, s.ApplyPose([]float64{0.3, 0.5}))

	require.NoError(t, s.ToggleSegments(1))

	assert.True(t, s.SegmentVisible(0))
	assert.False(t, s.SegmentVisible(1))
	assert.False(t, math.IsNaN(s.Markers.At(0).Pos.X))
	assert.True(t, math.IsNaN(s.Markers.At(1).Pos.X))
	assert.True(t, math.IsNaN(s.Meshes.At(1).Vertices[0].X))
	assert.True(t, math.IsNaN(s.SegmentFrames.At(1).Transform[0]))
	assert.True(t, math.IsNaN(s.SegmentCenterOfMass.At(1).Pos.X))

	// Toggling back restores the real geometry in the same pass.
	require.NoError(t, s.ToggleSegments(1))
	assert.Equal(t, 0.8, s.Markers.At(1).Pos.X)
	assert.Equal(t, 0.5, s.Meshes.At(1).Vertices[0].X)

	require.ErrorIs(t, s.ToggleSegments(7), ErrShapeMismatch)
}

func TestUpdateExperimentalMarkersFollowsCaptureCount(t *testing.T) {
	s := NewSynchronizer(&fakeProvider{}, allLayers(), nil)

	require.NoError(t, s.UpdateExperimentalMarkers([]r3.Vec{{X: 1}, {X: 2}, {X: 3}}))
	assert.Equal(t, 3, s.ExperimentalMarkers.Len())

	// A different capture size is a transparent recreation.
	require.NoError(t, s.UpdateExperimentalMarkers([]r3.Vec{{X: 4}}))
	assert.Equal(t, 1, s.ExperimentalMarkers.Len())
}

func TestGravityArrowFromCenterOfMass(t *testing.T) {
	p := &fakeProvider{}
	s := NewSynchronizer(p, allLayers(), nil)
	s.GravityScale = 0.1

	require.NoError(t, s.ApplyPose([]float64{1, 0}))

	arrow := s.GravityArrow.At(0)
	assert.Equal(t, 0.5, arrow.Application.X)
	assert.InDelta(t, -0.981, arrow.Tip.Z, 1e-12)
}

func snapshotMarkers(s *Synchronizer) []r3.Vec {
	out := make([]r3.Vec, s.Markers.Len())
	for i := range out {
		out[i] = s.Markers.At(i).Pos
	}
	return out
}
