package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Topology is the static shape of a model, fixed at load time. The
// synchronizer checks every geometry query against it and refuses to
// truncate or pad when a provider's counts drift.
type Topology struct {
	NQ        int
	NSegments int

	// Owning segment per model marker and per mesh patch, used to
	// tombstone geometry belonging to hidden segments.
	MarkerSegments []int
	MeshSegments   []int

	// Static triangulation per mesh patch and per wrapping surface.
	MeshFaces     [][][3]int
	WrappingFaces [][][3]int

	SoftContactRadii []float64

	NMuscles   int
	NLigaments int
	NContacts  int
}

// GeometryProvider supplies posed geometry. After a single
// UpdateKinematics call every query is a pure read of that pose; the
// synchronizer calls UpdateKinematics exactly once per applied pose and
// only queries the layers that are enabled.
type GeometryProvider interface {
	Topology() Topology
	UpdateKinematics(q []float64) error

	Markers() []r3.Vec
	CenterOfMass() r3.Vec
	SegmentCenterOfMass() []r3.Vec
	SegmentFrames() []mgl64.Mat4
	MeshVertices() [][]r3.Vec
	MusclePaths() [][]r3.Vec
	LigamentPaths() [][]r3.Vec
	Contacts() []r3.Vec
	SoftContacts() []r3.Vec
	WrappingVertices() [][]r3.Vec
	Gravity() r3.Vec
}
