package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Default primitive sizes, in meters.
const (
	defaultMarkerRadius     = 0.010
	defaultExpMarkerRadius  = 0.010
	defaultContactRadius    = 0.010
	defaultGlobalCoMRadius  = 0.0205
	defaultSegmentCoMRadius = 0.005
	defaultAxesLength       = 0.10
	defaultMuscleWidth      = 5
	defaultGravityScale     = 0.02
)

// Layers selects which geometry layers ApplyPose refreshes. A disabled
// layer is never queried on the provider.
type Layers struct {
	Markers             bool
	ExperimentalMarkers bool
	CenterOfMass        bool
	SegmentCenterOfMass bool
	SegmentFrames       bool
	Meshes              bool
	Muscles             bool
	Ligaments           bool
	Contacts            bool
	SoftContacts        bool
	Wrappings           bool
	Forces              bool
	Gravity             bool
	Floor               bool
}

// Synchronizer drives every collection from one pose vector. ApplyPose is
// the only write path: one kinematics update on the provider, then one
// geometry query per enabled layer, with hidden segments written as NaN in
// the same pass.
type Synchronizer struct {
	provider       GeometryProvider
	topo           Topology
	pose           *PoseState
	segmentVisible []bool

	// Show is read at every ApplyPose; callers toggle layers directly.
	Show Layers

	GravityScale float64

	Markers             *Collection[*Point]
	ExperimentalMarkers *Collection[*Point]
	CenterOfMass        *Collection[*Point]
	SegmentCenterOfMass *Collection[*Point]
	SegmentFrames       *Collection[*AxesFrame]
	Meshes              *Collection[*MeshPatch]
	Muscles             *Collection[*PolyLine]
	Ligaments           *Collection[*PolyLine]
	Contacts            *Collection[*Point]
	SoftContacts        *Collection[*Point]
	Wrappings           *Collection[*MeshPatch]
	Forces              *Collection[*Arrow]
	GravityArrow        *Collection[*Arrow]
	Floor               *Collection[*MeshPatch]
}

// NewSynchronizer captures the provider's topology and creates empty
// collections for every layer. All segments start visible.
func NewSynchronizer(provider GeometryProvider, show Layers, redraw Redrawer) *Synchronizer {
	topo := provider.Topology()
	visible := make([]bool, topo.NSegments)
	for i := range visible {
		visible[i] = true
	}
	return &Synchronizer{
		provider:       provider,
		topo:           topo,
		pose:           NewPoseState(topo.NQ),
		segmentVisible: visible,
		Show:           show,
		GravityScale:   defaultGravityScale,

		Markers:             NewCollection[*Point]("markers", redraw),
		ExperimentalMarkers: NewCollection[*Point]("experimental markers", redraw),
		CenterOfMass:        NewCollection[*Point]("center of mass", redraw),
		SegmentCenterOfMass: NewCollection[*Point]("segment centers of mass", redraw),
		SegmentFrames:       NewCollection[*AxesFrame]("segment frames", redraw),
		Meshes:              NewCollection[*MeshPatch]("meshes", redraw),
		Muscles:             NewCollection[*PolyLine]("muscles", redraw),
		Ligaments:           NewCollection[*PolyLine]("ligaments", redraw),
		Contacts:            NewCollection[*Point]("contacts", redraw),
		SoftContacts:        NewCollection[*Point]("soft contacts", redraw),
		Wrappings:           NewCollection[*MeshPatch]("wrapping surfaces", redraw),
		Forces:              NewCollection[*Arrow]("forces", redraw),
		GravityArrow:        NewCollection[*Arrow]("gravity", redraw),
		Floor:               NewCollection[*MeshPatch]("floor", redraw),
	}
}

// Topology returns the load-time topology the synchronizer validates
// against.
func (s *Synchronizer) Topology() Topology { return s.topo }

// Pose returns the pose the collections were last synchronized to.
func (s *Synchronizer) Pose() *PoseState { return s.pose }

// SegmentVisible reports the visibility of one segment.
func (s *Synchronizer) SegmentVisible(i int) bool {
	return i >= 0 && i < len(s.segmentVisible) && s.segmentVisible[i]
}

// ApplyPose synchronizes every enabled layer to q. The provider's
// kinematics are updated exactly once; each enabled layer is then queried
// once and pushed into its collection, so no layer can lag behind another.
func (s *Synchronizer) ApplyPose(q []float64) error {
	if len(q) != s.topo.NQ {
		return fmt.Errorf("%w: pose has %d coordinates, model expects %d",
			ErrShapeMismatch, len(q), s.topo.NQ)
	}
	if err := s.provider.UpdateKinematics(q); err != nil {
		return fmt.Errorf("updating kinematics: %w", err)
	}

	if s.Show.Markers {
		if err := s.pushMarkers(); err != nil {
			return err
		}
	}
	if s.Show.CenterOfMass {
		com := s.provider.CenterOfMass()
		if err := s.CenterOfMass.Update(OneFrame([]*Point{
			{Pos: com, Radius: defaultGlobalCoMRadius},
		})); err != nil {
			return err
		}
	}
	if s.Show.SegmentCenterOfMass {
		if err := s.pushSegmentCoM(); err != nil {
			return err
		}
	}
	if s.Show.SegmentFrames {
		if err := s.pushSegmentFrames(); err != nil {
			return err
		}
	}
	if s.Show.Meshes {
		if err := s.pushMeshes(); err != nil {
			return err
		}
	}
	if s.Show.Muscles {
		if err := s.pushPaths(s.Muscles, s.provider.MusclePaths(), s.topo.NMuscles); err != nil {
			return err
		}
	}
	if s.Show.Ligaments {
		if err := s.pushPaths(s.Ligaments, s.provider.LigamentPaths(), s.topo.NLigaments); err != nil {
			return err
		}
	}
	if s.Show.Contacts {
		if err := s.pushContacts(); err != nil {
			return err
		}
	}
	if s.Show.SoftContacts {
		if err := s.pushSoftContacts(); err != nil {
			return err
		}
	}
	if s.Show.Wrappings {
		if err := s.pushWrappings(); err != nil {
			return err
		}
	}
	if s.Show.Gravity {
		if err := s.pushGravity(); err != nil {
			return err
		}
	}

	s.pose.set(q)
	return nil
}

// ToggleSegments flips the visibility of the given segments and re-applies
// the current pose, so markers, meshes and frames owned by a hidden segment
// all switch in one pass.
func (s *Synchronizer) ToggleSegments(segments ...int) error {
	for _, seg := range segments {
		if seg < 0 || seg >= len(s.segmentVisible) {
			return fmt.Errorf("%w: segment %d of %d", ErrShapeMismatch, seg, len(s.segmentVisible))
		}
	}
	for _, seg := range segments {
		s.segmentVisible[seg] = !s.segmentVisible[seg]
	}
	return s.ApplyPose(s.pose.Q())
}

// UpdateForces replaces the external force arrows.
func (s *Synchronizer) UpdateForces(arrows []Arrow) error {
	items := make([]*Arrow, len(arrows))
	for i := range arrows {
		a := arrows[i]
		items[i] = &a
	}
	return s.Forces.Update(OneFrame(items))
}

// UpdateExperimentalMarkers replaces the experimental marker cloud. The
// count follows the loaded capture, not the model topology.
func (s *Synchronizer) UpdateExperimentalMarkers(points []r3.Vec) error {
	items := make([]*Point, len(points))
	for i, p := range points {
		items[i] = &Point{Pos: p, Radius: defaultExpMarkerRadius}
	}
	return s.ExperimentalMarkers.Update(OneFrame(items))
}

// SetFloor installs the static floor quad centered at origin.
func (s *Synchronizer) SetFloor(center r3.Vec, halfSize float64) error {
	patch := &MeshPatch{
		Vertices: []r3.Vec{
			{X: center.X - halfSize, Y: center.Y - halfSize, Z: center.Z},
			{X: center.X + halfSize, Y: center.Y - halfSize, Z: center.Z},
			{X: center.X + halfSize, Y: center.Y + halfSize, Z: center.Z},
			{X: center.X - halfSize, Y: center.Y + halfSize, Z: center.Z},
		},
		Faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
	return s.Floor.Update(OneFrame([]*MeshPatch{patch}))
}

func (s *Synchronizer) topoErr(layer string, want, got int) error {
	return fmt.Errorf("%w: %s expects %d, provider returned %d",
		ErrTopologyMismatch, layer, want, got)
}

func (s *Synchronizer) pushMarkers() error {
	pts := s.provider.Markers()
	if len(pts) != len(s.topo.MarkerSegments) {
		return s.topoErr("markers", len(s.topo.MarkerSegments), len(pts))
	}
	items := make([]*Point, len(pts))
	for i, p := range pts {
		item := &Point{Pos: p, Radius: defaultMarkerRadius}
		if !s.segmentVisible[s.topo.MarkerSegments[i]] {
			item.Tombstone()
		}
		items[i] = item
	}
	return s.Markers.Update(OneFrame(items))
}

func (s *Synchronizer) pushSegmentCoM() error {
	pts := s.provider.SegmentCenterOfMass()
	if len(pts) != s.topo.NSegments {
		return s.topoErr("segment centers of mass", s.topo.NSegments, len(pts))
	}
	items := make([]*Point, len(pts))
	for i, p := range pts {
		item := &Point{Pos: p, Radius: defaultSegmentCoMRadius}
		if !s.segmentVisible[i] {
			item.Tombstone()
		}
		items[i] = item
	}
	return s.SegmentCenterOfMass.Update(OneFrame(items))
}

func (s *Synchronizer) pushSegmentFrames() error {
	frames := s.provider.SegmentFrames()
	if len(frames) != s.topo.NSegments {
		return s.topoErr("segment frames", s.topo.NSegments, len(frames))
	}
	items := make([]*AxesFrame, len(frames))
	for i, f := range frames {
		item := &AxesFrame{Transform: f, Length: defaultAxesLength}
		if !s.segmentVisible[i] {
			item.Tombstone()
		}
		items[i] = item
	}
	return s.SegmentFrames.Update(OneFrame(items))
}

func (s *Synchronizer) pushMeshes() error {
	verts := s.provider.MeshVertices()
	if len(verts) != len(s.topo.MeshFaces) {
		return s.topoErr("meshes", len(s.topo.MeshFaces), len(verts))
	}
	items := make([]*MeshPatch, len(verts))
	for i, v := range verts {
		item := &MeshPatch{Vertices: v, Faces: s.topo.MeshFaces[i]}
		if !s.segmentVisible[s.topo.MeshSegments[i]] {
			item = item.Clone()
			item.Tombstone()
		}
		items[i] = item
	}
	return s.Meshes.Update(OneFrame(items))
}

func (s *Synchronizer) pushPaths(dst *Collection[*PolyLine], paths [][]r3.Vec, want int) error {
	if len(paths) != want {
		return s.topoErr(dst.Name(), want, len(paths))
	}
	items := make([]*PolyLine, len(paths))
	for i, p := range paths {
		items[i] = &PolyLine{Points: p, Width: defaultMuscleWidth}
	}
	return dst.Update(OneFrame(items))
}

func (s *Synchronizer) pushContacts() error {
	pts := s.provider.Contacts()
	if len(pts) != s.topo.NContacts {
		return s.topoErr("contacts", s.topo.NContacts, len(pts))
	}
	items := make([]*Point, len(pts))
	for i, p := range pts {
		items[i] = &Point{Pos: p, Radius: defaultContactRadius}
	}
	return s.Contacts.Update(OneFrame(items))
}

func (s *Synchronizer) pushSoftContacts() error {
	pts := s.provider.SoftContacts()
	if len(pts) != len(s.topo.SoftContactRadii) {
		return s.topoErr("soft contacts", len(s.topo.SoftContactRadii), len(pts))
	}
	items := make([]*Point, len(pts))
	for i, p := range pts {
		items[i] = &Point{Pos: p, Radius: s.topo.SoftContactRadii[i]}
	}
	return s.SoftContacts.Update(OneFrame(items))
}

func (s *Synchronizer) pushWrappings() error {
	verts := s.provider.WrappingVertices()
	if len(verts) != len(s.topo.WrappingFaces) {
		return s.topoErr("wrapping surfaces", len(s.topo.WrappingFaces), len(verts))
	}
	items := make([]*MeshPatch, len(verts))
	for i, v := range verts {
		items[i] = &MeshPatch{Vertices: v, Faces: s.topo.WrappingFaces[i]}
	}
	return s.Wrappings.Update(OneFrame(items))
}

func (s *Synchronizer) pushGravity() error {
	com := s.provider.CenterOfMass()
	g := s.provider.Gravity()
	arrow := &Arrow{
		Application: com,
		Tip: r3.Vec{
			X: com.X + g.X*s.GravityScale,
			Y: com.Y + g.Y*s.GravityScale,
			Z: com.Z + g.Z*s.GravityScale,
		},
	}
	return s.GravityArrow.Update(OneFrame([]*Arrow{arrow}))
}
