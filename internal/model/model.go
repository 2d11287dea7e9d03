// Package model provides a YAML-defined articulated model: a tree of
// segments moved by generalized coordinates, carrying markers, meshes,
// contacts, muscles, ligaments and wrapping surfaces. It implements the
// scene geometry provider, so the viewer can run without any external
// biomechanics runtime.
package model

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Model definition errors.
var (
	ErrUnknownParent     = errors.New("unknown parent segment")
	ErrUnknownSegment    = errors.New("unknown segment")
	ErrUnknownDOF        = errors.New("unknown degree of freedom")
	ErrUnknownMuscleType = errors.New("unknown muscle type")
	ErrBadFaceIndex      = errors.New("mesh face index out of range")
)

// DOF is one degree of freedom of a segment, consuming one generalized
// coordinate.
type DOF int

const (
	TransX DOF = iota
	TransY
	TransZ
	RotX
	RotY
	RotZ
)

var dofNames = map[string]DOF{
	"transX": TransX, "transY": TransY, "transZ": TransZ,
	"rotX": RotX, "rotY": RotY, "rotZ": RotZ,
}

// File-level YAML schema.

type fileModel struct {
	Name      string         `yaml:"name"`
	Gravity   []float64      `yaml:"gravity"`
	Segments  []fileSegment  `yaml:"segments"`
	Muscles   []fileMuscle   `yaml:"muscles"`
	Ligaments []filePath     `yaml:"ligaments"`
	Wrappings []fileWrapping `yaml:"wrappings"`
}

type fileSegment struct {
	Name         string            `yaml:"name"`
	Parent       string            `yaml:"parent"`
	Translation  []float64         `yaml:"translation"`
	Rotation     []float64         `yaml:"rotation"`
	DOFs         []string          `yaml:"dofs"`
	CoM          []float64         `yaml:"com"`
	Markers      []fileMarker      `yaml:"markers"`
	Mesh         *fileMesh         `yaml:"mesh"`
	Contacts     [][]float64       `yaml:"contacts"`
	SoftContacts []fileSoftContact `yaml:"soft_contacts"`
}

type fileMarker struct {
	Name     string    `yaml:"name"`
	Position []float64 `yaml:"position"`
}

type fileMesh struct {
	Vertices [][]float64 `yaml:"vertices"`
	Faces    [][3]int    `yaml:"faces"`
}

type fileSoftContact struct {
	Position []float64 `yaml:"position"`
	Radius   float64   `yaml:"radius"`
}

type fileAnchor struct {
	Segment  string    `yaml:"segment"`
	Position []float64 `yaml:"position"`
}

type filePath struct {
	Name      string       `yaml:"name"`
	Origin    fileAnchor   `yaml:"origin"`
	Via       []fileAnchor `yaml:"via"`
	Insertion fileAnchor   `yaml:"insertion"`
}

type fileMuscle struct {
	filePath      `yaml:",inline"`
	Type          string  `yaml:"type"`
	OptimalLength float64 `yaml:"optimal_length"`
	MaximalForce  float64 `yaml:"maximal_force"`
}

type fileWrapping struct {
	Name        string    `yaml:"name"`
	Segment     string    `yaml:"segment"`
	Translation []float64 `yaml:"translation"`
	Rotation    []float64 `yaml:"rotation"`
	Radius      float64   `yaml:"radius"`
	Length      float64   `yaml:"length"`
}

// Compiled representation.

// Segment is one rigid body of the model tree.
type Segment struct {
	Name   string
	Parent int // -1 for root
	Offset mgl64.Mat4
	DOFs   []DOF
	QBase  int // index of the segment's first coordinate in Q
	CoM    r3.Vec

	Markers      []Marker
	Mesh         *Mesh
	Contacts     []r3.Vec
	SoftContacts []SoftContact

	world mgl64.Mat4
}

// Marker is a model marker in its segment's local frame.
type Marker struct {
	Name  string
	Local r3.Vec
}

// Mesh is a segment-attached triangulated surface in local coordinates.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

// SoftContact is a contact sphere.
type SoftContact struct {
	Local  r3.Vec
	Radius float64
}

// Anchor attaches a path point to a segment.
type Anchor struct {
	Segment int
	Local   r3.Vec
}

// PathGeometry is an origin-via-insertion point chain.
type PathGeometry struct {
	Name   string
	Points []Anchor
}

// Wrapping is a half-cylinder muscles can slide over, tessellated once at
// load and posed with its segment.
type Wrapping struct {
	Name    string
	Segment int
	Offset  mgl64.Mat4
	Radius  float64
	Length  float64

	localVertices []r3.Vec
	faces         [][3]int
}

// Model is a compiled model, ready to pose.
type Model struct {
	Name      string
	GravityW  r3.Vec
	Segments  []Segment
	Muscles   []Muscle
	Ligaments []PathGeometry
	Wrappings []Wrapping

	nQ       int
	segIndex map[string]int
	q        []float64
}

// Load reads and compiles a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}

// Parse compiles a model from YAML bytes.
func Parse(data []byte) (*Model, error) {
	var f fileModel
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}

	m := &Model{
		Name:     f.Name,
		GravityW: vec3(f.Gravity),
		segIndex: make(map[string]int, len(f.Segments)),
	}
	if len(f.Gravity) == 0 {
		m.GravityW = r3.Vec{Z: -9.81}
	}

	for i, fs := range f.Segments {
		m.segIndex[fs.Name] = i
		seg := Segment{
			Name:   fs.Name,
			Parent: -1,
			Offset: offsetTransform(fs.Translation, fs.Rotation),
			QBase:  m.nQ,
			CoM:    vec3(fs.CoM),
		}
		if fs.Parent != "" {
			parent, ok := m.segIndex[fs.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: segment %s refers to %q (parents must be defined first)",
					ErrUnknownParent, fs.Name, fs.Parent)
			}
			seg.Parent = parent
		}
		for _, name := range fs.DOFs {
			dof, ok := dofNames[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q on segment %s", ErrUnknownDOF, name, fs.Name)
			}
			seg.DOFs = append(seg.DOFs, dof)
		}
		m.nQ += len(seg.DOFs)

		for _, fm := range fs.Markers {
			seg.Markers = append(seg.Markers, Marker{Name: fm.Name, Local: vec3(fm.Position)})
		}
		if fs.Mesh != nil {
			mesh := &Mesh{Faces: fs.Mesh.Faces}
			for _, v := range fs.Mesh.Vertices {
				mesh.Vertices = append(mesh.Vertices, vec3(v))
			}
			for _, face := range mesh.Faces {
				for _, idx := range face {
					if idx < 0 || idx >= len(mesh.Vertices) {
						return nil, fmt.Errorf("%w: %d on segment %s", ErrBadFaceIndex, idx, fs.Name)
					}
				}
			}
			seg.Mesh = mesh
		}
		for _, c := range fs.Contacts {
			seg.Contacts = append(seg.Contacts, vec3(c))
		}
		for _, sc := range fs.SoftContacts {
			seg.SoftContacts = append(seg.SoftContacts, SoftContact{Local: vec3(sc.Position), Radius: sc.Radius})
		}
		m.Segments = append(m.Segments, seg)
	}

	for _, fm := range f.Muscles {
		path, err := m.compilePath(fm.filePath)
		if err != nil {
			return nil, err
		}
		muscle, err := newMuscle(path, fm.Type, fm.OptimalLength, fm.MaximalForce)
		if err != nil {
			return nil, err
		}
		m.Muscles = append(m.Muscles, muscle)
	}
	for _, fl := range f.Ligaments {
		path, err := m.compilePath(fl)
		if err != nil {
			return nil, err
		}
		m.Ligaments = append(m.Ligaments, path)
	}
	for _, fw := range f.Wrappings {
		seg, ok := m.segIndex[fw.Segment]
		if !ok {
			return nil, fmt.Errorf("%w: wrapping %s on %q", ErrUnknownSegment, fw.Name, fw.Segment)
		}
		w := Wrapping{
			Name:    fw.Name,
			Segment: seg,
			Offset:  offsetTransform(fw.Translation, fw.Rotation),
			Radius:  fw.Radius,
			Length:  fw.Length,
		}
		w.localVertices, w.faces = tessellateHalfCylinder(fw.Radius, fw.Length)
		m.Wrappings = append(m.Wrappings, w)
	}

	m.q = make([]float64, m.nQ)
	if err := m.UpdateKinematics(m.q); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) compilePath(f filePath) (PathGeometry, error) {
	anchors := make([]fileAnchor, 0, len(f.Via)+2)
	anchors = append(anchors, f.Origin)
	anchors = append(anchors, f.Via...)
	anchors = append(anchors, f.Insertion)

	path := PathGeometry{Name: f.Name}
	for _, a := range anchors {
		seg, ok := m.segIndex[a.Segment]
		if !ok {
			return PathGeometry{}, fmt.Errorf("%w: path %s anchors on %q", ErrUnknownSegment, f.Name, a.Segment)
		}
		path.Points = append(path.Points, Anchor{Segment: seg, Local: vec3(a.Position)})
	}
	return path, nil
}

// NQ returns the model's coordinate count.
func (m *Model) NQ() int { return m.nQ }

// MarkerNames returns every marker name in provider order.
func (m *Model) MarkerNames() []string {
	var names []string
	for _, seg := range m.Segments {
		for _, mk := range seg.Markers {
			names = append(names, mk.Name)
		}
	}
	return names
}

// SegmentIndex resolves a segment name, -1 when absent.
func (m *Model) SegmentIndex(name string) int {
	if i, ok := m.segIndex[name]; ok {
		return i
	}
	return -1
}

func vec3(v []float64) r3.Vec {
	out := r3.Vec{}
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	return out
}

// offsetTransform builds the static parent-to-segment transform from a
// translation and XYZ Euler angles in radians.
func offsetTransform(translation, rotation []float64) mgl64.Mat4 {
	t := vec3(translation)
	r := vec3(rotation)
	out := mgl64.Translate3D(t.X, t.Y, t.Z)
	out = out.Mul4(mgl64.HomogRotate3DX(r.X))
	out = out.Mul4(mgl64.HomogRotate3DY(r.Y))
	out = out.Mul4(mgl64.HomogRotate3DZ(r.Z))
	return out
}
