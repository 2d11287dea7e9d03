// Package scene keeps named collections of renderable primitives in
// lock-step with a pose vector. It owns only CPU-side geometry; drawing and
// GPU buffers live in the render package, which is notified through a
// Redrawer when buffers change.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Primitive is one renderable item in a Collection. Set overwrites the
// receiver's vertex data in place and is only called when SameShape holds,
// so it never reallocates. Tombstone writes NaN into every coordinate so a
// hidden primitive keeps its slot but draws nothing.
type Primitive[P any] interface {
	SameShape(other P) bool
	Set(other P)
	Tombstone()
	Clone() P
}

func nanVec() r3.Vec {
	n := math.NaN()
	return r3.Vec{X: n, Y: n, Z: n}
}

// Point is a sphere-rendered marker.
type Point struct {
	Pos    r3.Vec
	Radius float64
}

func (p *Point) SameShape(*Point) bool { return true }
func (p *Point) Set(o *Point)          { *p = *o }
func (p *Point) Tombstone()            { p.Pos = nanVec() }
func (p *Point) Clone() *Point         { c := *p; return &c }

// IsTombstone reports whether the point is currently hidden.
func (p *Point) IsTombstone() bool { return math.IsNaN(p.Pos.X) }

// PolyLine is an open polyline through consecutive points, used for muscle
// and ligament paths.
type PolyLine struct {
	Points []r3.Vec
	Width  float64
}

func (l *PolyLine) SameShape(o *PolyLine) bool { return len(l.Points) == len(o.Points) }

func (l *PolyLine) Set(o *PolyLine) {
	copy(l.Points, o.Points)
	l.Width = o.Width
}

func (l *PolyLine) Tombstone() {
	for i := range l.Points {
		l.Points[i] = nanVec()
	}
}

func (l *PolyLine) Clone() *PolyLine {
	c := &PolyLine{Points: make([]r3.Vec, len(l.Points)), Width: l.Width}
	copy(c.Points, l.Points)
	return c
}

// MeshPatch is a triangulated surface. Faces index into Vertices and stay
// fixed for the lifetime of the primitive; only vertex positions move with
// the pose.
type MeshPatch struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

func (m *MeshPatch) SameShape(o *MeshPatch) bool {
	return len(m.Vertices) == len(o.Vertices) && len(m.Faces) == len(o.Faces)
}

func (m *MeshPatch) Set(o *MeshPatch) {
	copy(m.Vertices, o.Vertices)
	copy(m.Faces, o.Faces)
}

func (m *MeshPatch) Tombstone() {
	for i := range m.Vertices {
		m.Vertices[i] = nanVec()
	}
}

func (m *MeshPatch) Clone() *MeshPatch {
	c := &MeshPatch{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	return c
}

// AxesFrame is a segment-local coordinate triad placed by a homogeneous
// transform.
type AxesFrame struct {
	Transform mgl64.Mat4
	Length    float64
}

func (a *AxesFrame) SameShape(*AxesFrame) bool { return true }
func (a *AxesFrame) Set(o *AxesFrame)          { *a = *o }

func (a *AxesFrame) Tombstone() {
	n := math.NaN()
	for i := range a.Transform {
		a.Transform[i] = n
	}
}

func (a *AxesFrame) Clone() *AxesFrame { c := *a; return &c }

// Arrow is a vector drawn from its application point to its tip, used for
// external forces and the gravity vector.
type Arrow struct {
	Application r3.Vec
	Tip         r3.Vec
}

func (a *Arrow) SameShape(*Arrow) bool { return true }
func (a *Arrow) Set(o *Arrow)          { *a = *o }

func (a *Arrow) Tombstone() {
	a.Application = nanVec()
	a.Tip = nanVec()
}

func (a *Arrow) Clone() *Arrow { c := *a; return &c }
