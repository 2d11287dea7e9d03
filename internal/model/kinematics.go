package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openkin/skelviz/internal/scene"
)

func dofTransform(d DOF, v float64) mgl64.Mat4 {
	switch d {
	case TransX:
		return mgl64.Translate3D(v, 0, 0)
	case TransY:
		return mgl64.Translate3D(0, v, 0)
	case TransZ:
		return mgl64.Translate3D(0, 0, v)
	case RotX:
		return mgl64.HomogRotate3DX(v)
	case RotY:
		return mgl64.HomogRotate3DY(v)
	default:
		return mgl64.HomogRotate3DZ(v)
	}
}

// UpdateKinematics poses the whole tree. Parents are defined before their
// children, so one forward sweep suffices.
func (m *Model) UpdateKinematics(q []float64) error {
	if len(q) != m.nQ {
		return fmt.Errorf("pose has %d coordinates, model %s has %d", len(q), m.Name, m.nQ)
	}
	copy(m.q, q)
	for i := range m.Segments {
		seg := &m.Segments[i]
		local := seg.Offset
		for j, d := range seg.DOFs {
			local = local.Mul4(dofTransform(d, q[seg.QBase+j]))
		}
		if seg.Parent >= 0 {
			seg.world = m.Segments[seg.Parent].world.Mul4(local)
		} else {
			seg.world = local
		}
	}
	return nil
}

func (m *Model) worldPoint(seg int, local r3.Vec) r3.Vec {
	p := m.Segments[seg].world.Mul4x1(mgl64.Vec4{local.X, local.Y, local.Z, 1})
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

// Topology describes the model's static shape for the synchronizer.
func (m *Model) Topology() scene.Topology {
	topo := scene.Topology{
		NQ:         m.nQ,
		NSegments:  len(m.Segments),
		NMuscles:   len(m.Muscles),
		NLigaments: len(m.Ligaments),
	}
	for i, seg := range m.Segments {
		for range seg.Markers {
			topo.MarkerSegments = append(topo.MarkerSegments, i)
		}
		if seg.Mesh != nil {
			topo.MeshSegments = append(topo.MeshSegments, i)
			topo.MeshFaces = append(topo.MeshFaces, seg.Mesh.Faces)
		}
		topo.NContacts += len(seg.Contacts)
		for _, sc := range seg.SoftContacts {
			topo.SoftContactRadii = append(topo.SoftContactRadii, sc.Radius)
		}
	}
	for _, w := range m.Wrappings {
		topo.WrappingFaces = append(topo.WrappingFaces, w.faces)
	}
	return topo
}

// Markers returns every model marker in world coordinates, in definition
// order.
func (m *Model) Markers() []r3.Vec {
	var out []r3.Vec
	for i, seg := range m.Segments {
		for _, mk := range seg.Markers {
			out = append(out, m.worldPoint(i, mk.Local))
		}
	}
	return out
}

// CenterOfMass returns the model's center of mass. Segments carry no mass
// in the definition, so they weigh equally.
func (m *Model) CenterOfMass() r3.Vec {
	if len(m.Segments) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for i, seg := range m.Segments {
		p := m.worldPoint(i, seg.CoM)
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(len(m.Segments))
	return r3.Vec{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// SegmentCenterOfMass returns each segment's center of mass in world
// coordinates.
func (m *Model) SegmentCenterOfMass() []r3.Vec {
	out := make([]r3.Vec, len(m.Segments))
	for i, seg := range m.Segments {
		out[i] = m.worldPoint(i, seg.CoM)
	}
	return out
}

// SegmentFrames returns each segment's world transform.
func (m *Model) SegmentFrames() []mgl64.Mat4 {
	out := make([]mgl64.Mat4, len(m.Segments))
	for i := range m.Segments {
		out[i] = m.Segments[i].world
	}
	return out
}

// MeshVertices returns the posed vertices of every mesh-bearing segment.
func (m *Model) MeshVertices() [][]r3.Vec {
	var out [][]r3.Vec
	for i, seg := range m.Segments {
		if seg.Mesh == nil {
			continue
		}
		verts := make([]r3.Vec, len(seg.Mesh.Vertices))
		for j, v := range seg.Mesh.Vertices {
			verts[j] = m.worldPoint(i, v)
		}
		out = append(out, verts)
	}
	return out
}

func (m *Model) pathPoints(p PathGeometry) []r3.Vec {
	out := make([]r3.Vec, len(p.Points))
	for i, a := range p.Points {
		out[i] = m.worldPoint(a.Segment, a.Local)
	}
	return out
}

// MusclePaths returns each muscle's posed point chain.
func (m *Model) MusclePaths() [][]r3.Vec {
	out := make([][]r3.Vec, len(m.Muscles))
	for i := range m.Muscles {
		out[i] = m.pathPoints(m.Muscles[i].PathGeometry)
	}
	return out
}

// LigamentPaths returns each ligament's posed point chain.
func (m *Model) LigamentPaths() [][]r3.Vec {
	out := make([][]r3.Vec, len(m.Ligaments))
	for i := range m.Ligaments {
		out[i] = m.pathPoints(m.Ligaments[i])
	}
	return out
}

// Contacts returns every rigid contact point in world coordinates.
func (m *Model) Contacts() []r3.Vec {
	var out []r3.Vec
	for i, seg := range m.Segments {
		for _, c := range seg.Contacts {
			out = append(out, m.worldPoint(i, c))
		}
	}
	return out
}

// SoftContacts returns every soft contact center in world coordinates.
func (m *Model) SoftContacts() []r3.Vec {
	var out []r3.Vec
	for i, seg := range m.Segments {
		for _, sc := range seg.SoftContacts {
			out = append(out, m.worldPoint(i, sc.Local))
		}
	}
	return out
}

// WrappingVertices returns the posed tessellation of every wrapping
// surface.
func (m *Model) WrappingVertices() [][]r3.Vec {
	out := make([][]r3.Vec, len(m.Wrappings))
	for i, w := range m.Wrappings {
		world := m.Segments[w.Segment].world.Mul4(w.Offset)
		verts := make([]r3.Vec, len(w.localVertices))
		for j, v := range w.localVertices {
			p := world.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 1})
			verts[j] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
		out[i] = verts
	}
	return out
}

// Gravity returns the gravity vector in world coordinates.
func (m *Model) Gravity() r3.Vec { return m.GravityW }
