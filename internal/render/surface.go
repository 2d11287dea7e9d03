// Package render draws the scene collections with OpenGL. It is the only
// package that talks to the GPU; the scene package stays CPU-side so the
// core can be exercised headless.
package render

import (
	"fmt"
	"math"

	"github.com/go-gl/gl/v4.1-core/gl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openkin/skelviz/internal/engine/camera"
	"github.com/openkin/skelviz/internal/engine/framebuffer"
	"github.com/openkin/skelviz/internal/engine/shader"
	"github.com/openkin/skelviz/internal/scene"
)

const vertexShaderSrc = `#version 410 core
layout(location = 0) in vec3 position;
uniform mat4 mvp;
uniform float pointSize;
void main() {
	gl_Position = mvp * vec4(position, 1.0);
	gl_PointSize = pointSize;
}
`

const fragmentShaderSrc = `#version 410 core
uniform vec4 color;
out vec4 fragColor;
void main() {
	fragColor = color;
}
`

// Color is an RGBA draw color.
type Color [4]float32

// Layer draw colors.
var (
	colorMarker      = Color{0.7, 0.1, 0.1, 1}
	colorExpMarker   = Color{0.1, 0.1, 0.7, 1}
	colorCoM         = Color{0, 0, 0, 1}
	colorSegmentCoM  = Color{0.3, 0.3, 0.3, 1}
	colorMesh        = Color{0.6, 0.6, 0.65, 0.6}
	colorMuscle      = Color{0.8, 0.15, 0.15, 1}
	colorLigament    = Color{0.9, 0.75, 0.2, 1}
	colorContact     = Color{0.2, 0.6, 0.2, 1}
	colorSoftContact = Color{0.2, 0.6, 0.9, 0.5}
	colorWrapping    = Color{0.5, 0.2, 0.6, 0.5}
	colorForce       = Color{0.9, 0.4, 0.1, 1}
	colorGravity     = Color{0.1, 0.4, 0.9, 1}
	colorFloor       = Color{0.8, 0.8, 0.8, 0.4}
	colorAxisX       = Color{0.9, 0.1, 0.1, 1}
	colorAxisY       = Color{0.1, 0.7, 0.1, 1}
	colorAxisZ       = Color{0.1, 0.1, 0.9, 1}
)

// Surface owns the GL pipeline for one viewport. It implements the scene
// Redrawer: collection updates mark it dirty, drawing happens once per loop
// iteration.
type Surface struct {
	width  int
	height int

	program  uint32
	mvpLoc   int32
	colorLoc int32
	psizeLoc int32
	vao      uint32
	vbo      uint32
	capture  *framebuffer.Framebuffer
	cam      *camera.Camera
	dirty    bool

	// scratch vertex buffer reused across draws
	verts []float32
}

// NewSurface initializes OpenGL state. The GL context must be current.
func NewSurface(width, height int, cam *camera.Camera) (*Surface, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}

	program, err := shader.CompileProgram(vertexShaderSrc, fragmentShaderSrc)
	if err != nil {
		return nil, fmt.Errorf("compiling scene shader: %w", err)
	}

	s := &Surface{
		width:    width,
		height:   height,
		program:  program,
		mvpLoc:   shader.MustGetUniform(program, "mvp"),
		colorLoc: shader.MustGetUniform(program, "color"),
		psizeLoc: shader.MustGetUniform(program, "pointSize"),
		cam:      cam,
		dirty:    true,
	}

	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)
	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 0, 0)
	gl.BindVertexArray(0)

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.PROGRAM_POINT_SIZE)

	s.capture, err = framebuffer.New(int32(width), int32(height))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RequestRedraw marks the surface dirty. Scene collections call this on
// every buffer change.
func (s *Surface) RequestRedraw() { s.dirty = true }

// NeedsRedraw reports whether a draw is pending.
func (s *Surface) NeedsRedraw() bool { return s.dirty }

// Size returns the viewport size.
func (s *Surface) Size() (int, int) { return s.width, s.height }

// Resize updates the viewport and the capture target.
func (s *Surface) Resize(width, height int) {
	s.width = width
	s.height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	s.capture.Resize(int32(width), int32(height))
	s.dirty = true
}

// Draw renders every collection of the synchronizer and clears the dirty
// flag. The caller swaps buffers.
func (s *Surface) Draw(sync *scene.Synchronizer) {
	gl.ClearColor(1, 1, 1, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	s.drawScene(sync)
	s.dirty = false
}

func (s *Surface) drawScene(sync *scene.Synchronizer) {
	mvp := s.mvp()
	gl.UseProgram(s.program)
	gl.UniformMatrix4fv(s.mvpLoc, 1, false, &mvp[0])
	gl.BindVertexArray(s.vao)

	s.drawMeshes(sync.Floor, colorFloor)
	s.drawMeshes(sync.Meshes, colorMesh)
	s.drawMeshes(sync.Wrappings, colorWrapping)

	s.drawPoints(sync.Markers, colorMarker)
	s.drawPoints(sync.ExperimentalMarkers, colorExpMarker)
	s.drawPoints(sync.CenterOfMass, colorCoM)
	s.drawPoints(sync.SegmentCenterOfMass, colorSegmentCoM)
	s.drawPoints(sync.Contacts, colorContact)
	s.drawPoints(sync.SoftContacts, colorSoftContact)

	s.drawLines(sync.Muscles, colorMuscle)
	s.drawLines(sync.Ligaments, colorLigament)

	s.drawArrows(sync.Forces, colorForce)
	s.drawArrows(sync.GravityArrow, colorGravity)
	s.drawAxes(sync.SegmentFrames)

	gl.BindVertexArray(0)
}

func (s *Surface) mvp() [16]float32 {
	aspect := float64(s.width) / float64(s.height)
	m := s.cam.ProjectionMatrix(aspect).Mul4(s.cam.ViewMatrix())
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

func (s *Surface) flush(mode uint32, color Color, pointSize float32) {
	if len(s.verts) == 0 {
		return
	}
	gl.Uniform4f(s.colorLoc, color[0], color[1], color[2], color[3])
	gl.Uniform1f(s.psizeLoc, pointSize)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(s.verts)*4, gl.Ptr(s.verts), gl.STREAM_DRAW)
	gl.DrawArrays(mode, 0, int32(len(s.verts)/3))
	s.verts = s.verts[:0]
}

func (s *Surface) push(v r3.Vec) {
	s.verts = append(s.verts, float32(v.X), float32(v.Y), float32(v.Z))
}

// pointPixels maps a world radius to a point sprite size: roughly
// perspective-correct at the focal distance.
func (s *Surface) pointPixels(radius float64) float32 {
	d := s.cam.Position().Sub(s.cam.FocalPoint()).Len()
	if d <= 0 {
		d = 1
	}
	px := 2 * radius / d * float64(s.height)
	return float32(math.Max(px, 2))
}

func (s *Surface) drawPoints(c *scene.Collection[*scene.Point], color Color) {
	if c.Len() == 0 {
		return
	}
	radius := c.At(0).Radius
	for _, p := range c.Items() {
		s.push(p.Pos)
	}
	s.flush(gl.POINTS, color, s.pointPixels(radius))
}

func (s *Surface) drawLines(c *scene.Collection[*scene.PolyLine], color Color) {
	for _, line := range c.Items() {
		for i := 1; i < len(line.Points); i++ {
			s.push(line.Points[i-1])
			s.push(line.Points[i])
		}
	}
	s.flush(gl.LINES, color, 1)
}

func (s *Surface) drawMeshes(c *scene.Collection[*scene.MeshPatch], color Color) {
	for _, patch := range c.Items() {
		for _, face := range patch.Faces {
			s.push(patch.Vertices[face[0]])
			s.push(patch.Vertices[face[1]])
			s.push(patch.Vertices[face[2]])
		}
	}
	s.flush(gl.TRIANGLES, color, 1)
}

func (s *Surface) drawArrows(c *scene.Collection[*scene.Arrow], color Color) {
	for _, a := range c.Items() {
		s.push(a.Application)
		s.push(a.Tip)
	}
	s.flush(gl.LINES, color, 1)
}

// drawAxes draws each frame's basis vectors in the conventional colors.
func (s *Surface) drawAxes(c *scene.Collection[*scene.AxesFrame]) {
	colors := [3]Color{colorAxisX, colorAxisY, colorAxisZ}
	for axis := 0; axis < 3; axis++ {
		for _, f := range c.Items() {
			origin := f.Transform.Col(3)
			dir := f.Transform.Col(axis)
			s.push(r3.Vec{X: origin.X(), Y: origin.Y(), Z: origin.Z()})
			s.push(r3.Vec{
				X: origin.X() + dir.X()*f.Length,
				Y: origin.Y() + dir.Y()*f.Length,
				Z: origin.Z() + dir.Z()*f.Length,
			})
		}
		s.flush(gl.LINES, colors[axis], 1)
	}
}

// renderCapture draws into the offscreen target and returns its RGBA
// pixels, bottom row first.
func (s *Surface) renderCapture(sync *scene.Synchronizer) []byte {
	restore := s.capture.Bind()
	s.capture.Clear(1, 1, 1, 1)
	s.drawScene(sync)
	pixels := s.capture.ReadPixels()
	restore()
	return pixels
}
