// Package camera provides the orbit camera for the model viewport.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Biomechanics convention: Z is up, the subject faces +X, so the camera
// starts on the +X axis rolled -90 degrees to put Z vertical on screen.
const (
	defaultDistance = 3.0
	defaultRoll     = -math.Pi / 2
	minDistance     = 0.05
	maxDistance     = 100.0
	maxPitch        = math.Pi/2 - 0.01
)

// Camera orbits a focal point at a distance, with a roll about the view
// axis. All angles are radians, all distances meters.
type Camera struct {
	focal    mgl64.Vec3
	distance float64
	yaw      float64
	pitch    float64
	roll     float64

	DragSensitivity float64
	ZoomSensitivity float64
}

// New returns a camera looking at the origin from the +X axis.
func New() *Camera {
	return &Camera{
		distance:        defaultDistance,
		roll:            defaultRoll,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *Camera) Position() mgl64.Vec3 {
	return c.focal.Add(mgl64.Vec3{
		c.distance * math.Cos(c.pitch) * math.Cos(c.yaw),
		c.distance * math.Cos(c.pitch) * math.Sin(c.yaw),
		c.distance * math.Sin(c.pitch),
	})
}

// SetPosition places the camera, keeping the current focal point.
func (c *Camera) SetPosition(x, y, z float64) {
	d := mgl64.Vec3{x, y, z}.Sub(c.focal)
	c.distance = clamp(d.Len(), minDistance, maxDistance)
	c.yaw = math.Atan2(d.Y(), d.X())
	c.pitch = math.Asin(d.Z() / d.Len())
}

// FocalPoint returns the orbit center.
func (c *Camera) FocalPoint() mgl64.Vec3 { return c.focal }

// SetFocalPoint moves the orbit center without moving the camera angles.
func (c *Camera) SetFocalPoint(x, y, z float64) {
	c.focal = mgl64.Vec3{x, y, z}
}

// Roll returns the roll about the view axis.
func (c *Camera) Roll() float64 { return c.roll }

// SetRoll sets the roll about the view axis.
func (c *Camera) SetRoll(roll float64) { c.roll = roll }

// Zoom returns the zoom factor relative to the default distance.
func (c *Camera) Zoom() float64 { return defaultDistance / c.distance }

// SetZoom sets the zoom factor: 2 halves the orbit distance.
func (c *Camera) SetZoom(factor float64) {
	if factor <= 0 {
		return
	}
	c.distance = clamp(defaultDistance/factor, minDistance, maxDistance)
}

// HandleDrag orbits from a mouse drag delta.
func (c *Camera) HandleDrag(deltaX, deltaY float64) {
	c.yaw -= deltaX * c.DragSensitivity
	c.pitch = clamp(c.pitch+deltaY*c.DragSensitivity, -maxPitch, maxPitch)
}

// HandleZoom moves along the view axis from a scroll delta.
func (c *Camera) HandleZoom(delta float64) {
	c.distance = clamp(c.distance*(1-delta*c.ZoomSensitivity), minDistance, maxDistance)
}

// HandlePan shifts the focal point in the view plane.
func (c *Camera) HandlePan(deltaX, deltaY float64) {
	view := c.focal.Sub(c.Position()).Normalize()
	right := view.Cross(c.up()).Normalize()
	down := view.Cross(right).Normalize()
	scale := c.distance * c.DragSensitivity
	c.focal = c.focal.Add(right.Mul(-deltaX * scale)).Add(down.Mul(-deltaY * scale))
}

// up returns the up vector: world Z rotated around the view axis by the
// roll offset from the neutral -90 degrees.
func (c *Camera) up() mgl64.Vec3 {
	view := c.focal.Sub(c.Position())
	if view.Len() == 0 {
		return mgl64.Vec3{0, 0, 1}
	}
	return mgl64.QuatRotate(c.roll-defaultRoll, view.Normalize()).Rotate(mgl64.Vec3{0, 0, 1})
}

// ViewMatrix returns the world-to-camera transform.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	pos := c.Position()
	return mgl64.LookAtV(pos, c.focal, c.up())
}

// ProjectionMatrix returns a perspective projection for the given aspect
// ratio.
func (c *Camera) ProjectionMatrix(aspect float64) mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(40), aspect, 0.01, 1000)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
