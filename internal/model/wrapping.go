package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// wrappingResolution is the number of samples along the half circle.
const wrappingResolution = 11

// tessellateHalfCylinder builds a half cylinder of the given radius and
// length in the wrapping's local frame: the axis runs along Z, the open
// side faces -X. Two rings of vertices, one quad (two triangles) per slice.
func tessellateHalfCylinder(radius, length float64) ([]r3.Vec, [][3]int) {
	verts := make([]r3.Vec, 0, 2*wrappingResolution)
	for i := 0; i < wrappingResolution; i++ {
		angle := -math.Pi/2 + math.Pi*float64(i)/float64(wrappingResolution-1)
		x := radius * math.Cos(angle)
		y := radius * math.Sin(angle)
		verts = append(verts,
			r3.Vec{X: x, Y: y, Z: -length / 2},
			r3.Vec{X: x, Y: y, Z: length / 2},
		)
	}

	faces := make([][3]int, 0, 2*(wrappingResolution-1))
	for i := 0; i < wrappingResolution-1; i++ {
		a, b := 2*i, 2*i+1
		c, d := 2*i+2, 2*i+3
		faces = append(faces, [3]int{a, b, c}, [3]int{b, d, c})
	}
	return verts, faces
}
