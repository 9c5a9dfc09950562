// Package mesh assembles VIF chunks into indexed triangle meshes.
package mesh

import (
	"github.com/bigianb/bgda-explorer/vif"
	"github.com/chewxy/math32"
)

// Vec3 is a 3-component vector.
type Vec3 struct {
	X, Y, Z float32
}

// Scale returns the vector multiplied by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Length returns the length of the vector.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// UV is a texture coordinate. Valid is false for vertices that no triangle
// assigned a coordinate to.
type UV struct {
	U, V  float32
	Valid bool
}

// Mesh is an indexed triangle mesh. Positions, Normals and UVs have one entry
// per vertex.
type Mesh struct {
	Positions []Vec3
	Normals   []Vec3
	UVs       []UV
	// Weights assign bones to ranges of vertices of the mesh.
	Weights []vif.VertexWeight
	// Triangles holds three vertex indices per triangle.
	Triangles []uint32
}

// Bounds returns the corners of the axis-aligned box enclosing the positions
// of the mesh.
func (m *Mesh) Bounds() (min, max Vec3) {
	if len(m.Positions) == 0 {
		return min, max
	}
	min, max = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		min.X = math32.Min(min.X, p.X)
		min.Y = math32.Min(min.Y, p.Y)
		min.Z = math32.Min(min.Z, p.Z)
		max.X = math32.Max(max.X, p.X)
		max.Y = math32.Max(max.Y, p.Y)
		max.Z = math32.Max(max.Z, p.Z)
	}
	return min, max
}

// Radius returns the distance from the origin to the farthest vertex.
func (m *Mesh) Radius() float32 {
	var r float32
	for _, p := range m.Positions {
		r = math32.Max(r, p.Length())
	}
	return r
}
