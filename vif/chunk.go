package vif

import (
	"github.com/bigianb/bgda-explorer/gif"
)

// Vertex is a vertex position in 12.4 fixed point.
type Vertex struct {
	X, Y, Z int16
}

// Normal is a normal vector with components scaled by 127.
type Normal struct {
	X, Y, Z int8
}

// UV is a texture coordinate in texels, in 12.4 fixed point.
type UV struct {
	U, V int16
}

// VLoc is a vertex locator. Each value holds a VU memory address in its low 9
// bits and a skip flag in bit 15.
type VLoc struct {
	V1, V2, V3 uint16
}

// BoneWeight is the influence of one bone on a vertex.
type BoneWeight struct {
	Bone   uint8
	Weight uint8
}

// VertexWeight assigns bone weights to an inclusive range of vertices.
type VertexWeight struct {
	StartVertex int
	EndVertex   int
	// Bones holds 1 to 4 influences. Bone ids are stored divided by 4.
	Bones []BoneWeight
}

// Chunk is the data uploaded for one microprogram invocation.
type Chunk struct {
	// Offset is the stream offset of the MSCAL that closed the chunk.
	Offset int
	// MicrocodeID is the address passed to MSCAL.
	MicrocodeID int

	// Tag0 is the GIF tag describing the primitive drawn by the chunk. Nil if
	// the chunk carried none.
	Tag0 *gif.Tag
	Tag1 *gif.Tag
	// DirectTags holds the tags sent through DIRECT.
	DirectTags []gif.Tag

	Vertices []Vertex
	Normals  []Normal
	VLocs    []VLoc
	// ExtraVLocs holds groups of 4 values. The first value is the number of
	// groups that follow the first.
	ExtraVLocs []uint16
	// UVs are uploaded after the MSCAL of the chunk they belong to.
	UVs           []UV
	VertexWeights []VertexWeight
}

// empty returns whether the chunk holds no data.
func (c *Chunk) empty() bool {
	return c.Tag0 == nil && c.Tag1 == nil && len(c.DirectTags) == 0 &&
		len(c.Vertices) == 0 && len(c.Normals) == 0 && len(c.VLocs) == 0 &&
		len(c.ExtraVLocs) == 0 && len(c.VertexWeights) == 0
}

// FindVertexWeight returns the weight covering vertex v of the chunk.
func (c *Chunk) FindVertexWeight(v int) (VertexWeight, bool) {
	for _, w := range c.VertexWeights {
		if v >= w.StartVertex && v <= w.EndVertex {
			return w, true
		}
	}
	return VertexWeight{}, false
}
