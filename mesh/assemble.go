package mesh

import (
	"fmt"
	"io"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/gif"
	"github.com/bigianb/bgda-explorer/vif"
	"github.com/chewxy/math32"
)

const (
	// Positions are in 12.4 fixed point.
	positionScale = 1.0 / 16
	normalScale   = 1.0 / 127
	// Texture coordinates are in texels, in 12.4 fixed point.
	texelScale = 1.0 / 16

	addrMask = 0x1FF
	skipBit  = 0x8000
)

// Assembler combines chunks into a mesh.
type Assembler struct {
	// Size of the texture, in pixels, used to normalize texture coordinates.
	// If either is zero, coordinates are left in texels.
	TextureWidth  int
	TextureHeight int

	// If DoubleSided is true, each triangle is also emitted with the opposite
	// winding.
	DoubleSided bool

	// Trace, if not nil, receives a line for each chunk assembled.
	Trace io.Writer
}

type assembler struct {
	Assembler
	mesh  *Mesh
	warns errors.Errors
}

func (a *assembler) tracef(format string, v ...interface{}) {
	if a.Trace == nil {
		return
	}
	fmt.Fprintf(a.Trace, format+"\n", v...)
}

func (a *assembler) warnf(offset int, kind error, format string, v ...interface{}) {
	err := bgda.Errorf(offset, kind, format, v...)
	a.tracef("warning: %s", err)
	a.warns = a.warns.Append(err)
}

// Assemble builds a mesh from chunks, in order. Chunks without a primitive
// tag are skipped. A chunk drawing anything other than triangle strips
// produces an error matching bgda.ErrUnsupportedFormat. Locators and indices
// that fall outside of their chunk are ignored and reported in warn.
func (a Assembler) Assemble(chunks []*vif.Chunk) (m *Mesh, warn, err error) {
	as := &assembler{Assembler: a, mesh: &Mesh{}}
	for i, c := range chunks {
		if c.Tag0 == nil {
			as.tracef("chunk %d at 0x%06x: no primitive tag, skipped", i, c.Offset)
			continue
		}
		if p := c.Tag0.PrimType(); p != gif.PrimTriangleStrip {
			return nil, as.warns.Return(), bgda.Errorf(c.Offset, bgda.ErrUnsupportedFormat, "primitive type %d", p)
		}
		as.addChunk(c)
	}
	return as.mesh, as.warns.Return(), nil
}

func (a *assembler) addChunk(c *vif.Chunk) {
	m := a.mesh
	vStart := len(m.Positions)
	nVerts := len(c.Vertices)
	a.tracef("chunk at 0x%06x: microcode %d, %d vertices from %d", c.Offset, c.MicrocodeID, nVerts, vStart)

	for _, v := range c.Vertices {
		m.Positions = append(m.Positions, Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}.Scale(positionScale))
	}
	if len(c.Normals) != nVerts {
		a.warnf(c.Offset, bgda.ErrMalformedHeader, "%d normals for %d vertices", len(c.Normals), nVerts)
	}
	for i := 0; i < nVerts; i++ {
		var n Vec3
		if i < len(c.Normals) {
			cn := c.Normals[i]
			n = Vec3{X: float32(cn.X), Y: float32(cn.Y), Z: float32(cn.Z)}.Scale(normalScale)
		}
		m.Normals = append(m.Normals, n)
	}
	m.UVs = append(m.UVs, make([]UV, nVerts)...)

	for _, w := range c.VertexWeights {
		if w.StartVertex > nVerts-1 {
			continue
		}
		if w.EndVertex >= nVerts {
			w.EndVertex = nVerts - 1
		}
		w.StartVertex += vStart
		w.EndVertex += vStart
		m.Weights = append(m.Weights, w)
	}

	vstrip := a.strip(c, nVerts)

	var missingUV bool
	tri := 0
	for i := 2; i < len(vstrip); i++ {
		corner := [3]int{i - 2, i - 1, i}
		if tri&1 == 1 {
			corner[0], corner[1] = corner[1], corner[0]
		}
		tri++
		if vstrip[i]&skipBit != 0 {
			continue
		}

		var idx [3]int
		valid := true
		for j, s := range corner {
			local := vstrip[s] &^ skipBit
			if local >= nVerts {
				valid = false
				break
			}
			idx[j] = vStart + local
		}
		if !valid {
			a.warnf(c.Offset, bgda.ErrAddressOverflow, "triangle %d references a vertex outside of the chunk", tri-1)
			continue
		}

		if corner[2] < len(c.UVs) {
			for j, s := range corner {
				uv := a.texCoord(c.UVs[s])
				if cur := m.UVs[idx[j]]; cur.Valid && cur != uv {
					idx[j] = a.split(c, idx[j], vStart)
				}
				m.UVs[idx[j]] = uv
			}
		} else {
			missingUV = true
		}

		m.Triangles = append(m.Triangles, uint32(idx[0]), uint32(idx[1]), uint32(idx[2]))
		if a.DoubleSided {
			m.Triangles = append(m.Triangles, uint32(idx[1]), uint32(idx[0]), uint32(idx[2]))
		}
	}
	if missingUV {
		a.warnf(c.Offset, bgda.ErrMalformedHeader, "%d UVs for a strip of %d", len(c.UVs), len(vstrip))
	}
}

// strip resolves the vertex locators of c into a triangle strip of chunk
// vertex indices, one per GIF loop. Bit 15 of an entry marks a strip restart,
// where no triangle ends.
func (a *assembler) strip(c *vif.Chunk, nVerts int) []int {
	vstrip := make([]int, c.Tag0.NLoop)
	regs := c.Tag0.NReg
	slot := func(v uint16) int { return int(v&addrMask) / regs }

	for k := 2; k < len(c.VLocs); k++ {
		v := k - 2
		l := c.VLocs[k]
		s2, s3 := slot(l.V2), slot(l.V3)
		if s2 < len(vstrip) && s3 < len(vstrip) {
			vstrip[s3] = vstrip[s2]&addrMask | int(l.V3&skipBit)
		} else {
			a.warnf(c.Offset, bgda.ErrAddressOverflow, "locator %d copies slot %d to %d of %d", k, s2, s3, len(vstrip))
		}
		s1 := slot(l.V1)
		if s1 >= len(vstrip) {
			a.warnf(c.Offset, bgda.ErrAddressOverflow, "locator %d places vertex in slot %d of %d", k, s1, len(vstrip))
			continue
		}
		if v < nVerts {
			vstrip[s1] = v | int(l.V1&skipBit)
		}
	}

	if len(c.ExtraVLocs) == 0 {
		return vstrip
	}
	e := c.ExtraVLocs
	n := int(e[0])
	for k := 0; k < n; k++ {
		i := k*4 + 4
		if i+3 >= len(e) {
			a.warnf(c.Offset, bgda.ErrAddressOverflow, "%d extra locator groups declared, %d present", n, len(e)/4-1)
			break
		}
		for _, p := range [2][2]int{{i, i + 1}, {i + 2, i + 3}} {
			src, dst := slot(e[p[0]]), slot(e[p[1]])
			if src >= len(vstrip) || dst >= len(vstrip) {
				a.warnf(c.Offset, bgda.ErrAddressOverflow, "extra locator copies slot %d to %d of %d", src, dst, len(vstrip))
				continue
			}
			vstrip[dst] = int(e[p[1]]&skipBit) | vstrip[src]&addrMask
		}
	}
	return vstrip
}

// texCoord converts a coordinate in texels to a texture coordinate, tiled
// into the unit range.
func (a *assembler) texCoord(uv vif.UV) UV {
	u := float32(uv.U) * texelScale
	v := float32(uv.V) * texelScale
	if a.TextureWidth > 0 && a.TextureHeight > 0 {
		u = tile(u / float32(a.TextureWidth))
		v = tile(v / float32(a.TextureHeight))
	}
	return UV{U: u, V: v, Valid: true}
}

func tile(f float32) float32 {
	if f > 1 {
		return math32.Mod(f, 1)
	}
	return f
}

// split appends a copy of vertex orig, to be given a different texture
// coordinate, and returns its index. The copy keeps the bone weight of the
// original when the first bone has any influence.
func (a *assembler) split(c *vif.Chunk, orig, vStart int) int {
	m := a.mesh
	n := len(m.Positions)
	m.Positions = append(m.Positions, m.Positions[orig])
	m.Normals = append(m.Normals, m.Normals[orig])
	m.UVs = append(m.UVs, UV{})
	if w, ok := c.FindVertexWeight(orig - vStart); ok && len(w.Bones) > 0 && w.Bones[0].Weight > 0 {
		w.StartVertex = n
		w.EndVertex = n
		m.Weights = append(m.Weights, w)
	}
	return n
}
