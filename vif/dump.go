package vif

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bigianb/bgda-explorer/errors"
)

// Dump writes to w a readable representation of chunks.
func Dump(w io.Writer, chunks []*Chunk) error {
	if w == nil {
		return errors.New("nil writer")
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Chunks: %d {", len(chunks))
	for i, chunk := range chunks {
		dumpChunk(bw, 1, i, chunk)
	}
	bw.WriteString("\n}\n")
	return bw.Flush()
}

func dumpChunk(w *bufio.Writer, indent, i int, c *Chunk) {
	dumpNewline(w, indent)
	fmt.Fprintf(w, "#%d: MSCAL %d at 0x%06x {", i, c.MicrocodeID, c.Offset)
	if c.Tag0 != nil {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Tag0: %s", c.Tag0)
	}
	if c.Tag1 != nil {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Tag1: %s", c.Tag1)
	}
	for _, t := range c.DirectTags {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Direct: %s", t)
	}

	dumpNewline(w, indent+1)
	fmt.Fprintf(w, "Vertices: %d {", len(c.Vertices))
	for i, v := range c.Vertices {
		dumpNewline(w, indent+2)
		fmt.Fprintf(w, "%d: (%d, %d, %d)", i, v.X, v.Y, v.Z)
		if i < len(c.Normals) {
			n := c.Normals[i]
			fmt.Fprintf(w, " n(%d, %d, %d)", n.X, n.Y, n.Z)
		}
	}
	dumpNewline(w, indent+1)
	w.WriteByte('}')

	dumpNewline(w, indent+1)
	fmt.Fprintf(w, "VLocs: %d {", len(c.VLocs))
	for i, l := range c.VLocs {
		dumpNewline(w, indent+2)
		fmt.Fprintf(w, "%d: %04x %04x %04x", i, l.V1, l.V2, l.V3)
	}
	dumpNewline(w, indent+1)
	w.WriteByte('}')

	if len(c.ExtraVLocs) > 0 {
		dumpNewline(w, indent+1)
		w.WriteString("ExtraVLocs:")
		for i, v := range c.ExtraVLocs {
			if i%4 == 0 {
				dumpNewline(w, indent+2)
			} else {
				w.WriteByte(' ')
			}
			fmt.Fprintf(w, "%04x", v)
		}
	}

	dumpNewline(w, indent+1)
	fmt.Fprintf(w, "UVs: %d {", len(c.UVs))
	for i, uv := range c.UVs {
		dumpNewline(w, indent+2)
		fmt.Fprintf(w, "%d: (%d, %d)", i, uv.U, uv.V)
	}
	dumpNewline(w, indent+1)
	w.WriteByte('}')

	if len(c.VertexWeights) > 0 {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Weights: %d {", len(c.VertexWeights))
		for _, vw := range c.VertexWeights {
			dumpNewline(w, indent+2)
			fmt.Fprintf(w, "%d-%d:", vw.StartVertex, vw.EndVertex)
			for _, b := range vw.Bones {
				fmt.Fprintf(w, " %d=%d", b.Bone, b.Weight)
			}
		}
		dumpNewline(w, indent+1)
		w.WriteByte('}')
	}

	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
}
