// Package vif interprets the VIF command streams that carry mesh data.
//
// A mesh is sent to the vector unit as a sequence of UNPACK commands that
// fill VU memory, each batch closed by an MSCAL that starts the microprogram
// drawing it. The Decoder splits a stream at each MSCAL into Chunks holding
// the unpacked data.
package vif

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/gif"
)

// ErrUnterminated indicates data at the end of a stream that is not followed
// by an MSCAL. The data is dropped.
var ErrUnterminated = errors.New("chunk not terminated by MSCAL")

// Microprograms known to draw mesh chunks.
var knownMicrocode = map[int]bool{66: true, 68: true, 70: true}

// Decoder decodes VIF command streams into chunks.
type Decoder struct {
	// Trace, if not nil, receives a disassembly of the stream.
	Trace io.Writer
}

type vifDecoder struct {
	Decoder
	data       []byte
	start, end int
	warns      errors.Errors
}

func (d *vifDecoder) tracef(offset int, format string, a ...interface{}) {
	if d.Trace == nil {
		return
	}
	fmt.Fprintf(d.Trace, "%.6x %s\n", offset, fmt.Sprintf(format, a...))
}

func (d *vifDecoder) warnf(offset int, kind error, format string, a ...interface{}) {
	err := bgda.Errorf(offset, kind, format, a...)
	d.tracef(offset, "**** %s", err)
	d.warns = d.warns.Append(err)
}

// need checks that n bytes are available at offset.
func (d *vifDecoder) need(offset, n int) error {
	if offset+n > d.end {
		return bgda.Errorf(offset, bgda.ErrAddressOverflow, "%d bytes needed, stream ends at 0x%X", n, d.end)
	}
	return nil
}

func (d *vifDecoder) u16(offset int) uint16 {
	return binary.LittleEndian.Uint16(d.data[offset:])
}

// Decode interprets the commands of stream between offsets start and end, and
// returns the chunks closed by each MSCAL, in stream order. An empty range
// produces no chunks.
//
// An unknown command or a read past end aborts decoding; no chunks are
// returned in that case.
func (d Decoder) Decode(stream []byte, start, end int) (chunks []*Chunk, warn, err error) {
	if start < 0 || end > len(stream) || start > end {
		return nil, nil, bgda.Errorf(start, bgda.ErrAddressOverflow, "range 0x%X-0x%X outside of %d byte stream", start, end, len(stream))
	}
	vd := &vifDecoder{Decoder: d, data: stream, start: start, end: end}
	chunks, err = vd.decode()
	if err != nil {
		return nil, vd.warns.Return(), err
	}
	return chunks, vd.warns.Return(), nil
}

func (d *vifDecoder) decode() (chunks []*Chunk, err error) {
	current := &Chunk{}
	var previous *Chunk

	offset := d.start
	for offset < d.end {
		if err := d.need(offset, 4); err != nil {
			return nil, err
		}
		code := Code(binary.LittleEndian.Uint32(d.data[offset:]))
		at := offset
		offset += 4
		d.tracef(at, "%s", code)

		if code.IsUnpack() {
			if offset, err = d.unpack(code, at, offset, current, previous); err != nil {
				return nil, err
			}
			continue
		}

		switch code.Cmd() {
		case CmdNOP, CmdSTCYCL, CmdITOP, CmdSTMOD, CmdFLUSH:
		case CmdMSCAL:
			if !knownMicrocode[code.Imm()] {
				d.warnf(at, bgda.ErrUnsupportedFormat, "microcode %d", code.Imm())
			}
			current.MicrocodeID = code.Imm()
			current.Offset = at
			chunks = append(chunks, current)
			previous = current
			current = &Chunk{}
		case CmdSTMASK:
			if err := d.need(offset, 4); err != nil {
				return nil, err
			}
			d.tracef(offset, "  mask 0x%08x", binary.LittleEndian.Uint32(d.data[offset:]))
			offset += 4
		case CmdDIRECT:
			n := code.Imm()
			if err := d.need(offset, n*gif.Size); err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				tag, err := gif.Parse(d.data, offset+i*gif.Size)
				if err != nil {
					return nil, err
				}
				d.tracef(offset+i*gif.Size, "  %s", tag)
				current.DirectTags = append(current.DirectTags, tag)
			}
			offset += n * gif.Size
		default:
			return nil, bgda.Errorf(at, bgda.ErrUnknownOpcode, "%s", code)
		}
	}

	if !current.empty() {
		d.warnf(offset, ErrUnterminated, "%d vertices dropped", len(current.Vertices))
	}
	return chunks, nil
}

// unpack decodes the data of an UNPACK command located at offset, and returns
// the offset following the data.
func (d *vifDecoder) unpack(code Code, at, offset int, current, previous *Chunk) (int, error) {
	num := code.Num()
	switch vn, vl := code.VN(), code.VL(); {
	case vn == 1 && vl == 1:
		// V2-16. Texture coordinates follow the MSCAL of the chunk they
		// belong to.
		size := num * 4
		if err := d.need(offset, size); err != nil {
			return 0, err
		}
		if previous == nil {
			d.tracef(at, "  no chunk for %d UVs", num)
			return offset + size, nil
		}
		for i := 0; i < num; i++ {
			p := offset + i*4
			previous.UVs = append(previous.UVs, UV{
				U: int16(d.u16(p)),
				V: int16(d.u16(p + 2)),
			})
		}
		return offset + size, nil

	case vn == 2 && vl == 1:
		// V3-16. Signed data holds positions, unsigned data holds locators.
		size := num * 6
		if err := d.need(offset, size); err != nil {
			return 0, err
		}
		for i := 0; i < num; i++ {
			p := offset + i*6
			if code.Unsigned() {
				current.VLocs = append(current.VLocs, VLoc{
					V1: d.u16(p),
					V2: d.u16(p + 2),
					V3: d.u16(p + 4),
				})
			} else {
				current.Vertices = append(current.Vertices, Vertex{
					X: int16(d.u16(p)),
					Y: int16(d.u16(p + 2)),
					Z: int16(d.u16(p + 4)),
				})
			}
		}
		return d.start + ((offset + size - d.start + 3) &^ 3), nil

	case vn == 2 && vl == 2:
		// V3-8 normals.
		if err := d.need(offset, num*3); err != nil {
			return 0, err
		}
		for i := 0; i < num; i++ {
			p := offset + i*3
			current.Normals = append(current.Normals, Normal{
				X: int8(d.data[p]),
				Y: int8(d.data[p+1]),
				Z: int8(d.data[p+2]),
			})
		}
		return offset + ((num*3 + 3) &^ 3), nil

	case vn == 3 && vl == 0:
		// V4-32 GIF tags.
		size := num * 16
		if err := d.need(offset, size); err != nil {
			return 0, err
		}
		if num != 1 && num != 2 {
			d.warnf(at, bgda.ErrUnsupportedFormat, "%d GIF tags", num)
			return offset + size, nil
		}
		tag, err := gif.Parse(d.data, offset)
		if err != nil {
			return 0, err
		}
		d.tracef(offset, "  %s", tag)
		current.Tag0 = &tag
		if num == 2 {
			tag, err := gif.Parse(d.data, offset+gif.Size)
			if err != nil {
				return 0, err
			}
			d.tracef(offset+gif.Size, "  %s", tag)
			current.Tag1 = &tag
		}
		return offset + size, nil

	case vn == 3 && vl == 1:
		// V4-16 extra locators.
		size := num * 8
		if err := d.need(offset, size); err != nil {
			return 0, err
		}
		if !code.Unsigned() {
			d.warnf(at, bgda.ErrUnsupportedFormat, "signed V4-16 data")
			return offset + size, nil
		}
		current.ExtraVLocs = make([]uint16, num*4)
		for i := range current.ExtraVLocs {
			current.ExtraVLocs[i] = d.u16(offset + i*2)
		}
		return offset + size, nil

	case vn == 3 && vl == 2:
		// V4-8 vertex weights.
		size := num * 4
		weights, end, err := d.weights(offset, num)
		if err != nil {
			return 0, err
		}
		if end != offset+size {
			d.warnf(at, bgda.ErrMalformedHeader, "vertex weights span %d bytes, expected %d", end-offset, size)
		}
		current.VertexWeights = weights
		return offset + size, nil
	}
	return 0, bgda.Errorf(at, bgda.ErrUnknownOpcode, "%s", code)
}

// weights decodes num vertex weight records at offset. Records with two bones
// whose weights do not sum to 255 are followed by a record holding bones 3
// and 4, which counts towards num.
func (d *vifDecoder) weights(offset, num int) (weights []VertexWeight, end int, err error) {
	p := offset
	vertex := 0
	for i := 0; i < num; i++ {
		if err := d.need(p, 4); err != nil {
			return nil, 0, err
		}
		bone1, weight1, bone2 := d.data[p], d.data[p+1], d.data[p+2]
		p += 3
		w := VertexWeight{
			StartVertex: vertex,
			Bones:       []BoneWeight{{Bone: bone1 / 4, Weight: weight1}},
		}
		if bone2 == 0xFF {
			// Single bone, repeated over a run of vertices.
			vertex += int(d.data[p])
			p++
		} else {
			weight2 := d.data[p]
			p++
			w.Bones = append(w.Bones, BoneWeight{Bone: bone2 / 4, Weight: weight2})
			vertex++
			if int(weight1)+int(weight2) < 255 {
				i++
				if err := d.need(p, 4); err != nil {
					return nil, 0, err
				}
				bone3, weight3, bone4, weight4 := d.data[p], d.data[p+1], d.data[p+2], d.data[p+3]
				p += 4
				w.Bones = append(w.Bones, BoneWeight{Bone: bone3 / 4, Weight: weight3})
				if bone4 != 0xFF {
					w.Bones = append(w.Bones, BoneWeight{Bone: bone4 / 4, Weight: weight4})
				}
			}
		}
		w.EndVertex = vertex - 1
		weights = append(weights, w)
	}
	return weights, p, nil
}
