// Package gif parses GIF tags, the 16-byte descriptors that introduce each
// packet of data sent to the PS2 Graphics Synthesizer.
package gif

import (
	"encoding/binary"
	"fmt"

	"github.com/bigianb/bgda-explorer"
)

// Size is the encoded size of a Tag, in bytes.
const Size = 0x10

// Format is the data format of the packet following a tag.
type Format uint8

const (
	Packed  Format = 0
	RegList Format = 1
	Image   Format = 2
	Disable Format = 3
)

func (f Format) String() string {
	switch f {
	case Packed:
		return "PACKED"
	case RegList:
		return "REGLIST"
	case Image:
		return "IMAGE"
	case Disable:
		return "DISABLE"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Register descriptor codes.
const (
	RegPRIM  = 0x0
	RegRGBAQ = 0x1
	RegST    = 0x2
	RegUV    = 0x3
	RegXYZF2 = 0x4
	RegXYZ2  = 0x5
	RegFOG   = 0xA
	RegAD    = 0xE
	RegNOP   = 0xF
)

// Primitive types, as found in the low 3 bits of Tag.Prim.
const (
	PrimPoint         = 0
	PrimLine          = 1
	PrimLineStrip     = 2
	PrimTriangle      = 3
	PrimTriangleStrip = 4
	PrimTriangleFan   = 5
	PrimSprite        = 6
)

// Tag is a decoded GIF tag.
type Tag struct {
	NLoop int    // Repeat count of the register list, 15 bits.
	EOP   bool   // End of packet.
	Pre   bool   // Whether Prim is written to the PRIM register.
	Prim  uint16 // PRIM register value, 11 bits.
	Flag  Format
	NReg  int     // Number of register descriptors, 1 to 16.
	Regs  []uint8 // Register descriptor codes, NReg entries.
}

// Parse decodes the tag located at offset within b. It fails only if fewer
// than Size bytes remain.
func Parse(b []byte, offset int) (t Tag, err error) {
	if offset < 0 || offset > len(b)-Size {
		return t, bgda.Errorf(offset, bgda.ErrMalformedHeader, "GIF tag needs %d bytes, %d available", Size, len(b)-offset)
	}
	low := binary.LittleEndian.Uint32(b[offset:])
	high := binary.LittleEndian.Uint32(b[offset+4:])

	t.NLoop = int(low & 0x7FFF)
	t.EOP = low&0x8000 != 0
	t.Pre = (high>>14)&1 != 0
	t.Prim = uint16((high >> 15) & 0x7FF)
	t.Flag = Format((high >> 26) & 3)
	t.NReg = int((high >> 28) & 0xF)
	if t.NReg == 0 {
		t.NReg = 16
	}

	regs := [2]uint32{
		binary.LittleEndian.Uint32(b[offset+8:]),
		binary.LittleEndian.Uint32(b[offset+12:]),
	}
	t.Regs = make([]uint8, t.NReg)
	for i := range t.Regs {
		t.Regs[i] = uint8(regs[i>>3]>>((i&7)*4)) & 0xF
	}
	return t, nil
}

// IsImage returns whether the tag introduces raw image data.
func (t Tag) IsImage() bool {
	return t.Flag == Image
}

// PrimType returns the primitive type selected by Prim.
func (t Tag) PrimType() int {
	return int(t.Prim & 7)
}

// Length returns the number of bytes spanned by the tag and its packet data.
func (t Tag) Length() int {
	if t.Flag == Image {
		return (t.NLoop + 1) * Size
	}
	return (t.NLoop*t.NReg + 1) * Size
}

func (t Tag) String() string {
	return fmt.Sprintf("GIFTag{nloop=%d eop=%t pre=%t prim=0x%x flg=%s nreg=%d regs=%x}",
		t.NLoop, t.EOP, t.Pre, t.Prim, t.Flag, t.NReg, t.Regs)
}
