// Package gs emulates the local memory of the PS2 Graphics Synthesizer.
//
// GS memory is not linear: each pixel storage mode arranges pixels into pages,
// blocks within pages, and columns within blocks, according to fixed
// permutation tables. Texture data uploaded in one mode and read back in
// another must pass through this arrangement to be recovered. Memory
// reproduces the arrangement for PSMCT32 writes and PSMCT32, PSMT8 and PSMT4
// reads.
//
// Throughout the package, dbp is a base pointer in units of 256-byte blocks,
// dbw is a buffer width in units of 64 pixels, and x, y, w, h describe the
// transferred rectangle in pixels of the accessed format.
package gs

import (
	"github.com/bigianb/bgda-explorer"
)

// Size is the size of GS local memory, in bytes.
const Size = 4 << 20

// Pixel storage modes, as found in the DPSM field of BITBLTBUF.
const (
	PSMCT32  = 0x00
	PSMCT24  = 0x01
	PSMCT16  = 0x02
	PSMCT16S = 0x0A
	PSMT8    = 0x13
	PSMT4    = 0x14
	PSMT8H   = 0x1B
	PSMT4HL  = 0x24
	PSMT4HH  = 0x2C
)

// Memory is an image of GS local memory. Reads return freshly allocated
// slices, and writes copy from the source, so a Memory never shares storage
// with its caller.
type Memory struct {
	mem []byte
}

// New returns a zeroed Memory.
func New() *Memory {
	return &Memory{mem: make([]byte, Size)}
}

// Bytes returns a copy of the raw contents of the memory.
func (m *Memory) Bytes() []byte {
	b := make([]byte, len(m.mem))
	copy(b, m.mem)
	return b
}

func overflow(addr int) error {
	return bgda.Errorf(addr, bgda.ErrAddressOverflow, "beyond %d byte GS memory", Size)
}

// AddrPSMCT32 returns the byte address of the 32-bit pixel at x, y.
func AddrPSMCT32(dbp, dbw, x, y int) int {
	pageX := x / 64
	pageY := y / 32
	page := pageX + pageY*dbw

	px := x - pageX*64
	py := y - pageY*32

	blockX := px / 8
	blockY := py / 8
	block := Block32[blockX+blockY*8]

	bx := px - blockX*8
	by := py - blockY*8

	column := by / 2
	cy := by - column*2
	cw := ColumnWord32[bx+cy*8]

	return 4 * (dbp*64 + page*2048 + block*64 + column*16 + cw)
}

// AddrPSMT8 returns the byte address of the 8-bit pixel at x, y. dbw is given
// in PSMCT32 units, as programmed into BITBLTBUF.
func AddrPSMT8(dbp, dbw, x, y int) int {
	dbw >>= 1

	pageX := x / 128
	pageY := y / 64
	page := pageX + pageY*dbw

	px := x - pageX*128
	py := y - pageY*64

	blockX := px / 16
	blockY := py / 16
	block := Block8[blockX+blockY*8]

	bx := px - blockX*16
	by := py - blockY*16

	column := by / 4
	cy := by - column*4
	cw := ColumnWord8[column&1][bx+cy*16]
	cb := ColumnByte8[bx+cy*16]

	return 4*(dbp*64+page*2048+block*64+column*16+cw) + cb
}

// AddrPSMT4 returns the nibble address of the 4-bit pixel at x, y; the byte
// address is the result shifted right by one, and the low bit selects the
// high nibble. dbw is given in PSMCT32 units, as programmed into BITBLTBUF.
func AddrPSMT4(dbp, dbw, x, y int) int {
	dbw >>= 1

	pageX := x / 128
	pageY := y / 128
	page := pageX + pageY*dbw

	px := x - pageX*128
	py := y - pageY*128

	blockX := px / 32
	blockY := py / 16
	block := Block4[blockX+blockY*4]

	bx := px - blockX*32
	by := py - blockY*16

	column := by / 4
	cy := by - column*4
	cw := ColumnWord4[column&1][bx+cy*32]
	cb := ColumnByte4[bx+cy*32]

	return 8*(dbp*64+page*2048+block*64+column*16+cw) + cb
}

// checkRect returns an overflow error for the first of the n leading pixels
// of a w by h rectangle, in row order, whose last byte lies outside of the
// memory. size is the number of bytes occupied by the pixel at the address.
func checkRect(x, y, w, h, n, size int, addr func(x, y int) int) error {
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			if n <= 0 {
				return nil
			}
			n--
			if a := addr(px, py); a < 0 || a+size > Size {
				return overflow(a)
			}
		}
	}
	return nil
}

// WritePSMCT32 transfers a w by h rectangle of 32-bit pixels from src,
// starting at srcOffset, into the memory. Each pixel is stored with its byte
// order reversed. The transfer stops early if src runs out. Returns the number
// of bytes consumed from src.
//
// If any pixel would land outside of the memory, nothing is written.
func (m *Memory) WritePSMCT32(dbp, dbw, x, y, w, h int, src []byte, srcOffset int) (n int, err error) {
	avail := 0
	if srcOffset >= 0 && srcOffset < len(src) {
		avail = (len(src) - srcOffset) / 4
	}
	if err := checkRect(x, y, w, h, avail, 4, func(x, y int) int { return AddrPSMCT32(dbp, dbw, x, y) }); err != nil {
		return 0, err
	}
	i := srcOffset
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			if i < 0 || i+3 >= len(src) {
				return i - srcOffset, nil
			}
			addr := AddrPSMCT32(dbp, dbw, px, py)
			m.mem[addr+0] = src[i+3]
			m.mem[addr+1] = src[i+2]
			m.mem[addr+2] = src[i+1]
			m.mem[addr+3] = src[i+0]
			i += 4
		}
	}
	return i - srcOffset, nil
}

// ReadPSMCT32 reads a w by h rectangle of 32-bit pixels. The byte order of each
// pixel is restored, so that the result matches the source of a WritePSMCT32
// over the same rectangle.
func (m *Memory) ReadPSMCT32(dbp, dbw, x, y, w, h int) ([]byte, error) {
	data := make([]byte, 0, w*h*4)
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			addr := AddrPSMCT32(dbp, dbw, px, py)
			if addr < 0 || addr+3 >= len(m.mem) {
				return data, overflow(addr)
			}
			data = append(data, m.mem[addr+3], m.mem[addr+2], m.mem[addr+1], m.mem[addr+0])
		}
	}
	return data, nil
}

// ReadPSMT8 reads a w by h rectangle of 8-bit indices, one byte per pixel.
func (m *Memory) ReadPSMT8(dbp, dbw, x, y, w, h int) ([]byte, error) {
	data := make([]byte, 0, w*h)
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			addr := AddrPSMT8(dbp, dbw, px, py)
			if addr < 0 || addr >= len(m.mem) {
				return data, overflow(addr)
			}
			data = append(data, m.mem[addr])
		}
	}
	return data, nil
}

// ReadPSMT4 reads a w by h rectangle of 4-bit indices, packed two pixels per
// byte with the first pixel in the low nibble. Pixels are packed continuously
// across rows, so an odd width shares a byte between the end of one row and
// the start of the next.
func (m *Memory) ReadPSMT4(dbp, dbw, x, y, w, h int) ([]byte, error) {
	data := make([]byte, (w*h+1)/2)
	i := 0
	odd := false
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			nib := AddrPSMT4(dbp, dbw, px, py)
			addr := nib >> 1
			if addr < 0 || addr >= len(m.mem) {
				return data[:i], overflow(addr)
			}
			v := m.mem[addr]
			if nib&1 != 0 {
				v >>= 4
			}
			v &= 0x0F
			if odd {
				data[i] |= v << 4
				i++
			} else {
				data[i] = v
			}
			odd = !odd
		}
	}
	return data, nil
}

// ReswizzlePSMT4 uploads a w by h PSMCT32 transfer from src, then reads the
// same memory back as a readW by readH rectangle of PSMT4 indices, using a
// buffer width of readW/64. This recovers 4-bit textures that were uploaded
// disguised as 32-bit data. The result holds one index per byte. Both
// rectangles are checked before anything is written.
func (m *Memory) ReswizzlePSMT4(dbp, dbw, x, y, w, h int, src []byte, srcOffset int, readW, readH int) ([]byte, error) {
	readDBW := readW / 64
	if err := checkRect(x, y, readW, readH, readW*readH, 1, func(x, y int) int { return AddrPSMT4(dbp, readDBW, x, y) >> 1 }); err != nil {
		return nil, err
	}
	if _, err := m.WritePSMCT32(dbp, dbw, x, y, w, h, src, srcOffset); err != nil {
		return nil, err
	}
	packed, err := m.ReadPSMT4(dbp, readDBW, x, y, readW, readH)
	if err != nil {
		return nil, err
	}
	return ExpandPSMT4(packed, readW*readH), nil
}

// ExpandPSMT4 unpacks n 4-bit indices, low nibble first, into one byte each.
func ExpandPSMT4(packed []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		b := i >> 1
		if b >= len(packed) {
			break
		}
		if i&1 == 0 {
			out[i] = packed[b] & 0x0F
		} else {
			out[i] = packed[b] >> 4
		}
	}
	return out
}
