// Package tex reconstructs RGBA rasters from texture assets.
//
// A texture asset is a header followed by a GIF packet stream that, when sent
// to the GS, uploads a palette and a swizzled image. The Decoder replays the
// image uploads into an emulated GS memory and reads the result back in the
// storage mode the game samples it with.
package tex

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/gif"
	"github.com/bigianb/bgda-explorer/gs"
)

// GS registers written through A+D packets.
const (
	regBITBLTBUF = 0x50
	regTRXPOS    = 0x51
	regTRXREG    = 0x52
)

// Decoder decodes texture assets into images.
type Decoder struct {
	// Memory is the GS memory image used by the decoder. If nil, each call to
	// Decode uses a new one. Supplying a Memory lets the caller inspect the
	// uploaded data afterwards.
	Memory *gs.Memory

	// Trace, if not nil, receives a line for every GIF tag walked and every
	// transfer performed.
	Trace io.Writer
}

// transfer holds the state of the transfer registers.
type transfer struct {
	dbp, dbw, dpsm int
	x, y           int
	rrw, rrh       int
}

type texDecoder struct {
	Decoder
	data  []byte
	mem   *gs.Memory
	end   int
	warns errors.Errors
}

func (d *texDecoder) tracef(offset int, format string, a ...interface{}) {
	if d.Trace == nil {
		return
	}
	fmt.Fprintf(d.Trace, "%.6x: %s\n", offset, fmt.Sprintf(format, a...))
}

func (d *texDecoder) warnf(offset int, kind error, format string, a ...interface{}) {
	err := bgda.Errorf(offset, kind, format, a...)
	d.tracef(offset, "warning: %s", err)
	d.warns = d.warns.Append(err)
}

func (d *texDecoder) u16(offset int) int {
	return int(binary.LittleEndian.Uint16(d.data[offset:]))
}

func (d *texDecoder) tag(offset int) (gif.Tag, error) {
	if offset+gif.Size > d.end {
		return gif.Tag{}, bgda.Errorf(offset, bgda.ErrAddressOverflow, "GIF tag past end of stream at 0x%X", d.end)
	}
	t, err := gif.Parse(d.data, offset)
	if err != nil {
		return t, err
	}
	d.tracef(offset, "%s", t)
	return t, nil
}

// Decode reconstructs the image held by a texture asset. Recoverable problems
// are returned as warn. Assets that do not use a supported layout produce an
// error matching bgda.ErrUnsupportedFormat.
func (d Decoder) Decode(data []byte) (img *image.NRGBA, warn, err error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, nil, err
	}

	td := &texDecoder{Decoder: d, data: data, mem: d.Memory}
	if td.mem == nil {
		td.mem = gs.New()
	}
	start, end, ok := h.StreamBounds(len(data))
	td.end = end
	if !ok {
		td.warnf(6, bgda.ErrMalformedHeader, "GIF stream of %d quadwords is truncated to 0x%X", h.StreamQuads, end)
	}

	first, err := td.tag(start)
	if err != nil {
		return nil, td.warns.Return(), err
	}

	switch first.NLoop {
	case 4:
		img, err = td.decodeIndexed(h, start, first)
	case 3:
		img, err = td.decodeDirect(h, start, first)
	default:
		td.tracef(start, "skipped: no layout for loop count %d", first.NLoop)
		err = bgda.Errorf(start, bgda.ErrUnsupportedFormat, "texture with GIF loop count %d", first.NLoop)
	}
	if err != nil {
		return nil, td.warns.Return(), err
	}
	return img, td.warns.Return(), nil
}

// findAD returns the location of the data of the first A+D entry that writes
// to reg, within the nloop entries starting at offset.
func (d *texDecoder) findAD(offset, nloop, reg int) (int, bool) {
	for i := 0; i < nloop; i++ {
		entry := offset + i*0x10
		if entry+0x10 > d.end {
			d.warnf(entry, bgda.ErrAddressOverflow, "A+D entry %d past end of stream", i)
			return 0, false
		}
		if binary.LittleEndian.Uint32(d.data[entry+8:]) == uint32(reg) {
			return entry, true
		}
	}
	return 0, false
}

// scanRegisters updates t with the transfer registers set by the A+D packet
// of nloop entries at offset. Registers that are not written keep their
// value.
func (d *texDecoder) scanRegisters(offset, nloop int, t *transfer) {
	if e, ok := d.findAD(offset, nloop, regTRXREG); ok {
		t.rrw = d.u16(e)
		t.rrh = d.u16(e + 4)
		d.tracef(e, "TRXREG rrw=%d rrh=%d", t.rrw, t.rrh)
	}
	if e, ok := d.findAD(offset, nloop, regTRXPOS); ok {
		t.x = d.u16(e+4) & 0x7FF
		t.y = d.u16(e+6) & 0x7FF
		d.tracef(e, "TRXPOS dsax=%d dsay=%d", t.x, t.y)
	}
	if e, ok := d.findAD(offset, nloop, regBITBLTBUF); ok {
		t.dbp = d.u16(e+4) & 0x3FFF
		t.dbw = int(d.data[e+6]) & 0x3F
		t.dpsm = int(d.data[e+7]) & 0x3F
		d.tracef(e, "BITBLTBUF dbp=0x%X dbw=%d dpsm=0x%X", t.dbp, t.dbw, t.dpsm)
	}
}

// overflowAddress returns the GS address of an overflow reported by the
// memory.
func overflowAddress(err error) (int64, bool) {
	var derr bgda.DataError
	if !errors.Is(err, bgda.ErrAddressOverflow) || !errors.As(err, &derr) {
		return 0, false
	}
	return derr.Offset, true
}

func (d *texDecoder) decodeIndexed(h Header, cur int, first gif.Tag) (*image.NRGBA, error) {
	if cur+0x36 > d.end {
		return nil, bgda.Errorf(cur, bgda.ErrMalformedHeader, "palette registers past end of stream")
	}
	palW := d.u16(cur + 0x30)
	palH := d.u16(cur + 0x34)
	cur += first.Length()

	palTag, err := d.tag(cur)
	if err != nil {
		return nil, err
	}
	n := palW * palH
	switch n {
	case 16, 256, 1024:
	default:
		return nil, bgda.Errorf(cur, bgda.ErrUnsupportedFormat, "palette of %dx%d entries", palW, palH)
	}
	if cur+gif.Size+n*4 > d.end {
		return nil, bgda.Errorf(cur+gif.Size, bgda.ErrAddressOverflow, "palette of %d entries past end of stream", n)
	}
	palette := UnswizzlePalette(ReadPalette(d.data[cur+gif.Size:], n))
	d.tracef(cur, "palette %dx%d", palW, palH)
	cur += palTag.Length()

	width := int(h.Width)
	height := int(h.Height)
	destW := (width + 0x0F) &^ 0x0F
	destH := (height + 0x0F) &^ 0x0F

	var t transfer
	var indices []byte
	for cur < d.end-gif.Size {
		tag, err := d.tag(cur)
		if err != nil {
			return nil, err
		}
		for !tag.IsImage() {
			d.scanRegisters(cur+gif.Size, tag.NLoop, &t)
			cur += tag.Length()
			if cur+gif.Size >= d.end {
				break
			}
			if tag, err = d.tag(cur); err != nil {
				return nil, err
			}
		}
		if !tag.IsImage() {
			break
		}

		cur += gif.Size
		size := tag.NLoop * 16
		if cur+size > d.end {
			return nil, bgda.Errorf(cur, bgda.ErrAddressOverflow, "image of %d bytes past end of stream at 0x%X", size, d.end)
		}

		switch {
		case len(palette) == 16 && t.dpsm == gs.PSMCT32:
			src, srcOffset := d.data[:d.end], cur
			if next := cur + size; next < d.end-gif.Size {
				if tag2, err := gif.Parse(d.data, next); err == nil && tag2.IsImage() {
					size2 := tag2.NLoop * 16
					if next+gif.Size+size2 > d.end {
						return nil, bgda.Errorf(next+gif.Size, bgda.ErrAddressOverflow, "image of %d bytes past end of stream at 0x%X", size2, d.end)
					}
					d.tracef(next, "%s joined to previous image", tag2)
					src = make([]byte, 0, size+size2)
					src = append(src, d.data[cur:cur+size]...)
					src = append(src, d.data[next+gif.Size:next+gif.Size+size2]...)
					srcOffset = 0
					size += tag2.Length()
				}
			}
			destW = (width + 0x3F) &^ 0x3F
			d.tracef(cur, "PSMCT32 upload %dx%d at (%d, %d), read as PSMT4 %dx%d", t.rrw, t.rrh, t.x, t.y, destW, destH)
			idx, err := d.mem.ReswizzlePSMT4(t.dbp, t.dbw, t.x, t.y, t.rrw, t.rrh, src, srcOffset, destW, destH)
			if err != nil {
				addr, ok := overflowAddress(err)
				if !ok {
					return nil, err
				}
				d.warnf(cur, bgda.ErrAddressOverflow, "transfer skipped at GS address 0x%X", addr)
				break
			}
			indices = idx
		case len(palette) == 16:
			if t.dpsm != gs.PSMT4 {
				d.warnf(cur, bgda.ErrUnsupportedFormat, "4-bit image uploaded as DPSM 0x%X copied as PSMT4", t.dpsm)
			}
			if len(indices) != destW*destH {
				indices = make([]byte, destW*destH)
			}
			d.copyPSMT4(indices, cur, t, destW, destH)
		default:
			d.tracef(cur, "PSMCT32 upload %dx%d at (%d, %d)", t.rrw, t.rrh, t.x, t.y)
			if _, err := d.mem.WritePSMCT32(t.dbp, t.dbw, t.x, t.y, t.rrw, t.rrh, d.data[:d.end], cur); err != nil {
				addr, ok := overflowAddress(err)
				if !ok {
					return nil, err
				}
				d.warnf(cur, bgda.ErrAddressOverflow, "transfer skipped at GS address 0x%X", addr)
			}
		}
		cur += size
	}

	if len(palette) > 16 {
		if len(palette) == 256 {
			destW = (width + 0x7F) &^ 0x7F
		} else {
			destW = (width + 0x3F) &^ 0x3F
		}
		d.tracef(cur, "PSMT8 read %dx%d at dbp=0x%X", destW, height, t.dbp)
		idx, err := d.mem.ReadPSMT8(t.dbp, destW/0x40, 0, 0, destW, height)
		if err != nil {
			addr, ok := overflowAddress(err)
			if !ok {
				return nil, err
			}
			d.warnf(cur, bgda.ErrAddressOverflow, "PSMT8 read stopped at GS address 0x%X", addr)
		} else {
			indices = idx
		}
	}
	if indices == nil {
		d.warnf(cur, bgda.ErrMalformedHeader, "no image data in stream")
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	bad := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width && x < destW; x++ {
			i := y*destW + x
			if i >= len(indices) {
				break
			}
			v := int(indices[i])
			if v >= len(palette) {
				bad++
				continue
			}
			img.SetNRGBA(x, y, palette[v].NRGBA())
		}
	}
	if bad > 0 {
		d.warnf(cur, bgda.ErrAddressOverflow, "%d pixels index outside of %d entry palette", bad, len(palette))
	}
	return img, nil
}

// copyPSMT4 copies a 4-bit image that was uploaded as PSMT4, and so was not
// swizzled, into indices. Pixels are stored two per byte, low nibble first.
func (d *texDecoder) copyPSMT4(indices []byte, offset int, t transfer, destW, destH int) {
	d.tracef(offset, "PSMT4 copy %dx%d at (%d, %d)", t.rrw, t.rrh, t.x, t.y)
	src := offset
	var pair [2]byte
	nib := 2
	clipped := 0
	for y := 0; y < t.rrh && y+t.y < destH; y++ {
		for x := 0; x < t.rrw; x++ {
			if nib > 1 {
				if src >= d.end {
					d.warnf(src, bgda.ErrAddressOverflow, "PSMT4 copy stopped at row %d", y)
					return
				}
				b := d.data[src]
				src++
				pair[0] = b & 0x0F
				pair[1] = b >> 4
				nib = 0
			}
			if x+t.x < destW {
				indices[(y+t.y)*destW+x+t.x] = pair[nib]
			} else {
				clipped++
			}
			nib++
		}
	}
	if clipped > 0 {
		d.warnf(offset, bgda.ErrAddressOverflow, "%d pixels outside of %d pixel wide image", clipped, destW)
	}
}

// decodeDirect reads an unpalettized image, which follows the first IMAGE tag
// of the stream as 32-bit pixels.
func (d *texDecoder) decodeDirect(h Header, cur int, first gif.Tag) (*image.NRGBA, error) {
	cur += first.Length()
	for {
		if cur+gif.Size > d.end {
			return nil, bgda.Errorf(cur, bgda.ErrMalformedHeader, "no IMAGE tag in stream")
		}
		tag, err := d.tag(cur)
		if err != nil {
			return nil, err
		}
		if tag.IsImage() {
			break
		}
		cur += tag.Length()
	}
	cur += gif.Size

	width := int(h.Width)
	height := int(h.Height)
	if cur+width*height*4 > d.end {
		return nil, bgda.Errorf(cur, bgda.ErrAddressOverflow, "%dx%d pixels past end of stream", width, height)
	}
	pixels := ReadPalette(d.data[cur:], width*height)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range pixels {
		img.SetNRGBA(i%width, i/width, p.NRGBA())
	}
	return img, nil
}
