package tex

import (
	"image/color"
)

// PalEntry is a colour as stored by the console. A follows the console
// convention, where 0 is opaque and 0x80 or above is fully transparent.
type PalEntry struct {
	R, G, B, A uint8
}

// Opacity returns the alpha of the entry rescaled to the conventional range
// where 0 is transparent and 255 is opaque.
func (p PalEntry) Opacity() uint8 {
	if p.A >= 0x80 {
		return 0
	}
	return 255 - 2*p.A
}

// NRGBA converts the entry to a non-premultiplied colour.
func (p PalEntry) NRGBA() color.NRGBA {
	return color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.Opacity()}
}

// ReadPalette decodes n consecutive RGBA entries from b. The caller ensures
// that b holds at least 4*n bytes.
func ReadPalette(b []byte, n int) []PalEntry {
	palette := make([]PalEntry, n)
	for i := range palette {
		e := b[i*4 : i*4+4]
		palette[i] = PalEntry{R: e[0], G: e[1], B: e[2], A: e[3]}
	}
	return palette
}

// UnswizzlePalette returns the palette in index order. The GS stores 256-entry
// CLUTs with the middle two runs of 8 entries swapped in every run of 32;
// palettes of any other size are returned unchanged. Applying the function
// twice restores the original order.
func UnswizzlePalette(palette []PalEntry) []PalEntry {
	if len(palette) != 256 {
		return palette
	}
	out := make([]PalEntry, len(palette))
	for i := 0; i < len(palette); i += 32 {
		copy(out[i:i+8], palette[i:i+8])
		copy(out[i+16:i+24], palette[i+8:i+16])
		copy(out[i+8:i+16], palette[i+16:i+24])
		copy(out[i+24:i+32], palette[i+24:i+32])
	}
	return out
}
