package tex

import (
	"bytes"
	"fmt"

	"github.com/anaminus/parse"
	"github.com/bigianb/bgda-explorer"
)

// HeaderSize is the encoded size of a Header, in bytes.
const HeaderSize = 0x14

// Header is the fixed header that starts every texture asset.
type Header struct {
	Width  uint16
	Height uint16
	Flags  uint16 // Not interpreted.
	// Length of the GIF stream in 16-byte units. When zero, the stream runs to
	// the end of the asset.
	StreamQuads uint16
	Reserved    [2]uint32
	// Offset of the GIF stream from the start of the asset.
	StreamOffset uint32
}

func headerError(fr *parse.BinaryReader, err error) error {
	fr.Add(0, err)
	err = fr.Err()
	if err != nil {
		return bgda.DataError{Offset: fr.N(), Cause: fmt.Errorf("%w: %w", bgda.ErrMalformedHeader, err)}
	}
	return nil
}

// ReadHeader decodes the header at the start of data.
func ReadHeader(data []byte) (h Header, err error) {
	fr := parse.NewBinaryReader(bytes.NewReader(data))
	if fr.Number(&h.Width) {
		return h, headerError(fr, nil)
	}
	if fr.Number(&h.Height) {
		return h, headerError(fr, nil)
	}
	if fr.Number(&h.Flags) {
		return h, headerError(fr, nil)
	}
	if fr.Number(&h.StreamQuads) {
		return h, headerError(fr, nil)
	}
	for i := range h.Reserved {
		if fr.Number(&h.Reserved[i]) {
			return h, headerError(fr, nil)
		}
	}
	if fr.Number(&h.StreamOffset) {
		return h, headerError(fr, nil)
	}
	if h.Width == 0 || h.Height == 0 {
		return h, bgda.Errorf(0, bgda.ErrMalformedHeader, "empty %dx%d raster", h.Width, h.Height)
	}
	if int64(h.StreamOffset) < HeaderSize || int64(h.StreamOffset) >= int64(len(data)) {
		return h, bgda.Errorf(0x10, bgda.ErrMalformedHeader, "GIF stream offset 0x%X outside of %d byte asset", h.StreamOffset, len(data))
	}
	return h, nil
}

// StreamBounds returns the byte range of the GIF stream within an asset of
// size n. A declared length running past the asset is clamped, which is
// reported by ok being false.
func (h Header) StreamBounds(n int) (start, end int, ok bool) {
	start = int(h.StreamOffset)
	if h.StreamQuads == 0 {
		return start, n, true
	}
	end = start + int(h.StreamQuads)*16
	if end > n {
		return start, n, false
	}
	return start, end, true
}
