package gs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/anaminus/parse"
	"github.com/bigianb/bgda-explorer"
	"github.com/bkaradzic/go-lz4"
)

// Snapshot signature.
const snapshotSig = "GSM1"

// WriteTo writes a compressed snapshot of the memory to w. The snapshot is the
// signature, the compressed length as a little-endian uint32, and the
// lz4-compressed contents.
func (m *Memory) WriteTo(w io.Writer) (n int64, err error) {
	fw := parse.NewBinaryWriter(w)
	if fw.Bytes([]byte(snapshotSig)) {
		return fw.End()
	}

	var compressedData []byte
	compressedData, err = lz4.Encode(compressedData, m.mem)
	if fw.Add(0, err) {
		return fw.End()
	}

	// lz4 prepends the uncompressed length, which is fixed.
	compressedPayload := compressedData[4:]
	if fw.Number(uint32(len(compressedPayload))) {
		return fw.End()
	}
	fw.Bytes(compressedPayload)
	return fw.End()
}

// ReadFrom replaces the contents of the memory with a snapshot read from r.
func (m *Memory) ReadFrom(r io.Reader) (n int64, err error) {
	fr := parse.NewBinaryReader(r)

	sig := make([]byte, len(snapshotSig))
	if fr.Bytes(sig) {
		return fr.End()
	}
	if !bytes.Equal(sig, []byte(snapshotSig)) {
		fr.Add(0, bgda.DataError{Offset: 0, Cause: bgda.ErrMalformedHeader})
		return fr.End()
	}

	var compressedLength uint32
	if fr.Number(&compressedLength) {
		return fr.End()
	}
	if compressedLength > Size+Size/2 {
		fr.Add(0, bgda.Errorf(4, bgda.ErrMalformedHeader, "compressed length %d", compressedLength))
		return fr.End()
	}

	compressedData := make([]byte, compressedLength+4)
	binary.LittleEndian.PutUint32(compressedData, Size)
	if fr.Bytes(compressedData[4:]) {
		return fr.End()
	}

	mem := make([]byte, Size)
	decoded, err := lz4.Decode(mem, compressedData)
	if err != nil {
		fr.Add(0, fmt.Errorf("lz4: %w", err))
		return fr.End()
	}
	if len(decoded) != Size {
		fr.Add(0, bgda.Errorf(8, bgda.ErrMalformedHeader, "snapshot holds %d bytes", len(decoded)))
		return fr.End()
	}
	if m.mem == nil {
		m.mem = make([]byte, Size)
	}
	copy(m.mem, decoded)
	return fr.End()
}
