// Package bgda decodes assets of the Baldur's Gate: Dark Alliance engine
// family: GS-memory textures and VIF-program encoded meshes.
//
// The work is split between several packages. The gif package parses GS
// primitive descriptors, the gs package emulates the swizzled GS local memory,
// the tex package rebuilds RGBA rasters from texture assets, the vif package
// interprets VIF bytecode into per-batch chunks, and the mesh package
// assembles those chunks into indexed triangle meshes.
//
// This package holds the error kinds shared by all of them.
package bgda

import (
	"strconv"
	"strings"

	"github.com/bigianb/bgda-explorer/errors"
)

var (
	// Indicates that a header or descriptor is truncated or inconsistent.
	ErrMalformedHeader = errors.New("malformed header")
	// Indicates a pixel storage mode, loop count, primitive type or palette
	// size that is not handled.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// Indicates an address outside of GS memory, or a read past the end of the
	// declared data. It usually means that the stream was misparsed.
	ErrAddressOverflow = errors.New("address overflow")
	// Indicates a VIF command that cannot be interpreted.
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// DataError wraps an error that occurred while decoding byte data.
type DataError struct {
	// Offset is the byte offset where the error occurred. For errors produced
	// by GS memory, this is the GS byte address.
	Offset int64

	Cause error
}

func (err DataError) Error() string {
	var s strings.Builder
	s.WriteString("data error")
	if err.Offset >= 0 {
		s.WriteString(" at 0x")
		s.Write(strconv.AppendInt(nil, err.Offset, 16))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err DataError) Unwrap() error {
	return err.Cause
}

// Errorf returns a DataError at offset whose cause wraps kind with additional
// detail.
func Errorf(offset int, kind error, format string, a ...interface{}) error {
	return DataError{Offset: int64(offset), Cause: errors.Detail(kind, format, a...)}
}
