package mesh

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/anaminus/parse"
	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/vif"
)

// Signature of the model header revision that moves the mesh table.
const modelSig130 = 0x30332E31 // "1.30"

// ModelDecoder decodes model assets, which hold one or more VIF streams
// located through a table of offsets in the model header.
type ModelDecoder struct {
	VIF       vif.Decoder
	Assembler Assembler
}

// meshTable returns the start and end offset of each mesh stream.
func meshTable(data []byte) (offsets []uint32, err error) {
	if len(data) < 0x28 {
		return nil, bgda.Errorf(0, bgda.ErrMalformedHeader, "model header needs 0x28 bytes, %d available", len(data))
	}
	count := int(data[0x12])
	table := 0x28
	if binary.LittleEndian.Uint32(data) == modelSig130 {
		if len(data) <= 0x4A {
			return nil, bgda.Errorf(0, bgda.ErrMalformedHeader, "1.30 model header truncated")
		}
		count = int(data[0x4A])
		table = 0x68
	}
	if count == 0 {
		count = 1
		table = 0x68
	}
	if table > len(data) {
		return nil, bgda.Errorf(table, bgda.ErrMalformedHeader, "mesh table outside of %d byte model", len(data))
	}

	fr := parse.NewBinaryReader(bytes.NewReader(data[table:]))
	offsets = make([]uint32, count+1)
	for i := range offsets {
		if fr.Number(&offsets[i]) {
			return nil, bgda.DataError{
				Offset: int64(table) + fr.N(),
				Cause:  fmt.Errorf("%w: mesh table: %w", bgda.ErrMalformedHeader, fr.Err()),
			}
		}
	}
	return offsets, nil
}

// Chunks decodes the VIF stream of each mesh of a model.
func (d ModelDecoder) Chunks(data []byte) (meshes [][]*vif.Chunk, warn, err error) {
	offsets, err := meshTable(data)
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i+1 < len(offsets); i++ {
		chunks, w, err := d.VIF.Decode(data, int(offsets[i]), int(offsets[i+1]))
		warn = errors.Union(warn, w)
		if err != nil {
			return nil, warn, fmt.Errorf("mesh %d: %w", i, err)
		}
		meshes = append(meshes, chunks)
	}
	return meshes, warn, nil
}

// Decode decodes and assembles each mesh of a model.
func (d ModelDecoder) Decode(data []byte) (meshes []*Mesh, warn, err error) {
	chunks, warn, err := d.Chunks(data)
	if err != nil {
		return nil, warn, err
	}
	for i, c := range chunks {
		m, w, err := d.Assembler.Assemble(c)
		warn = errors.Union(warn, w)
		if err != nil {
			return nil, warn, fmt.Errorf("mesh %d: %w", i, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, warn, nil
}
