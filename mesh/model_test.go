package mesh

import (
	"encoding/binary"
	"testing"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/vif"
)

type model struct {
	b []byte
}

func (m *model) u16(v ...int) {
	for _, v := range v {
		m.b = binary.LittleEndian.AppendUint16(m.b, uint16(v))
	}
}

func (m *model) u32(v ...uint32) {
	for _, v := range v {
		m.b = binary.LittleEndian.AppendUint32(m.b, v)
	}
}

func (m *model) code(cmd, num, imm int) {
	m.u32(uint32(imm&0xFFFF) | uint32(num&0xFF)<<16 | uint32(cmd)<<24)
}

func (m *model) pad(n int) {
	for len(m.b) < n {
		m.b = append(m.b, 0)
	}
}

// triangle appends a VIF stream drawing a single textured triangle, scaled by
// s.
func (m *model) triangle(s int) {
	m.code(0x6C, 1, 0) // UNPACK V4-32
	m.u32(3|0x8000, gifStrip<<15|1<<28, 0x512, 0)
	m.code(0x69, 3, 0) // UNPACK V3-16
	m.u16(0, 0, 0, 16*s, 0, 0, 0, 16*s, 0)
	m.pad(len(m.b) + 2)
	m.code(0x69, 5, 0x4000) // UNPACK V3-16, unsigned
	m.u16(0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 2, 0, 0)
	m.pad(len(m.b) + 2)
	m.code(0x6A, 3, 0) // UNPACK V3-8
	m.b = append(m.b, 0, 0, 127, 0, 0, 127, 0, 0, 127, 0, 0, 0)
	m.code(vif.CmdMSCAL, 0, 66)
	m.code(0x65, 3, 0) // UNPACK V2-16
	m.u16(0, 0, 16, 0, 0, 16)
}

const gifStrip = 4

func TestMeshTable(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *model)
		want  []uint32
	}{
		{"plain", func(m *model) {
			m.pad(0x12)
			m.b = append(m.b, 2)
			m.pad(0x28)
			m.u32(0x40, 0x50, 0x60)
		}, []uint32{0x40, 0x50, 0x60}},
		{"1.30", func(m *model) {
			m.u32(modelSig130)
			m.pad(0x12)
			m.b = append(m.b, 7)
			m.pad(0x4A)
			m.b = append(m.b, 1)
			m.pad(0x68)
			m.u32(0x80, 0x90)
		}, []uint32{0x80, 0x90}},
		{"zero count", func(m *model) {
			m.pad(0x68)
			m.u32(0x70, 0x74)
		}, []uint32{0x70, 0x74}},
	}
	for _, test := range tests {
		var m model
		test.build(&m)
		got, err := meshTable(m.b)
		if err != nil {
			t.Errorf("%s: %s", test.name, err)
			continue
		}
		if len(got) != len(test.want) {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, got)
			continue
		}
		for i := range got {
			if got[i] != test.want[i] {
				t.Errorf("%s: expected %v, got %v", test.name, test.want, got)
				break
			}
		}
	}
}

func TestMeshTableTruncated(t *testing.T) {
	var m model
	m.pad(0x12)
	m.b = append(m.b, 3)
	m.pad(0x28)
	m.u32(0x40, 0x50)
	_, err := meshTable(m.b)
	if !errors.Is(err, bgda.ErrMalformedHeader) {
		t.Fatalf("expected malformed header, got %v", err)
	}
	var derr bgda.DataError
	if !errors.As(err, &derr) || derr.Offset != 0x30 {
		t.Errorf("expected error at 0x30, got %v", err)
	}

	if _, err := meshTable(make([]byte, 0x10)); !errors.Is(err, bgda.ErrMalformedHeader) {
		t.Errorf("expected malformed header for short model, got %v", err)
	}
}

func TestModelDecode(t *testing.T) {
	var m model
	m.pad(0x12)
	m.b = append(m.b, 2)
	m.pad(0x28)
	m.u32(0, 0, 0)
	m.pad(0x40)
	first := len(m.b)
	m.triangle(1)
	second := len(m.b)
	m.triangle(2)
	binary.LittleEndian.PutUint32(m.b[0x28:], uint32(first))
	binary.LittleEndian.PutUint32(m.b[0x2C:], uint32(second))
	binary.LittleEndian.PutUint32(m.b[0x30:], uint32(len(m.b)))

	d := ModelDecoder{Assembler: Assembler{TextureWidth: 1, TextureHeight: 1}}
	meshes, warn, err := d.Decode(m.b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if warn != nil {
		t.Errorf("unexpected warnings: %s", warn)
	}
	if len(meshes) != 2 {
		t.Fatalf("unexpected mesh count (expected 2, got %d)", len(meshes))
	}
	for i, mesh := range meshes {
		checkTriangles(t, mesh.Triangles, 0, 1, 2)
		s := float32(i + 1)
		if p := mesh.Positions[2]; p != (Vec3{0, s, 0}) {
			t.Errorf("mesh %d: unexpected position %v", i, p)
		}
		if n := mesh.Normals[0]; n != (Vec3{0, 0, 1}) {
			t.Errorf("mesh %d: unexpected normal %v", i, n)
		}
		if uv := mesh.UVs[1]; uv != (UV{1, 0, true}) {
			t.Errorf("mesh %d: unexpected UV %v", i, uv)
		}
	}

	// A stream bound past the end of the model fails the mesh.
	binary.LittleEndian.PutUint32(m.b[0x30:], uint32(len(m.b)+4))
	if _, _, err := d.Decode(m.b); !errors.Is(err, bgda.ErrAddressOverflow) {
		t.Errorf("expected address overflow, got %v", err)
	}
}
