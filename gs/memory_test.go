package gs

import (
	"bytes"
	"testing"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
)

func TestAddrPSMCT32Reference(t *testing.T) {
	// Layout of the first page of a PSMCT32 buffer: pixels pair up in
	// columns, blocks of 8x8 are arranged by Block32.
	cases := []struct {
		dbp, dbw, x, y int
		addr           int
	}{
		{0, 1, 0, 0, 0x000},
		{0, 1, 1, 0, 0x004},
		{0, 1, 0, 1, 0x008},
		{0, 1, 2, 0, 0x010},
		{0, 1, 0, 2, 0x040},
		{0, 1, 8, 0, 0x100},
		{0, 1, 0, 8, 0x200},
		{0, 1, 16, 0, 0x400},
		{0, 1, 63, 31, 0x1FFC},
		{0, 1, 0, 32, 0x2000},
		{0, 2, 64, 0, 0x2000},
		{0, 2, 0, 32, 0x4000},
		{1, 1, 0, 0, 0x100},
	}
	for _, c := range cases {
		if addr := AddrPSMCT32(c.dbp, c.dbw, c.x, c.y); addr != c.addr {
			t.Errorf("dbp %d dbw %d (%d, %d): unexpected address (expected 0x%X, got 0x%X)", c.dbp, c.dbw, c.x, c.y, c.addr, addr)
		}
	}
}

func TestAddrPSMT8Reference(t *testing.T) {
	// Columns of 16x4 pixels; odd columns swap the halves of their words.
	cases := []struct {
		dbp, dbw, x, y int
		addr           int
	}{
		{0, 2, 0, 0, 0x000},
		{0, 2, 1, 0, 0x004},
		{0, 2, 2, 0, 0x010},
		{0, 2, 8, 0, 0x002},
		{0, 2, 0, 1, 0x008},
		{0, 2, 0, 2, 0x021},
		{0, 2, 0, 4, 0x060},
		{0, 2, 4, 4, 0x040},
		{0, 2, 8, 4, 0x062},
		{0, 2, 0, 8, 0x080},
		{0, 2, 15, 15, 0x0FF},
		{0, 2, 16, 0, 0x100},
		{0, 2, 0, 16, 0x200},
		{0, 2, 127, 63, 0x1FFF},
		{0, 4, 128, 0, 0x2000},
		{0, 2, 0, 64, 0x2000},
		{1, 2, 0, 0, 0x100},
	}
	for _, c := range cases {
		if addr := AddrPSMT8(c.dbp, c.dbw, c.x, c.y); addr != c.addr {
			t.Errorf("dbp %d dbw %d (%d, %d): unexpected address (expected 0x%X, got 0x%X)", c.dbp, c.dbw, c.x, c.y, c.addr, addr)
		}
	}
}

func TestAddrPSMT4Reference(t *testing.T) {
	// Nibble addresses. Columns hold 32x4 pixels, blocks 32x16.
	cases := []struct {
		dbp, dbw, x, y int
		addr           int
	}{
		{0, 2, 0, 0, 0x000},
		{0, 2, 1, 0, 0x008},
		{0, 2, 2, 0, 0x020},
		{0, 2, 8, 0, 0x002},
		{0, 2, 16, 0, 0x004},
		{0, 2, 0, 1, 0x010},
		{0, 2, 0, 2, 0x041},
		{0, 2, 0, 4, 0x0C0},
		{0, 2, 4, 4, 0x080},
		{0, 2, 8, 4, 0x0C2},
		{0, 2, 31, 15, 0x1FF},
		{0, 2, 32, 0, 0x400},
		{0, 2, 0, 16, 0x200},
		{0, 2, 127, 127, 0x3FFF},
		{0, 4, 128, 0, 0x4000},
		{0, 2, 0, 128, 0x4000},
		{1, 2, 0, 0, 0x200},
	}
	for _, c := range cases {
		if addr := AddrPSMT4(c.dbp, c.dbw, c.x, c.y); addr != c.addr {
			t.Errorf("dbp %d dbw %d (%d, %d): unexpected address (expected 0x%X, got 0x%X)", c.dbp, c.dbw, c.x, c.y, c.addr, addr)
		}
	}
}

func TestAddrBijective(t *testing.T) {
	// Every pixel of a page maps to a distinct location covering the whole
	// 8 KiB page.
	formats := []struct {
		name string
		w, h int
		addr func(x, y int) int
		span int
	}{
		{"PSMCT32", 64, 32, func(x, y int) int { return AddrPSMCT32(0, 1, x, y) / 4 }, 2048},
		{"PSMT8", 128, 64, func(x, y int) int { return AddrPSMT8(0, 2, x, y) }, 8192},
		{"PSMT4", 128, 128, func(x, y int) int { return AddrPSMT4(0, 2, x, y) }, 16384},
	}
	for _, f := range formats {
		seen := make([]bool, f.span)
		for y := 0; y < f.h; y++ {
			for x := 0; x < f.w; x++ {
				a := f.addr(x, y)
				if a < 0 || a >= f.span {
					t.Fatalf("%s (%d, %d): address 0x%X outside page", f.name, x, y, a)
				}
				if seen[a] {
					t.Fatalf("%s (%d, %d): address 0x%X used twice", f.name, x, y, a)
				}
				seen[a] = true
			}
		}
	}
}

func TestPSMCT32RoundTrip(t *testing.T) {
	const w, h = 64, 32
	src := make([]byte, w*h*4+3)
	for i := range src {
		src[i] = byte(i*7 + i/251)
	}
	m := New()
	n, err := m.WritePSMCT32(2, 1, 0, 0, w, h, src, 3)
	if err != nil {
		t.Fatalf("write: %s", err)
	}
	if n != w*h*4 {
		t.Errorf("unexpected bytes consumed (expected %d, got %d)", w*h*4, n)
	}
	got, err := m.ReadPSMCT32(2, 1, 0, 0, w, h)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	if !bytes.Equal(got, src[3:]) {
		t.Errorf("read does not reproduce written pixels")
	}
}

func TestPSMCT32ByteOrder(t *testing.T) {
	m := New()
	if _, err := m.WritePSMCT32(0, 1, 1, 0, 1, 1, []byte{0x11, 0x22, 0x33, 0x44}, 0); err != nil {
		t.Fatalf("write: %s", err)
	}
	raw := m.Bytes()
	if !bytes.Equal(raw[4:8], []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("unexpected stored bytes % X", raw[4:8])
	}
}

func TestWritePSMCT32ShortSource(t *testing.T) {
	m := New()
	n, err := m.WritePSMCT32(0, 1, 0, 0, 4, 4, make([]byte, 10), 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n != 8 {
		t.Errorf("unexpected bytes consumed (expected 8, got %d)", n)
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestAddressOverflow(t *testing.T) {
	m := New()
	// The first eight pixels fit in the last block, the ninth starts past
	// the end of memory.
	n, err := m.WritePSMCT32(0x3FFF, 1, 0, 0, 64, 1, bytes.Repeat([]byte{0xAB}, 256), 0)
	var werr bgda.DataError
	if !errors.Is(err, bgda.ErrAddressOverflow) || !errors.As(err, &werr) {
		t.Errorf("write: expected address overflow, got %v", err)
	} else if werr.Offset != 0x400000 {
		t.Errorf("write: unexpected overflow address (expected 0x400000, got 0x%X)", werr.Offset)
	}
	if n != 0 || !isZero(m.Bytes()) {
		t.Errorf("overflowing write modified memory (%d bytes consumed)", n)
	}

	if _, err := m.ReswizzlePSMT4(0x3FFF, 1, 0, 0, 8, 1, bytes.Repeat([]byte{0xCD}, 32), 0, 64, 16); !errors.Is(err, bgda.ErrAddressOverflow) {
		t.Errorf("reswizzle: expected address overflow, got %v", err)
	}
	if !isZero(m.Bytes()) {
		t.Errorf("overflowing reswizzle modified memory")
	}

	if _, err := m.ReadPSMT8(0x3FFF, 2, 0, 0, 128, 2); !errors.Is(err, bgda.ErrAddressOverflow) {
		t.Errorf("read PSMT8: expected address overflow, got %v", err)
	}
	if _, err := m.ReadPSMT4(0x3FFF, 2, 0, 0, 128, 2); !errors.Is(err, bgda.ErrAddressOverflow) {
		t.Errorf("read PSMT4: expected address overflow, got %v", err)
	}
	var derr bgda.DataError
	if _, err := m.ReadPSMCT32(0, 1, 0, 16384, 1, 1); !errors.As(err, &derr) || derr.Offset < Size {
		t.Errorf("read PSMCT32: expected data error beyond memory, got %v", err)
	}
}

func TestReadPSMT8(t *testing.T) {
	m := New()
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			m.mem[AddrPSMT8(0, 2, x, y)] = byte(x ^ y)
		}
	}
	data, err := m.ReadPSMT8(0, 2, 0, 0, 128, 64)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			if v := data[y*128+x]; v != byte(x^y) {
				t.Fatalf("(%d, %d): expected %d, got %d", x, y, byte(x^y), v)
			}
		}
	}
}

func TestReadPSMT4Parity(t *testing.T) {
	m := New()
	// Store the value x+y (mod 16) at every pixel of a 3x3 area.
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			nib := AddrPSMT4(0, 2, x, y)
			v := byte((x + y) & 0xF)
			if nib&1 != 0 {
				m.mem[nib>>1] |= v << 4
			} else {
				m.mem[nib>>1] |= v
			}
		}
	}
	data, err := m.ReadPSMT4(0, 2, 0, 0, 3, 3)
	if err != nil {
		t.Fatalf("read: %s", err)
	}
	if len(data) != 5 {
		t.Fatalf("unexpected length (expected 5, got %d)", len(data))
	}
	// Pixels in order: 0 1 2 / 1 2 3 / 2 3 4, packed low nibble first.
	want := []byte{0x10, 0x12, 0x32, 0x32, 0x04}
	if !bytes.Equal(data, want) {
		t.Errorf("unexpected packed indices (expected % X, got % X)", want, data)
	}
}

func TestReswizzlePSMT4(t *testing.T) {
	src := make([]byte, 32*16*4)
	for i := range src {
		src[i] = byte(i * 13)
	}
	m := New()
	got, err := m.ReswizzlePSMT4(0, 1, 0, 0, 32, 16, src, 0, 64, 32)
	if err != nil {
		t.Fatalf("reswizzle: %s", err)
	}
	if len(got) != 64*32 {
		t.Fatalf("unexpected length (expected %d, got %d)", 64*32, len(got))
	}
	raw := m.Bytes()
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			nib := AddrPSMT4(0, 1, x, y)
			v := raw[nib>>1]
			if nib&1 != 0 {
				v >>= 4
			}
			if want := v & 0xF; got[y*64+x] != want {
				t.Fatalf("(%d, %d): expected %d, got %d", x, y, want, got[y*64+x])
			}
		}
	}
}

func TestExpandPSMT4(t *testing.T) {
	got := ExpandPSMT4([]byte{0x21, 0x43, 0x05}, 5)
	want := []byte{1, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Errorf("unexpected indices (expected %v, got %v)", want, got)
	}
}

func TestSnapshot(t *testing.T) {
	m := New()
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if _, err := m.WritePSMCT32(100, 1, 0, 0, 2, 1, src, 0); err != nil {
		t.Fatalf("write: %s", err)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("snapshot: %s", err)
	}
	if buf.Len() >= Size {
		t.Errorf("snapshot is not compressed (%d bytes)", buf.Len())
	}

	r := New()
	if _, err := r.ReadFrom(&buf); err != nil {
		t.Fatalf("restore: %s", err)
	}
	if !bytes.Equal(m.Bytes(), r.Bytes()) {
		t.Errorf("restored memory differs")
	}

	if _, err := r.ReadFrom(bytes.NewReader([]byte("XXXX\x00\x00\x00\x00"))); !errors.Is(err, bgda.ErrMalformedHeader) {
		t.Errorf("expected malformed header, got %v", err)
	}
}
