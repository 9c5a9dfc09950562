// The bgda-stat command displays stats for a model or texture asset.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigianb/bgda-explorer"
	"github.com/bigianb/bgda-explorer/errors"
	"github.com/bigianb/bgda-explorer/mesh"
	"github.com/bigianb/bgda-explorer/tex"
	"github.com/bigianb/bgda-explorer/vif"
	"golang.org/x/crypto/blake2b"
)

const usage = `usage: bgda-stat [-tex] [-dump] [INPUT] [OUTPUT]

Reads a model or texture asset from INPUT, and writes to OUTPUT statistics for
the asset. Inputs with the ".tex" extension, or any input when -tex is given,
are read as textures. Everything else is read as a model.

With -dump, the VIF chunks of each mesh of a model are written instead.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.

Options:
`

// Digest is a blake2b-256 hash, encoded in JSON as a hex string.
type Digest [blake2b.Size256]byte

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(d[:]))
}

// WarningCount counts warnings per error kind.
type WarningCount map[string]int

func countWarnings(warn error) WarningCount {
	if warn == nil {
		return nil
	}
	c := WarningCount{}
	for _, kind := range []error{
		bgda.ErrMalformedHeader,
		bgda.ErrUnsupportedFormat,
		bgda.ErrAddressOverflow,
		bgda.ErrUnknownOpcode,
		vif.ErrUnterminated,
	} {
		if n := errors.Count(warn, kind); n > 0 {
			c[kind.Error()] = n
		}
	}
	return c
}

type TextureStats struct {
	Width  int
	Height int

	// Number of fully transparent pixels.
	Transparent int

	// Digest of the decoded pixels.
	Pixels Digest
}

type MeshStats struct {
	// Number of chunks, and number of chunks per microcode program.
	ChunkCount     int
	MicrocodeCount map[int]int

	VertexCount   int
	TriangleCount int
	WeightCount   int

	Min, Max mesh.Vec3
	Radius   float32

	// Digest of the positions and triangles.
	Geometry Digest
}

type Stats struct {
	Size int

	// Digest of the whole input.
	Content Digest

	Texture *TextureStats `json:",omitempty"`
	Meshes  []MeshStats   `json:",omitempty"`

	Warnings WarningCount `json:",omitempty"`
}

func (s *Stats) FillTexture(data []byte) error {
	img, warn, err := tex.Decoder{}.Decode(data)
	s.Warnings = countWarnings(warn)
	if err != nil {
		return err
	}
	ts := &TextureStats{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Pixels: blake2b.Sum256(img.Pix),
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0 {
			ts.Transparent++
		}
	}
	s.Texture = ts
	return nil
}

func (s *Stats) FillModel(data []byte) error {
	var warns error
	defer func() { s.Warnings = countWarnings(warns) }()

	dec := mesh.ModelDecoder{}
	meshes, warn, err := dec.Chunks(data)
	warns = errors.Union(warns, warn)
	if err != nil {
		return err
	}
	for i, chunks := range meshes {
		m, warn, err := dec.Assembler.Assemble(chunks)
		warns = errors.Union(warns, warn)
		if err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
		ms := MeshStats{
			ChunkCount:     len(chunks),
			MicrocodeCount: map[int]int{},
			VertexCount:    len(m.Positions),
			TriangleCount:  len(m.Triangles) / 3,
			WeightCount:    len(m.Weights),
			Radius:         m.Radius(),
		}
		for _, c := range chunks {
			ms.MicrocodeCount[c.MicrocodeID]++
		}
		ms.Min, ms.Max = m.Bounds()

		h, _ := blake2b.New256(nil)
		binary.Write(h, binary.LittleEndian, m.Positions)
		binary.Write(h, binary.LittleEndian, m.Triangles)
		h.Sum(ms.Geometry[:0])

		s.Meshes = append(s.Meshes, ms)
	}
	return nil
}

func dump(w io.Writer, data []byte) error {
	meshes, warn, err := mesh.ModelDecoder{}.Chunks(data)
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode warning: %w", warn))
	}
	if err != nil {
		return err
	}
	for i, chunks := range meshes {
		if _, err := fmt.Fprintf(w, "Mesh %d:\n", i); err != nil {
			return err
		}
		if err := vif.Dump(w, chunks); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var input io.Reader = os.Stdin
	var output io.Writer = os.Stdout

	texture := flag.Bool("tex", false, "Read INPUT as a texture.")
	dumpChunks := flag.Bool("dump", false, "Write the VIF chunks of a model instead of stats.")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) >= 1 && args[0] != "-" {
		in, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
			return
		}
		input = in
		defer in.Close()
		if strings.EqualFold(filepath.Ext(args[0]), ".tex") {
			*texture = true
		}
	}
	if len(args) >= 2 && args[1] != "-" {
		out, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer out.Close()
		defer func() {
			err := out.Sync()
			if err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
				return
			}
		}()
		output = out
	}

	data, err := io.ReadAll(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("read input: %w", err))
		return
	}

	if *dumpChunks && !*texture {
		if err := dump(output, data); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("dump error: %w", err))
		}
		return
	}

	stats := Stats{Size: len(data), Content: blake2b.Sum256(data)}
	if *texture {
		err = stats.FillTexture(data)
	} else {
		err = stats.FillModel(data)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
	}

	je := json.NewEncoder(output)
	je.SetEscapeHTML(false)
	je.SetIndent("", "\t")
	if err := je.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
