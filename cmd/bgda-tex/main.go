// The bgda-tex command converts a texture asset to an image file.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigianb/bgda-explorer/gs"
	"github.com/bigianb/bgda-explorer/tex"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

const usage = `usage: bgda-tex [-gsdump FILE] [-scale N] [-trace] [INPUT] [OUTPUT]

Reads a texture asset from INPUT, and writes to OUTPUT the decoded image. The
image format is selected by the extension of OUTPUT: ".bmp" for BMP, ".tif"
or ".tiff" for TIFF, and PNG otherwise.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.

Options:
`

type encodeFunc func(w io.Writer, img image.Image) error

func encoder(path string) encodeFunc {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		return bmp.Encode
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	}
	return png.Encode
}

// upscale enlarges img by an integer factor, keeping pixels sharp.
func upscale(img image.Image, n int) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*n, b.Dy()*n))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func dumpMemory(path string, mem *gs.Memory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := mem.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	var input io.Reader = os.Stdin
	var output io.Writer = os.Stdout

	gsdump := flag.String("gsdump", "", "Write a snapshot of GS memory after decoding to `FILE`.")
	scale := flag.Int("scale", 1, "Enlarge the image by a factor of `N`.")
	trace := flag.Bool("trace", false, "Write a trace of the decoded GIF stream to stderr.")
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
	}
	encode := png.Encode
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
		encode = encoder(args[1])
	}

	data, err := io.ReadAll(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("read input: %w", err))
		return
	}

	dec := tex.Decoder{Memory: gs.New()}
	if *trace {
		dec.Trace = os.Stderr
	}
	img, warn, err := dec.Decode(data)
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode warning: %w", warn))
	}
	if *gsdump != "" {
		if err := dumpMemory(*gsdump, dec.Memory); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("dump memory: %w", err))
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		return
	}

	var dst image.Image = img
	if *scale > 1 {
		dst = upscale(img, *scale)
	}
	if err := encode(output, dst); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
