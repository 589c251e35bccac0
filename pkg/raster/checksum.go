package raster

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Checksum hashes the visible pixel bytes row by row from the top, so two
// buffers with the same picture agree regardless of row order or padding.
func (b *Buffer) Checksum() uint64 {
	d := xxhash.New()
	if !b.HasPixels() {
		return d.Sum64()
	}
	n := b.Line()
	for y := 0; y < b.Height; y++ {
		d.Write(b.Row(y)[:n])
	}
	return d.Sum64()
}

// Equal compares the header and the visible pixels of two buffers.
// Palettes are compared for palettised buffers.
func Equal(a, b *Buffer) bool {
	if a.Width != b.Width || a.Height != b.Height || a.BPP != b.BPP || a.Type != b.Type {
		return false
	}
	if a.HasPixels() != b.HasPixels() {
		return false
	}
	if a.BPP <= 8 {
		if len(a.Palette) != len(b.Palette) {
			return false
		}
		for i := range a.Palette {
			if a.Palette[i] != b.Palette[i] {
				return false
			}
		}
	}
	if !a.HasPixels() {
		return true
	}
	n := a.Line()
	for y := 0; y < a.Height; y++ {
		if !bytes.Equal(a.Row(y)[:n], b.Row(y)[:n]) {
			return false
		}
	}
	return true
}
