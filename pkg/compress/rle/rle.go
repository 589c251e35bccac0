// Package rle holds the run-length codecs used by the raster formats.
//
// Every variant is its own small state machine because their control bytes
// are incompatible:
//
//	BMP RLE8/RLE4  count byte + value, or escape 0 followed by
//	               0 end-of-line, 1 end-of-bitmap, 2 delta, n literal bytes
//	PCX            top two bits set: count in the low six bits, value follows
//	SGI            top bit set: literal run of the low seven bits, else repeat
//
// Decoders never write outside dst. Counts that run past the row or buffer are
// clamped and a stream that ends early simply stops the decode; only read
// errors other than end of stream are returned.
package rle

import (
	"errors"
	"io"
)

// byteSource remembers the first read failure so decoders can stop quietly.
type byteSource struct {
	r   io.ByteReader
	err error
}

func (s *byteSource) next() (byte, bool) {
	if s.err != nil {
		return 0, false
	}
	b, err := s.r.ReadByte()
	if err != nil {
		s.err = err
		return 0, false
	}
	return b, true
}

// result reports the read failure, if any, that was not an end of stream.
func (s *byteSource) result() error {
	if s.err == nil || errors.Is(s.err, io.EOF) || errors.Is(s.err, io.ErrUnexpectedEOF) {
		return nil
	}
	return s.err
}

// room clamps a run of n to the space left.
func room(n, left int) int {
	if left < 0 {
		return 0
	}
	return min(n, left)
}
