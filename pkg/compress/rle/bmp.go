package rle

import "io"

// BMP escape codes, each following a zero count byte.
const (
	Escape      = 0
	EndOfLine   = 0
	EndOfBitmap = 1
	Delta       = 2
)

// maxLiteral is the largest literal pool the encoder writes in one run.
const maxLiteral = 254

// DecodeBMP8 expands BI_RLE8 data into dst, width bytes per row, rows in
// stream order (the first row decoded is the first row of dst).
func DecodeBMP8(r io.ByteReader, dst []byte, width, height int) error {
	if width <= 0 {
		return nil
	}
	height = min(height, len(dst)/width)
	s := &byteSource{r: r}
	x, y := 0, 0
	for y < height {
		count, ok := s.next()
		if !ok {
			break
		}
		if count != Escape {
			v, ok := s.next()
			if !ok {
				break
			}
			n := room(int(count), width-x)
			row := dst[y*width:]
			for i := 0; i < n; i++ {
				row[x+i] = v
			}
			x += n
			continue
		}

		code, ok := s.next()
		if !ok {
			break
		}
		switch code {
		case EndOfLine:
			x = 0
			y++
		case EndOfBitmap:
			return nil
		case Delta:
			dx, ok := s.next()
			if !ok {
				return s.result()
			}
			dy, ok := s.next()
			if !ok {
				return s.result()
			}
			x += int(dx)
			y += int(dy)
		default:
			// literal run, padded to an even number of bytes
			n := room(int(code), width-x)
			row := dst[y*width:]
			for i := 0; i < int(code); i++ {
				v, ok := s.next()
				if !ok {
					return s.result()
				}
				if i < n {
					row[x+i] = v
				}
			}
			x += n
			if code&1 == 1 {
				s.next()
			}
		}
	}
	return s.result()
}

// DecodeBMP4 expands BI_RLE4 data into dst, one nibble per byte, width bytes
// per row in stream order. Runs are clamped to the end of the whole buffer,
// not the row, and a delta jumps relative to the pixels already written on the
// current row, which is how widely deployed encoders expect it to behave.
func DecodeBMP4(r io.ByteReader, dst []byte, width, height int) error {
	if width <= 0 {
		return nil
	}
	end := min(width*height, len(dst))
	s := &byteSource{r: r}
	q, bits, scanline := 0, 0, 0
	for scanline < height {
		if q < 0 || q >= end {
			break
		}
		count, ok := s.next()
		if !ok {
			break
		}
		if count != Escape {
			v, ok := s.next()
			if !ok {
				break
			}
			n := room(int(count), end-q)
			for i := 0; i < n; i++ {
				dst[q] = nibble(v, i)
				q++
			}
			bits += n
			continue
		}

		code, ok := s.next()
		if !ok {
			break
		}
		switch code {
		case EndOfLine:
			bits = 0
			scanline++
			q = scanline * width
		case EndOfBitmap:
			return nil
		case Delta:
			dx, ok := s.next()
			if !ok {
				return s.result()
			}
			dy, ok := s.next()
			if !ok {
				return s.result()
			}
			bits += int(dx)
			scanline += int(dy)
			q = scanline*width + bits
		default:
			n := room(int(code), end-q)
			var v byte
			for i := 0; i < n; i++ {
				if i&1 == 0 {
					if v, ok = s.next(); !ok {
						return s.result()
					}
				}
				dst[q] = nibble(v, i)
				q++
			}
			bits += n
			// literal runs are padded to a 16-bit boundary
			if n&3 == 1 || n&3 == 2 {
				s.next()
			}
		}
	}
	return s.result()
}

func nibble(v byte, i int) byte {
	if i&1 == 1 {
		return v & 0x0F
	}
	return v >> 4
}

// PackNibbles packs one nibble per byte (as produced by DecodeBMP4) into a
// 4-bit row.
func PackNibbles(dst, nibbles []byte) {
	for i, v := range nibbles {
		if i&1 == 0 {
			dst[i>>1] = v << 4
		} else {
			dst[i>>1] |= v & 0x0F
		}
	}
}

// AppendBMP8Line appends the BI_RLE8 encoding of one row, terminated by an
// end-of-line escape. Runs of four or more equal bytes become repeat codes;
// everything else goes through a literal pool of at most 254 bytes. Pools of
// one or two bytes are written as repeat codes of one, since literal counts of
// 1 and 2 would read as escapes.
func AppendBMP8Line(dst, line []byte) []byte {
	pool := make([]byte, 0, maxLiteral)
	flush := func() {
		switch len(pool) {
		case 0:
		case 1:
			dst = append(dst, 1, pool[0])
		case 2:
			dst = append(dst, 1, pool[0], 1, pool[1])
		default:
			dst = append(dst, Escape, byte(len(pool)))
			dst = append(dst, pool...)
			if len(pool)&1 == 1 {
				dst = append(dst, 0)
			}
		}
		pool = pool[:0]
	}

	size := len(line)
	for i := 0; i < size; i++ {
		if i < size-1 && line[i] == line[i+1] {
			j := i + 1
			for j < size-1 && j < i+254 && line[j] == line[j+1] {
				j++
			}
			if run := j - i + 1; run > 3 {
				flush()
				dst = append(dst, byte(run), line[i])
			} else {
				for k := i; k <= j; k++ {
					pool = append(pool, line[k])
					if len(pool) == maxLiteral {
						flush()
					}
				}
			}
			i = j
		} else {
			pool = append(pool, line[i])
		}
		if len(pool) == maxLiteral {
			flush()
		}
	}
	flush()
	return append(dst, Escape, EndOfLine)
}

// AppendBMP8End appends the end-of-bitmap escape.
func AppendBMP8End(dst []byte) []byte {
	return append(dst, Escape, EndOfBitmap)
}
