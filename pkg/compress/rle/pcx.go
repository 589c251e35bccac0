package rle

import "io"

const (
	pcxRunFlag = 0xC0
	pcxMaxRun  = 0x3F
)

// DecodePCXLine expands one encoded scanline (all planes) into dst and returns
// the number of bytes written. A run that would cross the end of the line is
// cut there. A short stream leaves the rest of dst zeroed.
func DecodePCXLine(r io.ByteReader, dst []byte) (int, error) {
	s := &byteSource{r: r}
	written := 0
	for written < len(dst) {
		v, ok := s.next()
		if !ok {
			break
		}
		n := 1
		if v&pcxRunFlag == pcxRunFlag {
			n = int(v & pcxMaxRun)
			if v, ok = s.next(); !ok {
				break
			}
		}
		n = room(n, len(dst)-written)
		for i := 0; i < n; i++ {
			dst[written+i] = v
		}
		written += n
	}
	clear(dst[written:])
	return written, s.result()
}

// AppendPCXLine appends the encoding of one scanline. Values with both top
// bits set always go out as runs so they cannot be mistaken for a count.
func AppendPCXLine(dst, line []byte) []byte {
	for i := 0; i < len(line); {
		v := line[i]
		n := 1
		for i+n < len(line) && n < pcxMaxRun && line[i+n] == v {
			n++
		}
		if n > 1 || v&pcxRunFlag == pcxRunFlag {
			dst = append(dst, pcxRunFlag|byte(n), v)
		} else {
			dst = append(dst, v)
		}
		i += n
	}
	return dst
}
