package rle

import "io"

// SGI row encoding: a count byte with the top bit set is followed by that many
// literal bytes; without it, by one byte repeated count times. A zero count
// ends the row.
const (
	sgiLiteralFlag = 0x80
	sgiMaxCount    = 0x7F
)

// DecodeSGIRow expands one RLE row of a single channel, writing width samples
// into dst every stride bytes. Zero counts are skipped, so a row that ends
// early is read through to the next real run, matching files written by
// encoders that pad rows with zero bytes.
func DecodeSGIRow(r io.ByteReader, dst []byte, width, stride int) error {
	s := &byteSource{r: r}
	p := 0
	for k := 0; k < width; {
		c, ok := s.next()
		if !ok {
			break
		}
		n := int(c & sgiMaxCount)
		if n == 0 {
			continue
		}
		if c&sgiLiteralFlag != 0 {
			for i := 0; i < n && k < width; i++ {
				v, ok := s.next()
				if !ok {
					return s.result()
				}
				if p < len(dst) {
					dst[p] = v
				}
				p += stride
				k++
			}
			continue
		}
		v, ok := s.next()
		if !ok {
			break
		}
		for i := 0; i < n && k < width; i++ {
			if p < len(dst) {
				dst[p] = v
			}
			p += stride
			k++
		}
	}
	return s.result()
}

// AppendSGIRow appends the RLE encoding of one channel row, terminated by a
// zero count.
func AppendSGIRow(dst, row []byte) []byte {
	i := 0
	for i < len(row) {
		// Attempt to find run
		runLen := 1
		for i+runLen < len(row) && runLen < sgiMaxCount && row[i+runLen] == row[i] {
			runLen++
		}
		if runLen > 2 {
			dst = append(dst, byte(runLen), row[i])
			i += runLen
			continue
		}

		// Literal run: consume until three identical bytes start or the count is full
		litLen := 1
		for i+litLen < len(row) && litLen < sgiMaxCount {
			if i+litLen+2 < len(row) &&
				row[i+litLen] == row[i+litLen+1] &&
				row[i+litLen] == row[i+litLen+2] {
				break
			}
			litLen++
		}
		dst = append(dst, sgiLiteralFlag|byte(litLen))
		dst = append(dst, row[i:i+litLen]...)
		i += litLen
	}
	return append(dst, 0)
}
