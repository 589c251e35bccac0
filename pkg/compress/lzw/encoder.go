package lzw

// Encoder compresses bit-packed pixel indices into an LZW code stream.
//
// Usage: Start once, Encode every scanline (possibly over several calls when
// dst fills), then Finish.
type Encoder struct {
	state
	bpp   int
	mask  int
	slack int // unused low bits at the end of every scanline
	shift int // bit offset of the next pixel inside the current source byte

	prefix  int
	started bool // at least one pixel has been read
	strmap  map[uint32]uint16
}

// NewEncoder returns an encoder for minCodeSize-bit literals.
func NewEncoder(minCodeSize int) *Encoder {
	return &Encoder{
		state:  newState(minCodeSize),
		bpp:    8,
		mask:   0xFF,
		strmap: make(map[uint32]uint16, MaxCode),
	}
}

// Start emits the leading clear code and fixes the pixel layout: bpp bits per
// pixel, width pixels per scanline.
func (e *Encoder) Start(bpp, width int) {
	e.bpp = bpp
	e.mask = 1<<uint(bpp) - 1
	e.slack = (8 - (width*bpp)%8) % 8
	e.shift = 8 - bpp
	e.write(e.clearCode)
	e.clearTable()
}

// Encode consumes pixels from src, which must run to the end of the current
// scanline, and writes whole code bytes to dst. It returns the bytes written
// and the source bytes fully consumed; a partially consumed byte is resumed on
// the next call, which must pass src[nSrc:].
func (e *Encoder) Encode(dst, src []byte) (nDst, nSrc int) {
	for {
		nDst += e.drain(dst[nDst:])
		if e.partialSize >= 8 || nSrc == len(src) {
			return nDst, nSrc
		}
		ch := int(src[nSrc]>>uint(e.shift)) & e.mask
		e.push(ch)

		last := nSrc+1 == len(src)
		if e.shift > 0 && !(last && e.shift <= e.slack) {
			e.shift -= e.bpp
		} else {
			nSrc++
			e.shift = 8 - e.bpp
		}
	}
}

// Finish emits the pending prefix and the end code and returns every
// remaining byte, including the final partial one.
func (e *Encoder) Finish() []byte {
	if e.started {
		e.write(e.prefix)
		// a decoder adds one more entry on that code and may widen before the end code
		if e.nextCode == 1<<uint(e.codeSize) && e.codeSize < MaxCodeSize {
			e.codeSize++
		}
		e.started = false
	}
	e.write(e.endCode)
	out := make([]byte, 0, 8)
	for e.partialSize > 0 {
		out = append(out, byte(e.partial))
		e.partial >>= 8
		if e.partialSize < 8 {
			e.partialSize = 0
		} else {
			e.partialSize -= 8
		}
	}
	return out
}

func (e *Encoder) push(ch int) {
	if !e.started {
		e.started = true
		e.prefix = ch
		return
	}
	key := uint32(e.prefix)<<8 | uint32(ch)
	if code, ok := e.strmap[key]; ok {
		e.prefix = int(code)
		return
	}
	e.write(e.prefix)
	e.strmap[key] = uint16(e.nextCode)
	if e.nextCode == 1<<uint(e.codeSize) {
		e.codeSize++
	}
	e.nextCode++
	if e.nextCode == MaxCode {
		e.write(e.clearCode)
		e.clearTable()
	}
	e.prefix = ch
}

func (e *Encoder) write(code int) {
	e.partial |= uint64(code) << e.partialSize
	e.partialSize += uint(e.codeSize)
}

func (e *Encoder) drain(dst []byte) int {
	n := 0
	for e.partialSize >= 8 && n < len(dst) {
		dst[n] = byte(e.partial)
		e.partial >>= 8
		e.partialSize -= 8
		n++
	}
	return n
}

func (e *Encoder) clearTable() {
	clear(e.strmap)
	e.reset()
}
