package lzw

// entry is one string of the table, stored as its last byte plus the code of
// everything before it.
type entry struct {
	prefix uint16
	suffix byte
	first  byte
	length uint16
}

// Decoder expands an LZW code stream.
type Decoder struct {
	state
	oldCode int // previous code, MaxCode right after a clear
	done    bool
	table   [MaxCode]entry
	pending []byte // decoded bytes that did not fit the last dst
	scratch []byte
}

// NewDecoder returns a decoder for streams whose literals are minCodeSize bits.
func NewDecoder(minCodeSize int) *Decoder {
	d := &Decoder{
		state:   newState(minCodeSize),
		scratch: make([]byte, MaxCode),
	}
	for i := 0; i < d.clearCode; i++ {
		d.table[i] = entry{suffix: byte(i), first: byte(i), length: 1}
	}
	d.oldCode = MaxCode
	return d
}

// Done reports whether the end of the stream was reached and every decoded
// byte has been handed out.
func (d *Decoder) Done() bool {
	return d.done && len(d.pending) == 0
}

// Decode reads codes from src and writes the decoded bytes to dst. It returns
// the number of bytes written and consumed. Unconsumed src bytes must be
// passed again on the next call; bits of a partially read code and output that
// did not fit dst are kept by the decoder.
//
// Decoding stops for good on the end code, on a code beyond the next free
// table slot or when a stream starts with a non-literal code.
func (d *Decoder) Decode(dst, src []byte) (nDst, nSrc int) {
	for {
		if len(d.pending) > 0 {
			n := copy(dst[nDst:], d.pending)
			d.pending = d.pending[n:]
			nDst += n
			if len(d.pending) > 0 {
				return nDst, nSrc
			}
		}
		if d.done || nDst == len(dst) {
			return nDst, nSrc
		}
		for d.partialSize < uint(d.codeSize) {
			if nSrc == len(src) {
				return nDst, nSrc
			}
			d.partial |= uint64(src[nSrc]) << d.partialSize
			d.partialSize += 8
			nSrc++
		}
		code := int(d.partial & (1<<uint(d.codeSize) - 1))
		d.partial >>= uint(d.codeSize)
		d.partialSize -= uint(d.codeSize)
		d.step(code)
	}
}

func (d *Decoder) step(code int) {
	switch {
	case code == d.clearCode:
		d.reset()
		d.oldCode = MaxCode
		return
	case code == d.endCode || code > d.nextCode:
		d.done = true
		return
	}

	if d.oldCode == MaxCode {
		if code > d.clearCode {
			d.done = true
			return
		}
		d.emit(code)
		d.oldCode = code
		return
	}

	if d.nextCode < MaxCode {
		// code == nextCode is the KwKwK case: the new string ends with its own first byte
		tail := code
		if code == d.nextCode {
			tail = d.oldCode
		}
		old := d.table[d.oldCode]
		d.table[d.nextCode] = entry{
			prefix: uint16(d.oldCode),
			suffix: d.table[tail].first,
			first:  old.first,
			length: old.length + 1,
		}
		d.nextCode++
		if d.nextCode < MaxCode && d.nextCode&(1<<uint(d.codeSize)-1) == 0 {
			d.codeSize++
		}
	}
	d.emit(code)
	d.oldCode = code
}

// emit queues the string for code.
func (d *Decoder) emit(code int) {
	n := int(d.table[code].length)
	s := d.scratch[:n]
	for i := n - 1; i >= 0; i-- {
		e := d.table[code]
		s[i] = e.suffix
		code = int(e.prefix)
	}
	d.pending = s
}
