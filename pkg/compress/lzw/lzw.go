// Package lzw implements the variable-width LZW coding used by GIF.
//
// Codes are packed least-significant bit first. The code width starts at
// minCodeSize+1 bits and grows by one bit as the table fills, up to 12 bits.
// Both directions are resumable: every call works on caller-supplied chunks and
// may stop because its input ran out or its output filled; the next call picks
// up from the state kept in the Encoder or Decoder.
package lzw

const (
	// MaxCodeSize is the widest code in bits.
	MaxCodeSize = 12
	// MaxCode is the size of the code space.
	MaxCode = 1 << MaxCodeSize
)

// state is everything both directions track between calls.
type state struct {
	minCodeSize int
	clearCode   int
	endCode     int
	nextCode    int
	codeSize    int

	partial     uint64 // bit accumulator, oldest bit lowest
	partialSize uint   // valid bits in partial
}

func newState(minCodeSize int) state {
	if minCodeSize < 2 {
		minCodeSize = 2
	}
	if minCodeSize > MaxCodeSize-1 {
		minCodeSize = MaxCodeSize - 1
	}
	s := state{
		minCodeSize: minCodeSize,
		clearCode:   1 << minCodeSize,
	}
	s.endCode = s.clearCode + 1
	s.reset()
	return s
}

func (s *state) reset() {
	s.nextCode = s.endCode + 1
	s.codeSize = s.minCodeSize + 1
}

// ClearCode is the code that resets the table.
func (s *state) ClearCode() int { return s.clearCode }

// EndCode is the end-of-information code.
func (s *state) EndCode() int { return s.endCode }

// CodeSize is the current code width in bits.
func (s *state) CodeSize() int { return s.codeSize }

// Compress codes data, one symbol per byte, as a single run. Every byte must be
// below 1<<minCodeSize.
func Compress(minCodeSize int, data []byte) []byte {
	e := NewEncoder(minCodeSize)
	e.Start(8, len(data))
	out := make([]byte, 0, len(data)/2+16)
	buf := make([]byte, 256)
	for len(data) > 0 {
		n, m := e.Encode(buf, data)
		out = append(out, buf[:n]...)
		data = data[m:]
	}
	return append(out, e.Finish()...)
}

// Decompress decodes a complete code stream. It stops at the end code, at the
// end of data or, when limit > 0, after limit bytes.
func Decompress(minCodeSize int, data []byte, limit int) []byte {
	d := NewDecoder(minCodeSize)
	var out []byte
	buf := make([]byte, MaxCode)
	for {
		n, m := d.Decode(buf, data)
		out = append(out, buf[:n]...)
		data = data[m:]
		if limit > 0 && len(out) >= limit {
			return out[:limit]
		}
		if d.Done() || (n == 0 && m == 0) {
			return out
		}
	}
}
