package lzw

import (
	"bytes"
	stdlzw "compress/lzw"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInputs() []struct {
	name string
	data []byte
} {
	rnd := rand.New(rand.NewSource(7))
	noise := make([]byte, 40000)
	rnd.Read(noise)
	return []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Single", []byte{0x42}},
		{"Pair", []byte{0x42, 0x42}},
		{"Repetitive", bytes.Repeat([]byte{'a'}, 10000)},
		{"Alternating", bytes.Repeat([]byte{0x00, 0xFF}, 5000)},
		{"Sequence", bytes.Repeat(makeSequence(0, 256), 40)},
		{"KwKwK", []byte("abababababababab")},
		{"Noise", noise},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tt := range testInputs() {
		t.Run(tt.name, func(t *testing.T) {
			compressed := Compress(8, tt.data)
			got := Decompress(8, compressed, 0)
			assert.Equal(t, len(tt.data), len(got))
			assert.True(t, bytes.Equal(tt.data, got), "round trip mismatch")
			t.Logf("%s: %d -> %d bytes", tt.name, len(tt.data), len(compressed))
		})
	}
}

func TestDecoderDone(t *testing.T) {
	d := NewDecoder(8)
	buf := make([]byte, 64)
	n, m := d.Decode(buf, Compress(8, []byte("hello")))
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Greater(t, m, 0)
	assert.True(t, d.Done())
}

func TestStandardLibraryInterop(t *testing.T) {
	for _, tt := range testInputs() {
		t.Run(tt.name, func(t *testing.T) {
			// ours -> compress/lzw
			r := stdlzw.NewReader(bytes.NewReader(Compress(8, tt.data)), stdlzw.LSB, 8)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.data, got), "compress/lzw could not read our stream")

			// compress/lzw -> ours
			var buf bytes.Buffer
			w := stdlzw.NewWriter(&buf, stdlzw.LSB, 8)
			_, err = w.Write(tt.data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			got = Decompress(8, buf.Bytes(), 0)
			assert.True(t, bytes.Equal(tt.data, got), "we could not read compress/lzw's stream")
		})
	}
}

func TestChunkedDecode(t *testing.T) {
	for _, tt := range testInputs() {
		compressed := Compress(8, tt.data)
		want := Decompress(8, compressed, 0)
		for _, sizes := range [][2]int{{1, 1}, {1, 5}, {3, 2}, {7, 64}, {4096, 1}} {
			dstSize, srcSize := sizes[0], sizes[1]
			d := NewDecoder(8)
			dst := make([]byte, dstSize)
			var got []byte
			src := compressed
			for !d.Done() {
				chunk := src
				if len(chunk) > srcSize {
					chunk = chunk[:srcSize]
				}
				n, m := d.Decode(dst, chunk)
				got = append(got, dst[:n]...)
				src = src[m:]
				if n == 0 && m == 0 && len(src) == 0 {
					break
				}
			}
			assert.True(t, bytes.Equal(want, got), "%s: dst %d src %d", tt.name, dstSize, srcSize)
		}
	}
}

func TestChunkedEncode(t *testing.T) {
	for _, tt := range testInputs() {
		want := Compress(8, tt.data)
		for _, dstSize := range []int{1, 2, 5, 255} {
			e := NewEncoder(8)
			e.Start(8, len(tt.data))
			dst := make([]byte, dstSize)
			var got []byte
			src := tt.data
			for len(src) > 0 {
				n, m := e.Encode(dst, src)
				got = append(got, dst[:n]...)
				src = src[m:]
			}
			got = append(got, e.Finish()...)
			assert.Equal(t, want, got, "%s: dst %d", tt.name, dstSize)
		}
	}
}

func TestPackedPixels(t *testing.T) {
	tests := []struct {
		name        string
		bpp         int
		minCodeSize int
		width       int
	}{
		{"1bit", 1, 2, 13},
		{"1bitAligned", 1, 2, 16},
		{"2bit", 2, 2, 7},
		{"4bit", 4, 4, 5},
		{"8bit", 8, 8, 9},
	}
	rnd := rand.New(rand.NewSource(3))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const height = 40
			pixels := make([]byte, tt.width*height)
			for i := range pixels {
				if i%5 < 3 {
					pixels[i] = byte(rnd.Intn(1 << tt.bpp))
				}
			}
			e := NewEncoder(tt.minCodeSize)
			e.Start(tt.bpp, tt.width)
			var stream []byte
			dst := make([]byte, 16)
			for y := 0; y < height; y++ {
				line := pack(pixels[y*tt.width:(y+1)*tt.width], tt.bpp)
				for len(line) > 0 {
					n, m := e.Encode(dst, line)
					stream = append(stream, dst[:n]...)
					line = line[m:]
				}
			}
			stream = append(stream, e.Finish()...)
			assert.Equal(t, pixels, Decompress(tt.minCodeSize, stream, 0))
		})
	}
}

func TestCorruptStreams(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		want  []byte
	}{
		{"BeyondNextCode", []int{256, 'a', 300, 'b'}, []byte{'a'}},
		{"NonLiteralFirst", []int{256, 258, 'a'}, nil},
		{"MissingEnd", []int{256, 'a', 'b'}, []byte{'a', 'b'}},
		{"EndCode", []int{256, 'a', 257, 'b'}, []byte{'a'}},
		{"ClearMidStream", []int{256, 'a', 256, 'b', 257}, []byte{'a', 'b'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decompress(8, packCodes(tt.codes, 9), 0)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimit(t *testing.T) {
	data := bytes.Repeat([]byte("xyz"), 100)
	assert.Equal(t, data[:10], Decompress(8, Compress(8, data), 10))
}

func TestCodeWidthGrowth(t *testing.T) {
	e := NewEncoder(2)
	assert.Equal(t, 4, e.ClearCode())
	assert.Equal(t, 5, e.EndCode())
	assert.Equal(t, 3, e.CodeSize())

	// minimum sizes below 2 are raised to 2
	d := NewDecoder(1)
	assert.Equal(t, 4, d.ClearCode())
}

// pack stores one pixel per byte as an MSB-first bit-packed scanline.
func pack(pixels []byte, bpp int) []byte {
	out := make([]byte, (len(pixels)*bpp+7)/8)
	for i, p := range pixels {
		bit := i * bpp
		out[bit/8] |= p << uint(8-bpp-bit%8)
	}
	return out
}

// packCodes writes fixed-width codes LSB first.
func packCodes(codes []int, width uint) []byte {
	var out []byte
	var acc uint64
	var n uint
	for _, c := range codes {
		acc |= uint64(c) << n
		n += width
		for n >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			n -= 8
		}
	}
	if n > 0 {
		out = append(out, byte(acc))
	}
	return out
}

func makeSequence(start byte, n int) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = start + byte(i)
	}
	return res
}
