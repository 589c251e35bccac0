package bmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math/rand"
	"testing"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xbmp "golang.org/x/image/bmp"
)

// countingReader counts the bytes handed out by Read.
type countingReader struct {
	io.ReadSeeker
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadSeeker.Read(p)
	c.n += n
	return n, err
}

func makeBuffer(t *testing.T, width, height, bpp int, order raster.Order, seed int64) *raster.Buffer {
	t.Helper()
	b, err := raster.New(width, height, bpp, order)
	require.NoError(t, err)
	rnd := rand.New(rand.NewSource(seed))
	for y := 0; y < height; y++ {
		row := b.Row(y)[:b.Line()]
		rnd.Read(row)
		if bpp == 32 {
			for x := 0; x < width; x++ {
				row[4*x+raster.ChannelAlpha] = 0xFF
			}
		}
	}
	for i := range b.Palette {
		b.Palette[i] = color.NRGBA{R: uint8(i * 3), G: uint8(255 - i), B: uint8(i * 7), A: 0xFF}
	}
	return b
}

// buildBMP assembles a file from raw parts.
func buildBMP(t *testing.T, header any, palette, pixels []byte) []byte {
	t.Helper()
	var hdr bytes.Buffer
	require.NoError(t, binary.Write(&hdr, binary.LittleEndian, header))
	off := fileHeaderLen + hdr.Len() + len(palette)
	var out bytes.Buffer
	fh := fileHeader{Type: [2]byte{'B', 'M'}, Size: uint32(off + len(pixels)), OffBits: uint32(off)}
	require.NoError(t, binary.Write(&out, binary.LittleEndian, fh))
	out.Write(hdr.Bytes())
	out.Write(palette)
	out.Write(pixels)
	return out.Bytes()
}

func TestRoundTrip(t *testing.T) {
	c := New()
	for _, bpp := range []int{1, 4, 8, 16, 24, 32} {
		for _, order := range []raster.Order{raster.BottomUp, raster.TopDown} {
			t.Run(fmt.Sprintf("%dbpp/%s", bpp, order), func(t *testing.T) {
				src := makeBuffer(t, 37, 11, bpp, order, int64(bpp))
				src.DotsPerMeterX, src.DotsPerMeterY = 3780, 2835
				var out bytes.Buffer
				require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))
				assert.True(t, c.Validate(bytes.NewReader(out.Bytes())))

				got, err := c.Load(bytes.NewReader(out.Bytes()), 0, codec.Default, nil)
				require.NoError(t, err)
				assert.True(t, raster.Equal(src, got))
				assert.Equal(t, raster.BottomUp, got.Order())
				assert.Equal(t, 3780, got.DotsPerMeterX)
				assert.Equal(t, 2835, got.DotsPerMeterY)
				if bpp == 16 {
					assert.Equal(t, uint32(raster.Red555Mask), got.RedMask)
				}
				t.Logf("%dbpp: %d bytes", bpp, out.Len())
			})
		}
	}
}

func TestSaveRLE8(t *testing.T) {
	c := New()
	src, err := raster.New(64, 16, 8, raster.TopDown)
	require.NoError(t, err)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			src.SetIndex(x, y, uint8(x/9+y))
		}
	}
	var plain, packed bytes.Buffer
	require.NoError(t, c.Save(&plain, src, 0, codec.Default, nil))
	require.NoError(t, c.Save(&packed, src, 0, codec.SaveRLE, nil))
	assert.Less(t, packed.Len(), plain.Len())
	assert.Equal(t, uint32(compRLE8), binary.LittleEndian.Uint32(packed.Bytes()[30:]))

	got, err := c.Load(bytes.NewReader(packed.Bytes()), 0, codec.Default, nil)
	require.NoError(t, err)
	assert.True(t, raster.Equal(src, got))
	t.Logf("rle8: %d -> %d bytes", plain.Len(), packed.Len())
}

func TestStandardDecoderAgrees(t *testing.T) {
	c := New()
	for _, bpp := range []int{8, 24, 32} {
		t.Run(fmt.Sprintf("%dbpp", bpp), func(t *testing.T) {
			src := makeBuffer(t, 29, 7, bpp, raster.TopDown, 9)
			var out bytes.Buffer
			require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))

			want, err := src.Image()
			require.NoError(t, err)
			got, err := xbmp.Decode(bytes.NewReader(out.Bytes()))
			require.NoError(t, err)
			require.Equal(t, want.Bounds(), got.Bounds())
			for y := 0; y < src.Height; y++ {
				for x := 0; x < src.Width; x++ {
					w := color.NRGBAModel.Convert(want.At(x, y))
					g := color.NRGBAModel.Convert(got.At(x, y))
					require.Equal(t, w, g, "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestHeaderOnlyReadsNoPixels(t *testing.T) {
	c := New()
	src := makeBuffer(t, 200, 100, 8, raster.BottomUp, 3)
	var out bytes.Buffer
	require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))

	r := &countingReader{ReadSeeker: bytes.NewReader(out.Bytes())}
	got, err := c.Load(r, 0, codec.HeaderOnly, nil)
	require.NoError(t, err)
	assert.False(t, got.HasPixels())
	assert.Equal(t, 200, got.Width)
	assert.Equal(t, 100, got.Height)
	assert.Equal(t, src.Palette, got.Palette)
	assert.LessOrEqual(t, r.n, fileHeaderLen+4+infoHeaderLen+256*4)
	t.Logf("header-only read %d of %d bytes", r.n, out.Len())
}

func TestTopDown(t *testing.T) {
	ih := infoHeader{Size: infoHeaderLen, Width: 2, Height: -2, Planes: 1, BitCount: 24}
	pixels := []byte{
		1, 2, 3, 4, 5, 6, 0, 0, // top row
		7, 8, 9, 10, 11, 12, 0, 0,
	}
	b, err := New().Load(bytes.NewReader(buildBMP(t, ih, nil, pixels)), 0, codec.Default, nil)
	require.NoError(t, err)
	assert.Equal(t, raster.TopDown, b.Order())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, b.Row(0)[:6])
	assert.Equal(t, []byte{7, 8, 9, 10, 11, 12}, b.Row(1)[:6])
}

func TestOS2Palette(t *testing.T) {
	pixels := []byte{0xF0, 0, 0, 0, 0x0F, 0, 0, 0}
	for _, entry := range []int{3, 4} {
		t.Run(fmt.Sprintf("%dbyte", entry), func(t *testing.T) {
			ih := infoHeader{Size: os2HeaderLen, Width: 8, Height: 2, Planes: 1, BitCount: 1, ClrUsed: 2}
			header := struct {
				infoHeader
				Extra [os2HeaderLen - infoHeaderLen]byte
			}{infoHeader: ih}
			var palette []byte
			for _, p := range [][]byte{{10, 20, 30}, {40, 50, 60}} {
				palette = append(palette, p...)
				if entry == 4 {
					palette = append(palette, 0)
				}
			}
			b, err := New().Load(bytes.NewReader(buildBMP(t, header, palette, pixels)), 0, codec.Default, nil)
			require.NoError(t, err)
			assert.Equal(t, color.NRGBA{R: 30, G: 20, B: 10, A: 0xFF}, b.Palette[0])
			assert.Equal(t, color.NRGBA{R: 60, G: 50, B: 40, A: 0xFF}, b.Palette[1])
			assert.Equal(t, uint8(0), b.Index(0, 0))
			assert.Equal(t, uint8(1), b.Index(4, 0))
			assert.Equal(t, uint8(1), b.Index(0, 1))
		})
	}
}

func TestOS21x(t *testing.T) {
	ch := coreHeader{Size: coreHeaderLen, Width: 3, Height: 1, Planes: 1, BitCount: 8}
	palette := make([]byte, 256*3)
	palette[3*5], palette[3*5+1], palette[3*5+2] = 1, 2, 3
	b, err := New().Load(bytes.NewReader(buildBMP(t, ch, palette, []byte{5, 0, 5, 0})), 0, codec.Default, nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 3, G: 2, B: 1, A: 0xFF}, b.Palette[5])
	assert.Equal(t, []byte{5, 0, 5}, b.Row(0)[:3])
	assert.Equal(t, defaultDotsPerMeter, b.DotsPerMeterX)
}

func TestRLE4(t *testing.T) {
	ih := infoHeader{Size: infoHeaderLen, Width: 5, Height: 2, Planes: 1, BitCount: 4, Compression: compRLE4, ClrUsed: 16}
	data := []byte{5, 0x12, 0, 0, 0, 3, 0x34, 0x50, 0, 1}
	b, err := New().Load(bytes.NewReader(buildBMP(t, ih, make([]byte, 16*4), data)), 0, codec.Default, nil)
	require.NoError(t, err)
	// bottom-up: the first decoded row is the bottom of the picture
	assert.Equal(t, []byte{0x12, 0x12, 0x10}, b.Row(1)[:3])
	assert.Equal(t, []byte{0x34, 0x50, 0x00}, b.Row(0)[:3])
}

func TestBitfields(t *testing.T) {
	ih := infoHeader{Size: infoHeaderLen, Width: 1, Height: 1, Planes: 1, BitCount: 16, Compression: compBitfields}
	header := struct {
		infoHeader
		Masks [3]uint32
	}{ih, [3]uint32{raster.Red565Mask, raster.Green565Mask, raster.Blue565Mask}}
	b, err := New().Load(bytes.NewReader(buildBMP(t, header, nil, []byte{0x1F, 0xF8, 0, 0})), 0, codec.Default, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(raster.Red565Mask), b.RedMask)
	img, err := b.Image()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0, B: 0xFF, A: 0xFF}, img.At(0, 0))
}

func TestLoadAtOffset(t *testing.T) {
	c := New()
	src := makeBuffer(t, 5, 5, 4, raster.BottomUp, 1)
	var out bytes.Buffer
	out.WriteString("junk")
	require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))
	r := bytes.NewReader(out.Bytes())
	_, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)
	got, err := c.Load(r, 0, codec.Default, nil)
	require.NoError(t, err)
	assert.True(t, raster.Equal(src, got))
}

func TestLoadErrors(t *testing.T) {
	valid := buildBMP(t, infoHeader{Size: infoHeaderLen, Width: 4, Height: 4, Planes: 1, BitCount: 24}, nil, make([]byte, 48))
	tests := []struct {
		name  string
		input []byte
		kind  error
	}{
		{"Empty", nil, codec.ErrTruncated},
		{"Signature", append([]byte("XX"), valid[2:]...), codec.ErrFormat},
		{"Truncated", valid[:len(valid)-5], codec.ErrTruncated},
		{"UnknownHeader", buildBMP(t, struct{ Size, Pad uint32 }{20, 0}, nil, nil), codec.ErrUnsupported},
		{"Depth", buildBMP(t, infoHeader{Size: infoHeaderLen, Width: 1, Height: 1, BitCount: 2}, nil, nil), codec.ErrUnsupported},
		{"NegativeWidth", buildBMP(t, infoHeader{Size: infoHeaderLen, Width: -1, Height: 1, BitCount: 24}, nil, nil), codec.ErrCorrupt},
		{"Compression", buildBMP(t, infoHeader{Size: infoHeaderLen, Width: 1, Height: 1, BitCount: 8, Compression: 4}, make([]byte, 1024), nil), codec.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Load(bytes.NewReader(tt.input), 0, codec.Default, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	c := New()
	assert.True(t, c.Validate(bytes.NewReader([]byte("BM"))))
	assert.True(t, c.Validate(bytes.NewReader([]byte("BA"))))
	assert.False(t, c.Validate(bytes.NewReader([]byte("B"))))
	assert.False(t, c.Validate(bytes.NewReader([]byte("GIF89a"))))
}
