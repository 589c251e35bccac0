package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPitch(t *testing.T) {
	tests := []struct {
		width, bpp int
		line       int
		pitch      int
	}{
		{1, 1, 1, 4},
		{9, 1, 2, 4},
		{33, 1, 5, 8},
		{3, 4, 2, 4},
		{5, 8, 5, 8},
		{3, 16, 6, 8},
		{3, 24, 9, 12},
		{4, 24, 12, 12},
		{3, 32, 12, 12},
		{0, 8, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.line, LineBytes(tt.width, tt.bpp), "line %dx%d", tt.width, tt.bpp)
		assert.Equal(t, tt.pitch, Pitch(tt.width, tt.bpp), "pitch %dx%d", tt.width, tt.bpp)
	}
}

func TestNew(t *testing.T) {
	b, err := New(10, 3, 8, BottomUp)
	require.NoError(t, err)
	assert.Equal(t, 12, b.Pitch)
	assert.Len(t, b.Bits(), 36)
	assert.Len(t, b.Palette, 256)
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255}, b.Palette[128])
	assert.True(t, b.HasPixels())

	b, err = New(2, 2, 16, TopDown)
	require.NoError(t, err)
	assert.Equal(t, uint32(Red555Mask), b.RedMask)
	assert.Nil(t, b.Palette)

	h, err := NewHeader(4000, 4000, 32, TopDown)
	require.NoError(t, err)
	assert.False(t, h.HasPixels())
	assert.Nil(t, h.Row(0))
}

func TestNewRejects(t *testing.T) {
	_, err := New(-1, 2, 8, TopDown)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(2, 2, 7, TopDown)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(1<<20, 1<<20, 32, TopDown)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRowOrder(t *testing.T) {
	for _, order := range []Order{TopDown, BottomUp} {
		t.Run(order.String(), func(t *testing.T) {
			b, err := New(4, 3, 8, order)
			require.NoError(t, err)
			for y := 0; y < 3; y++ {
				b.Row(y)[0] = byte(y + 1)
			}
			if order == TopDown {
				assert.Equal(t, byte(1), b.ScanLine(0)[0])
			} else {
				assert.Equal(t, byte(3), b.ScanLine(0)[0])
			}
			assert.Equal(t, byte(2), b.ScanLine(1)[0])
			assert.Nil(t, b.ScanLine(3))
		})
	}
}

func TestIndex(t *testing.T) {
	for _, bpp := range []int{1, 4, 8} {
		b, err := New(13, 2, bpp, BottomUp)
		require.NoError(t, err)
		mask := uint8(1<<bpp - 1)
		for y := 0; y < 2; y++ {
			for x := 0; x < 13; x++ {
				b.SetIndex(x, y, uint8(x*3+y)&mask)
			}
		}
		for y := 0; y < 2; y++ {
			for x := 0; x < 13; x++ {
				assert.Equal(t, uint8(x*3+y)&mask, b.Index(x, y), "bpp %d at %d,%d", bpp, x, y)
			}
		}
	}
}

func TestTransparency(t *testing.T) {
	b, err := New(2, 2, 4, TopDown)
	require.NoError(t, err)
	_, ok := b.TransparentIndex()
	assert.False(t, ok)
	assert.False(t, b.IsTransparent())

	b.SetTransparentIndex(5)
	idx, ok := b.TransparentIndex()
	assert.True(t, ok)
	assert.Equal(t, 5, idx)
	assert.True(t, b.IsTransparent())
	assert.Equal(t, uint8(0), b.ColorPalette()[5].(color.NRGBA).A)

	b.SetTransparentIndex(-1)
	assert.Nil(t, b.Transparency)
}

func TestMetadataOrder(t *testing.T) {
	b, err := New(1, 1, 8, TopDown)
	require.NoError(t, err)
	b.SetMetadata(ModelComments, "Comment1", "second")
	b.SetMetadata(ModelComments, "Comment0", "first")
	b.SetMetadata(ModelComments, "Comment1", "replaced")
	b.SetMetadata(ModelAnimation, TagFrameTime, uint32(100))

	tags := b.MetadataTags(ModelComments)
	require.Len(t, tags, 2)
	assert.Equal(t, "Comment1", tags[0].Key)
	assert.Equal(t, "replaced", tags[0].Value)

	ms, ok := b.MetadataInt(ModelAnimation, TagFrameTime)
	assert.True(t, ok)
	assert.Equal(t, 100, ms)
	_, ok = b.MetadataString(ModelAnimation, TagFrameTime)
	assert.False(t, ok)

	c := b.CloneHeader()
	assert.False(t, c.HasPixels())
	assert.Len(t, c.MetadataTags(ModelComments), 2)
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 80), B: 7, A: 255})
		}
	}
	b, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 24, b.BPP)
	assert.Equal(t, []byte{7, 0, 40}, b.Row(0)[3:6])

	img, err := b.Image()
	require.NoError(t, err)
	assert.Equal(t, src.Pix, img.(*image.NRGBA).Pix)

	src.SetNRGBA(0, 0, color.NRGBA{A: 10})
	b, err = FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 32, b.BPP)
}

func TestImagePaletted(t *testing.T) {
	pal := color.Palette{color.NRGBA{R: 255, A: 255}, color.NRGBA{G: 255, A: 0}}
	src := image.NewPaletted(image.Rect(0, 0, 3, 2), pal)
	src.SetColorIndex(1, 1, 1)
	b, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 8, b.BPP)
	assert.Equal(t, uint8(1), b.Index(1, 1))
	idx, ok := b.TransparentIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	img, err := b.Image()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), img.(*image.Paletted).ColorIndexAt(1, 1))
}

func TestImage16(t *testing.T) {
	b, err := New(1, 1, 16, TopDown)
	require.NoError(t, err)
	b.Row(0)[0], b.Row(0)[1] = 0xFF, 0x7F // 0x7FFF: white in 5-5-5
	img, err := b.Image()
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 255, 255, 255}, img.(*image.NRGBA).Pix)

	g := image.NewGray16(image.Rect(0, 0, 2, 1))
	g.SetGray16(1, 0, color.Gray16{Y: 0x1234})
	b, err = FromImage(g)
	require.NoError(t, err)
	assert.Equal(t, TypeUint16, b.Type)
	assert.Equal(t, []byte{0x34, 0x12}, b.Row(0)[2:4])
}

func TestChecksumIgnoresOrder(t *testing.T) {
	a, _ := New(3, 2, 24, TopDown)
	b, _ := New(3, 2, 24, BottomUp)
	for y := 0; y < 2; y++ {
		for i := range a.Row(y)[:9] {
			a.Row(y)[i] = byte(y*9 + i)
			b.Row(y)[i] = byte(y*9 + i)
		}
	}
	a.Row(0)[11] = 0xEE // padding is ignored
	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.True(t, Equal(a, b))
	b.Row(1)[0] ^= 1
	assert.NotEqual(t, a.Checksum(), b.Checksum())
	assert.False(t, Equal(a, b))
}
