package gif

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stdgif "image/gif"
	"math/rand"
	"strings"
	"testing"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 0xFF, A: 0xFF}
	green = color.NRGBA{G: 0xFF, A: 0xFF}
	blue  = color.NRGBA{B: 0xFF, A: 0xFF}
)

func makeFrame(t *testing.T, width, height, bpp int, seed int64) *raster.Buffer {
	t.Helper()
	b, err := raster.New(width, height, bpp, raster.TopDown)
	require.NoError(t, err)
	rnd := rand.New(rand.NewSource(seed))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b.SetIndex(x, y, uint8(rnd.Intn(1<<bpp)))
		}
	}
	for i := range b.Palette {
		b.Palette[i] = color.NRGBA{R: uint8(i * 5), G: uint8(255 - i), B: uint8(i * 11), A: 0xFF}
	}
	return b
}

// solidFrame is a frame of one palette index over a red, green, blue palette.
func solidFrame(t *testing.T, width, height int, index uint8) *raster.Buffer {
	t.Helper()
	b, err := raster.New(width, height, 4, raster.TopDown)
	require.NoError(t, err)
	copy(b.Palette, []color.NRGBA{red, green, blue})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b.SetIndex(x, y, index)
		}
	}
	return b
}

func pixel(b *raster.Buffer, x, y int) color.NRGBA {
	px := b.Row(y)[4*x:]
	return color.NRGBA{
		R: px[raster.ChannelRed],
		G: px[raster.ChannelGreen],
		B: px[raster.ChannelBlue],
		A: px[raster.ChannelAlpha],
	}
}

func TestRowOrder(t *testing.T) {
	tests := []struct {
		height     int
		interlaced bool
		want       []int
	}{
		{0, true, []int{}},
		{1, true, []int{0}},
		{2, true, []int{0, 1}},
		{5, true, []int{0, 4, 2, 1, 3}},
		{10, true, []int{0, 8, 4, 2, 6, 1, 3, 5, 7, 9}},
		{4, false, []int{0, 1, 2, 3}},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d/%t", tc.height, tc.interlaced), func(t *testing.T) {
			assert.Equal(t, tc.want, rowOrder(tc.height, tc.interlaced))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	c := New()
	for _, bpp := range []int{1, 4, 8} {
		for _, interlaced := range []bool{false, true} {
			for _, height := range []int{1, 2, 3, 5, 9, 17} {
				t.Run(fmt.Sprintf("%dbpp/interlaced=%t/h%d", bpp, interlaced, height), func(t *testing.T) {
					src := makeFrame(t, 13, height, bpp, int64(bpp*height))
					src.SetMetadata(raster.ModelAnimation, raster.TagInterlaced, interlaced)
					var out bytes.Buffer
					require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))
					assert.True(t, c.Validate(bytes.NewReader(out.Bytes())))

					got, err := c.Load(bytes.NewReader(out.Bytes()), 0, codec.Default, nil)
					require.NoError(t, err)
					assert.True(t, raster.Equal(src, got))
					il, _ := got.MetadataInt(raster.ModelAnimation, raster.TagInterlaced)
					assert.Equal(t, interlaced, il == 1)
					local, _ := got.MetadataInt(raster.ModelAnimation, raster.TagNoLocalPalette)
					assert.Zero(t, local)
					t.Logf("%dbpp h%d: %d bytes", bpp, height, out.Len())
				})
			}
		}
	}
}

func TestLoad256(t *testing.T) {
	c := New()
	src := makeFrame(t, 7, 3, 1, 1)
	var out bytes.Buffer
	require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))
	got, err := c.Load(bytes.NewReader(out.Bytes()), 0, codec.Load256, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, got.BPP)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			assert.Equal(t, src.Index(x, y), got.Index(x, y))
		}
	}
}

func TestStandardDecoderAgrees(t *testing.T) {
	c := New()
	for _, bpp := range []int{1, 4, 8} {
		for _, interlaced := range []bool{false, true} {
			t.Run(fmt.Sprintf("%dbpp/interlaced=%t", bpp, interlaced), func(t *testing.T) {
				src := makeFrame(t, 31, 19, bpp, 3)
				src.SetMetadata(raster.ModelAnimation, raster.TagInterlaced, interlaced)
				var out bytes.Buffer
				require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))

				img, err := stdgif.Decode(bytes.NewReader(out.Bytes()))
				require.NoError(t, err)
				pal, ok := img.(*image.Paletted)
				require.True(t, ok)
				for y := 0; y < src.Height; y++ {
					for x := 0; x < src.Width; x++ {
						require.Equal(t, src.Index(x, y), pal.ColorIndexAt(x, y), "pixel %d,%d", x, y)
					}
				}
			})
		}
	}
}

func TestLoadsStandardEncoder(t *testing.T) {
	pal := color.Palette{}
	for i := 0; i < 16; i++ {
		pal = append(pal, color.RGBA{R: uint8(i * 16), G: uint8(i), B: 0x80, A: 0xFF})
	}
	frames := make([]*image.Paletted, 3)
	for i := range frames {
		frames[i] = image.NewPaletted(image.Rect(0, 0, 20, 10), pal)
		for p := range frames[i].Pix {
			frames[i].Pix[p] = uint8((p + i) % len(pal))
		}
	}
	var out bytes.Buffer
	require.NoError(t, stdgif.EncodeAll(&out, &stdgif.GIF{
		Image:     frames,
		Delay:     []int{5, 10, 20},
		Disposal:  []byte{stdgif.DisposalNone, stdgif.DisposalBackground, stdgif.DisposalPrevious},
		LoopCount: 2,
	}))

	c := New()
	r := bytes.NewReader(out.Bytes())
	s, err := c.OpenRead(r)
	require.NoError(t, err)
	defer c.Close(s)
	require.Equal(t, 3, c.PageCount(s))

	for i, frame := range frames {
		got, err := c.Load(r, i, codec.Default, s)
		require.NoError(t, err)
		assert.Equal(t, 4, got.BPP)
		for y := 0; y < 10; y++ {
			for x := 0; x < 20; x++ {
				require.Equal(t, frame.ColorIndexAt(x, y), got.Index(x, y))
			}
		}
		ms, _ := got.MetadataInt(raster.ModelAnimation, raster.TagFrameTime)
		assert.Equal(t, []int{50, 100, 200}[i], ms)
		disposal, _ := got.MetadataInt(raster.ModelAnimation, raster.TagDisposalMethod)
		assert.Equal(t, i+1, disposal)
		if i == 0 {
			loop, _ := got.MetadataInt(raster.ModelAnimation, raster.TagLoop)
			assert.Equal(t, 3, loop)
		}
	}
}

func TestMultiPage(t *testing.T) {
	c := New()
	global := []color.NRGBA{red, green, blue}
	comment := strings.Repeat("pixkit ", 50)

	first := solidFrame(t, 8, 6, 0)
	first.SetMetadata(raster.ModelAnimation, raster.TagGlobalPalette, global)
	first.SetMetadata(raster.ModelAnimation, raster.TagLoop, 0)
	first.SetMetadata(raster.ModelComments, "Comment0", comment)
	first.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, 50)
	bg := green
	first.Background = &bg

	second := solidFrame(t, 3, 2, 2)
	second.SetMetadata(raster.ModelAnimation, raster.TagFrameLeft, 4)
	second.SetMetadata(raster.ModelAnimation, raster.TagFrameTop, 3)
	second.SetMetadata(raster.ModelAnimation, raster.TagDisposalMethod, 3)
	second.SetTransparentIndex(1)

	third := makeFrame(t, 8, 6, 8, 7)

	var out bytes.Buffer
	s, err := c.OpenWrite(&out)
	require.NoError(t, err)
	for _, b := range []*raster.Buffer{first, second, third} {
		require.NoError(t, c.Save(&out, b, -1, codec.Default, s))
	}
	require.NoError(t, c.Close(s))
	assert.Equal(t, byte(blockTrailer), out.Bytes()[out.Len()-1])

	r := bytes.NewReader(out.Bytes())
	rs, err := c.OpenRead(r)
	require.NoError(t, err)
	require.Equal(t, 3, c.PageCount(rs))

	got, err := c.Load(r, 0, codec.Default, rs)
	require.NoError(t, err)
	assert.True(t, raster.Equal(first, got))
	lw, _ := got.MetadataInt(raster.ModelAnimation, raster.TagLogicalWidth)
	lh, _ := got.MetadataInt(raster.ModelAnimation, raster.TagLogicalHeight)
	assert.Equal(t, []int{8, 6}, []int{lw, lh})
	loop, _ := got.MetadataInt(raster.ModelAnimation, raster.TagLoop)
	assert.Equal(t, 0, loop)
	text, _ := got.MetadataString(raster.ModelComments, "Comment0")
	assert.Equal(t, comment, text)
	gp, ok := got.MetadataPalette(raster.ModelAnimation, raster.TagGlobalPalette)
	require.True(t, ok)
	assert.Equal(t, []color.NRGBA{red, green, blue, {A: 0xFF}}, gp)
	require.NotNil(t, got.Background)
	assert.Equal(t, green, *got.Background)
	ms, _ := got.MetadataInt(raster.ModelAnimation, raster.TagFrameTime)
	assert.Equal(t, 50, ms)
	disposal, _ := got.MetadataInt(raster.ModelAnimation, raster.TagDisposalMethod)
	assert.Equal(t, defaultDisposal, disposal)

	got, err = c.Load(r, 1, codec.Default, rs)
	require.NoError(t, err)
	assert.True(t, raster.Equal(second, got))
	left, _ := got.MetadataInt(raster.ModelAnimation, raster.TagFrameLeft)
	top, _ := got.MetadataInt(raster.ModelAnimation, raster.TagFrameTop)
	assert.Equal(t, []int{4, 3}, []int{left, top})
	idx, ok := got.TransparentIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	disposal, _ = got.MetadataInt(raster.ModelAnimation, raster.TagDisposalMethod)
	assert.Equal(t, 3, disposal)
	ms, _ = got.MetadataInt(raster.ModelAnimation, raster.TagFrameTime)
	assert.Equal(t, defaultDelayMS, ms)
	_, ok = got.Metadata(raster.ModelAnimation, raster.TagLoop)
	assert.False(t, ok)

	got, err = c.Load(r, 2, codec.Default, rs)
	require.NoError(t, err)
	assert.True(t, raster.Equal(third, got))

	_, err = c.Load(r, 3, codec.Default, rs)
	assert.True(t, errors.Is(err, codec.ErrPage))
	t.Logf("3 frames: %d bytes", out.Len())
}

func TestLoopDefaults(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		loop any
		want int
	}{
		{"unset", nil, 1},
		{"once", 1, 1},
		{"forever", 0, 0},
		{"three", 3, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := solidFrame(t, 2, 2, 1)
			if tc.loop != nil {
				src.SetMetadata(raster.ModelAnimation, raster.TagLoop, tc.loop)
			}
			var out bytes.Buffer
			require.NoError(t, c.Save(&out, src, 0, codec.Default, nil))
			assert.Equal(t, tc.want != 1, bytes.Contains(out.Bytes(), []byte("NETSCAPE2.0")))
			got, err := c.Load(bytes.NewReader(out.Bytes()), 0, codec.Default, nil)
			require.NoError(t, err)
			loop, _ := got.MetadataInt(raster.ModelAnimation, raster.TagLoop)
			assert.Equal(t, tc.want, loop)
		})
	}
}

func TestPlayback(t *testing.T) {
	c := New()
	base := solidFrame(t, 4, 4, 0)
	base.SetMetadata(raster.ModelAnimation, raster.TagDisposalMethod, 1)
	base.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, 30)

	patch := solidFrame(t, 2, 2, 1)
	patch.SetIndex(0, 0, 2)
	patch.SetTransparentIndex(1)
	patch.SetMetadata(raster.ModelAnimation, raster.TagFrameLeft, 1)
	patch.SetMetadata(raster.ModelAnimation, raster.TagFrameTop, 1)
	patch.SetMetadata(raster.ModelAnimation, raster.TagFrameTime, 70)

	var out bytes.Buffer
	s, err := c.OpenWrite(&out)
	require.NoError(t, err)
	require.NoError(t, c.Save(&out, base, 0, codec.Default, s))
	require.NoError(t, c.Save(&out, patch, 1, codec.Default, s))
	require.NoError(t, c.Close(s))

	r := bytes.NewReader(out.Bytes())
	rs, err := c.OpenRead(r)
	require.NoError(t, err)

	got, err := c.Load(r, 0, codec.Playback, rs)
	require.NoError(t, err)
	assert.Equal(t, 32, got.BPP)
	assert.Equal(t, red, pixel(got, 1, 1))

	got, err = c.Load(r, 1, codec.Playback, rs)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Width)
	assert.Equal(t, 4, got.Height)
	assert.Equal(t, red, pixel(got, 0, 0))
	assert.Equal(t, blue, pixel(got, 1, 1))
	assert.Equal(t, red, pixel(got, 2, 2))
	assert.Equal(t, red, pixel(got, 3, 3))
	ms, _ := got.MetadataInt(raster.ModelAnimation, raster.TagFrameTime)
	assert.Equal(t, 70, ms)
}

func TestMissingTrailer(t *testing.T) {
	c := New()
	var out bytes.Buffer
	require.NoError(t, c.Save(&out, solidFrame(t, 3, 3, 2), 0, codec.Default, nil))
	data := out.Bytes()[:out.Len()-1]

	r := bytes.NewReader(data)
	s, err := c.OpenRead(r)
	require.NoError(t, err)
	assert.Equal(t, 1, c.PageCount(s))
	got, err := c.Load(r, 0, codec.Default, s)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), got.Index(2, 2))
}

func TestErrors(t *testing.T) {
	c := New()
	screen := []byte("GIF89a\x02\x00\x02\x00\x00\x00\x00")
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"signature", []byte("GIF90a\x02\x00\x02\x00\x00\x00\x00;"), codec.ErrFormat},
		{"short screen", []byte("GIF89a\x02"), codec.ErrTruncated},
		{"bad block", append(append([]byte{}, screen...), 0x99), codec.ErrCorrupt},
		{"no frames", append(append([]byte{}, screen...), blockTrailer), codec.ErrPage},
		{"no trailer or frames", screen, codec.ErrTruncated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Load(bytes.NewReader(tc.data), 0, codec.Default, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "%v", err)
		})
	}

	t.Run("write session", func(t *testing.T) {
		var out bytes.Buffer
		s, err := c.OpenWrite(&out)
		require.NoError(t, err)
		_, err = c.Load(bytes.NewReader(out.Bytes()), 0, codec.Default, s)
		assert.True(t, errors.Is(err, codec.ErrUnsupported))
	})

	t.Run("depth", func(t *testing.T) {
		b, err := raster.New(2, 2, 24, raster.TopDown)
		require.NoError(t, err)
		err = c.Save(&bytes.Buffer{}, b, 0, codec.Default, nil)
		assert.True(t, errors.Is(err, codec.ErrUnsupported))
	})
}
