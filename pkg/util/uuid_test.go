package util

import (
	"testing"

	"github.com/jpfielding/pixkit.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, order raster.Order, bpp int) *raster.Buffer {
	t.Helper()
	b, err := raster.New(5, 3, bpp, order)
	require.NoError(t, err)
	for y := 0; y < b.Height; y++ {
		row := b.Row(y)
		for i := range row[:b.Line()] {
			row[i] = uint8(i*7 + y)
		}
	}
	return b
}

func TestContentID(t *testing.T) {
	top := fill(t, raster.TopDown, 24)
	bottom := fill(t, raster.BottomUp, 24)
	id := ContentID(top)
	assert.Equal(t, id, ContentID(bottom))
	assert.Equal(t, uint8(5), uint8(id.Version()))

	bottom.Row(1)[0]++
	assert.NotEqual(t, id, ContentID(bottom))

	pal := fill(t, raster.TopDown, 8)
	other := fill(t, raster.TopDown, 8)
	assert.Equal(t, ContentID(pal), ContentID(other))
	other.Palette[3].R = 0x80
	assert.NotEqual(t, ContentID(pal), ContentID(other))

	hdr, err := raster.NewHeader(5, 3, 24, raster.TopDown)
	require.NoError(t, err)
	assert.NotEqual(t, id, ContentID(hdr))
}
