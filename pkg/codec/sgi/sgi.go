// Package sgi reads and writes SGI (IRIS) images with 8-bit channels.
package sgi

import (
	"bytes"
	"io"

	"github.com/jpfielding/pixkit.go/pkg/codec"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

const Format = "SGI"

const (
	magic     = 474
	headerLen = 512

	storageRaw = 0
	storageRLE = 1
)

// TagImageName is the comment key holding the header's image name.
const TagImageName = "ImageName"

var signature = []byte{0x01, 0xDA}

// header is stored big-endian.
type header struct {
	Magic     uint16
	Storage   uint8
	BPC       uint8 // bytes per channel
	Dimension uint16
	XSize     uint16
	YSize     uint16
	ZSize     uint16 // channels
	PixMin    int32
	PixMax    int32
	Dummy     [4]byte
	ImageName [80]byte
	ColorMap  int32
	Reserved  [404]byte
}

// channelOffsets maps each stored channel to its byte inside a buffer pixel
// and returns the pixel size. Gray with alpha is widened to 32 bits.
func channelOffsets(channels int) ([]int, int) {
	switch channels {
	case 1:
		return []int{0}, 1
	case 2:
		return []int{0, raster.ChannelAlpha}, 4
	case 3:
		return []int{raster.ChannelRed, raster.ChannelGreen, raster.ChannelBlue}, 3
	case 4:
		return []int{raster.ChannelRed, raster.ChannelGreen, raster.ChannelBlue, raster.ChannelAlpha}, 4
	}
	return nil, 0
}

type Codec struct {
	codec.Descriptor
}

func New() *Codec {
	return &Codec{Descriptor: codec.Descriptor{
		Name:     Format,
		Summary:  "SGI Image Format",
		Exts:     []string{"sgi", "rgb", "rgba", "bw"},
		Mime:     "image/x-sgi",
		Depths:   []int{8, 24, 32},
		Types:    []raster.Type{raster.TypeBitmap},
		NoPixels: true,
	}}
}

func (c *Codec) Validate(r io.ReadSeeker) bool {
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return false
	}
	return bytes.Equal(sig, signature)
}
