package raster

import (
	"errors"
	"fmt"
	"image/color"
)

// Order is the storage order of rows inside a Buffer. It is fixed when the
// buffer is created; Row hides it from callers.
type Order int

const (
	// BottomUp stores the bottom row of the picture first (BMP, SGI).
	BottomUp Order = iota
	// TopDown stores the top row of the picture first (GIF, PCX).
	TopDown
)

func (o Order) String() string {
	if o == TopDown {
		return "top-down"
	}
	return "bottom-up"
}

// Type is the pixel-type class of a Buffer.
type Type int

const (
	TypeUnknown Type = iota
	TypeBitmap       // standard 1/4/8/16/24/32-bit pixels
	TypeUint16       // 16-bit grayscale samples
	TypeRGBA16       // 16-bit per channel RGBA
)

func (t Type) String() string {
	switch t {
	case TypeBitmap:
		return "bitmap"
	case TypeUint16:
		return "uint16"
	case TypeRGBA16:
		return "rgba16"
	}
	return "unknown"
}

const (
	// Alignment is the byte boundary every row is padded to.
	Alignment = 4
	// MaxBytes caps a single pixel allocation.
	MaxBytes = 1 << 31
)

// Byte offsets of the colour channels inside a 24 or 32-bit pixel.
const (
	ChannelBlue  = 0
	ChannelGreen = 1
	ChannelRed   = 2
	ChannelAlpha = 3
)

// Channel masks for the canonical layouts.
const (
	RedMask      = 0x00FF0000
	GreenMask    = 0x0000FF00
	BlueMask     = 0x000000FF
	Red555Mask   = 0x7C00
	Green555Mask = 0x03E0
	Blue555Mask  = 0x001F
	Red565Mask   = 0xF800
	Green565Mask = 0x07E0
	Blue565Mask  = 0x001F
)

var (
	ErrInvalidSize = errors.New("raster: invalid dimensions")
	ErrTooLarge    = errors.New("raster: allocation too large")
	ErrNoPixels    = errors.New("raster: header-only buffer has no pixels")
)

// Buffer is the in-memory picture every codec decodes into and encodes from.
//
// Pixels are stored Pitch bytes per row, Height rows, in the Order chosen at
// construction. Buffers of 8 bits per pixel or less carry a palette of 1<<BPP
// entries. A header-only buffer keeps the header and palette but no pixels.
type Buffer struct {
	Width  int
	Height int
	BPP    int
	Pitch  int
	Type   Type

	Palette      []color.NRGBA
	Transparency []uint8 // alpha per palette entry; nil when opaque
	Background   *color.NRGBA

	RedMask   uint32
	GreenMask uint32
	BlueMask  uint32

	DotsPerMeterX int
	DotsPerMeterY int

	order Order
	pix   []byte
	meta  map[Model]*tagSet
}

// LineBytes is the number of bytes holding one row of visible pixels.
func LineBytes(width, bpp int) int {
	return (width*bpp + 7) / 8
}

// Pitch is LineBytes rounded up to Alignment.
func Pitch(width, bpp int) int {
	return (LineBytes(width, bpp) + Alignment - 1) &^ (Alignment - 1)
}

// New allocates a zeroed buffer.
func New(width, height, bpp int, order Order) (*Buffer, error) {
	return newBuffer(width, height, bpp, order, true)
}

// NewHeader creates a header-only buffer: dimensions and palette, no pixels.
func NewHeader(width, height, bpp int, order Order) (*Buffer, error) {
	return newBuffer(width, height, bpp, order, false)
}

func newBuffer(width, height, bpp int, order Order, pixels bool) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	switch bpp {
	case 1, 4, 8, 16, 24, 32, 48, 64:
	default:
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrInvalidSize, bpp)
	}
	if int64(width)*int64(bpp) > MaxBytes*8 {
		return nil, fmt.Errorf("%w: width %d", ErrTooLarge, width)
	}
	pitch := Pitch(width, bpp)
	if int64(pitch)*int64(height) > MaxBytes {
		return nil, fmt.Errorf("%w: %d x %d bytes", ErrTooLarge, pitch, height)
	}
	b := &Buffer{
		Width:  width,
		Height: height,
		BPP:    bpp,
		Pitch:  pitch,
		Type:   TypeBitmap,
		order:  order,
	}
	switch bpp {
	case 1, 4, 8:
		b.Palette = Grayscale(1 << bpp)
	case 16:
		b.RedMask, b.GreenMask, b.BlueMask = Red555Mask, Green555Mask, Blue555Mask
	case 24, 32:
		b.RedMask, b.GreenMask, b.BlueMask = RedMask, GreenMask, BlueMask
	case 48:
		b.Type = TypeRGBA16
	}
	if pixels {
		b.pix = make([]byte, pitch*height)
	}
	return b, nil
}

// Order reports the storage order of rows.
func (b *Buffer) Order() Order { return b.order }

// HasPixels is false for header-only buffers.
func (b *Buffer) HasPixels() bool { return b.pix != nil }

// Bits is the raw pixel storage, Pitch*Height bytes in storage order.
func (b *Buffer) Bits() []byte { return b.pix }

// Line is the number of bytes of visible pixels in a row (no padding).
func (b *Buffer) Line() int { return LineBytes(b.Width, b.BPP) }

// ScanLine returns storage row i (Pitch bytes). Codecs that read rows in the
// order they sit on disk use it together with a matching Order.
func (b *Buffer) ScanLine(i int) []byte {
	if b.pix == nil || i < 0 || i >= b.Height {
		return nil
	}
	return b.pix[i*b.Pitch : (i+1)*b.Pitch]
}

// Row returns picture row y, where y == 0 is the top of the picture.
func (b *Buffer) Row(y int) []byte {
	if b.order == TopDown {
		return b.ScanLine(y)
	}
	return b.ScanLine(b.Height - 1 - y)
}

// Index returns the palette index of pixel (x, y) for 1, 4 and 8-bit buffers.
func (b *Buffer) Index(x, y int) uint8 {
	row := b.Row(y)
	switch b.BPP {
	case 1:
		return (row[x>>3] >> (7 - uint(x&7))) & 0x01
	case 4:
		if x&1 == 0 {
			return row[x>>1] >> 4
		}
		return row[x>>1] & 0x0F
	default:
		return row[x]
	}
}

// SetIndex writes the palette index of pixel (x, y) for 1, 4 and 8-bit buffers.
func (b *Buffer) SetIndex(x, y int, v uint8) {
	row := b.Row(y)
	switch b.BPP {
	case 1:
		shift := 7 - uint(x&7)
		row[x>>3] = row[x>>3]&^(1<<shift) | (v&0x01)<<shift
	case 4:
		if x&1 == 0 {
			row[x>>1] = row[x>>1]&0x0F | v<<4
		} else {
			row[x>>1] = row[x>>1]&0xF0 | v&0x0F
		}
	default:
		row[x] = v
	}
}

// ColorsUsed is the palette size, zero for true-colour buffers.
func (b *Buffer) ColorsUsed() int {
	if b.BPP > 8 {
		return 0
	}
	return len(b.Palette)
}

// IsTransparent reports whether any palette entry carries alpha below 255.
func (b *Buffer) IsTransparent() bool {
	for _, a := range b.Transparency {
		if a != 0xFF {
			return true
		}
	}
	return false
}

// TransparentIndex returns the first fully transparent palette entry.
func (b *Buffer) TransparentIndex() (int, bool) {
	for i, a := range b.Transparency {
		if a == 0 {
			return i, true
		}
	}
	return -1, false
}

// SetTransparentIndex marks one palette entry as fully transparent and every
// other entry opaque. A negative index clears the table.
func (b *Buffer) SetTransparentIndex(index int) {
	if index < 0 || index >= len(b.Palette) {
		b.Transparency = nil
		return
	}
	table := make([]uint8, len(b.Palette))
	for i := range table {
		table[i] = 0xFF
	}
	table[index] = 0
	b.Transparency = table
}

// CloneHeader copies everything except the pixels into a new header-only buffer.
func (b *Buffer) CloneHeader() *Buffer {
	c := *b
	c.pix = nil
	c.Palette = append([]color.NRGBA(nil), b.Palette...)
	c.Transparency = append([]uint8(nil), b.Transparency...)
	if b.Background != nil {
		bg := *b.Background
		c.Background = &bg
	}
	c.meta = nil
	c.CopyMetadata(b)
	return &c
}

func (b *Buffer) String() string {
	return fmt.Sprintf("%dx%d %dbpp %s %s", b.Width, b.Height, b.BPP, b.Type, b.order)
}
