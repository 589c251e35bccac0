package util

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Namespace scopes content identifiers.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/jpfielding/pixkit.go"))

// ContentID is a name-based UUID of a buffer's geometry and pixels. Equal
// pictures get equal IDs whatever format or row order they were loaded from.
// Palettes are part of the identity of palettised buffers.
func ContentID(b *raster.Buffer) uuid.UUID {
	name := make([]byte, 0, 32+4*len(b.Palette))
	name = binary.BigEndian.AppendUint32(name, uint32(b.Width))
	name = binary.BigEndian.AppendUint32(name, uint32(b.Height))
	name = binary.BigEndian.AppendUint16(name, uint16(b.BPP))
	name = binary.BigEndian.AppendUint16(name, uint16(b.Type))
	if b.BPP <= 8 {
		for _, c := range b.Palette {
			name = append(name, c.R, c.G, c.B, c.A)
		}
	}
	name = binary.BigEndian.AppendUint64(name, b.Checksum())
	return uuid.NewSHA1(Namespace, name)
}
