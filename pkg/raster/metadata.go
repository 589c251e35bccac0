package raster

import (
	"image/color"
)

// Model groups metadata keys by the kind of information they carry.
type Model int

const (
	ModelComments Model = iota
	ModelAnimation
	ModelCustom
)

func (m Model) String() string {
	switch m {
	case ModelComments:
		return "comments"
	case ModelAnimation:
		return "animation"
	}
	return "custom"
}

// Animation keys shared by multi-frame codecs and the compositor.
const (
	TagLogicalWidth   = "LogicalWidth"
	TagLogicalHeight  = "LogicalHeight"
	TagGlobalPalette  = "GlobalPalette"
	TagLoop           = "Loop"
	TagFrameLeft      = "FrameLeft"
	TagFrameTop       = "FrameTop"
	TagNoLocalPalette = "NoLocalPalette"
	TagInterlaced     = "Interlaced"
	TagFrameTime      = "FrameTime"
	TagDisposalMethod = "DisposalMethod"
)

// Tag is one metadata entry.
type Tag struct {
	Key   string
	Value any
}

type tagSet struct {
	keys   []string
	values map[string]any
}

// SetMetadata stores value under key, keeping first-insertion order.
func (b *Buffer) SetMetadata(m Model, key string, value any) {
	if b.meta == nil {
		b.meta = map[Model]*tagSet{}
	}
	set, ok := b.meta[m]
	if !ok {
		set = &tagSet{values: map[string]any{}}
		b.meta[m] = set
	}
	if _, ok := set.values[key]; !ok {
		set.keys = append(set.keys, key)
	}
	set.values[key] = value
}

// Metadata returns the raw value stored under key.
func (b *Buffer) Metadata(m Model, key string) (any, bool) {
	set, ok := b.meta[m]
	if !ok {
		return nil, false
	}
	v, ok := set.values[key]
	return v, ok
}

// MetadataInt returns an integer-valued entry whatever integer type was stored.
func (b *Buffer) MetadataInt(m Model, key string) (int, bool) {
	v, ok := b.Metadata(m, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// MetadataString returns a string-valued entry.
func (b *Buffer) MetadataString(m Model, key string) (string, bool) {
	v, ok := b.Metadata(m, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MetadataPalette returns a palette-valued entry.
func (b *Buffer) MetadataPalette(m Model, key string) ([]color.NRGBA, bool) {
	v, ok := b.Metadata(m, key)
	if !ok {
		return nil, false
	}
	p, ok := v.([]color.NRGBA)
	return p, ok
}

// MetadataTags lists the entries of a model in insertion order.
func (b *Buffer) MetadataTags(m Model) []Tag {
	set, ok := b.meta[m]
	if !ok {
		return nil
	}
	tags := make([]Tag, 0, len(set.keys))
	for _, k := range set.keys {
		tags = append(tags, Tag{Key: k, Value: set.values[k]})
	}
	return tags
}

// CopyMetadata copies every entry of src into b.
func (b *Buffer) CopyMetadata(src *Buffer) {
	for _, m := range []Model{ModelComments, ModelAnimation, ModelCustom} {
		for _, t := range src.MetadataTags(m) {
			b.SetMetadata(m, t.Key, t.Value)
		}
	}
}
