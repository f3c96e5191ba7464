package osd

import (
	"image/color"
)

// Sink is the control surface of a compositor that owns OSD regions.
// ChangeRegion replaces the content and visibility of the region named in
// the payload. The payload is owned by the sink once the call is made.
type Sink interface {
	ChangeRegion(payload []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(payload []byte) error

// ChangeRegion implements Sink.
func (f SinkFunc) ChangeRegion(payload []byte) error { return f(payload) }

// Palette indices used by the drawing stage.
const (
	IndexOutline     byte = 0x23
	IndexTransparent byte = 0xFF
)

// Palette maps OSD palette indices to colours for software compositors.
// Indices without an entry are treated as transparent.
type Palette map[byte]color.RGBA

// DefaultPalette matches the indices the drawing stage emits.
var DefaultPalette = Palette{
	IndexOutline: {R: 0xFF, G: 0x00, B: 0x00, A: 0xFF},
}

// Lookup returns the colour for index and whether it is visible.
func (p Palette) Lookup(index byte) (color.RGBA, bool) {
	if index == IndexTransparent {
		return color.RGBA{}, false
	}
	c, ok := p[index]
	if !ok || c.A == 0 {
		return color.RGBA{}, false
	}
	return c, true
}
