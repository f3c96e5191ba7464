// Package overlay draws detection boxes, either straight into NV12 frames
// or as palette regions for a hardware compositor.
package overlay

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/rs/zerolog"
)

// DefaultThickness is the outline width when none is configured.
const DefaultThickness = 2

// ErrUnsupportedFormat is returned for frames the software path cannot draw on.
var ErrUnsupportedFormat = errors.New("overlay: unsupported pixel format")

// YUV is a colour in the frame's native space.
type YUV struct {
	Y, U, V uint8
}

// Red is the software outline colour.
var Red = YUV{Y: 0x4C, U: 0x54, V: 0xFF}

// YUVFromPacked splits a 0xYYUUVV value.
func YUVFromPacked(c uint32) YUV {
	return YUV{Y: uint8(c >> 16), U: uint8(c >> 8), V: uint8(c)}
}

// Software writes outlines into NV12 frames in place.
type Software struct {
	Thickness int
	Color     YUV

	log *zerolog.Logger
}

// NewSoftware returns a renderer drawing red outlines of the given thickness.
func NewSoftware(thickness int) *Software {
	if thickness < 1 {
		thickness = DefaultThickness
	}
	return &Software{
		Thickness: thickness,
		Color:     Red,
		log:       logger.WithComponent("overlay"),
	}
}

// DrawRect clamps rect to the frame and draws its outline. The frame must
// be in a CPU access bracket.
//
// The outline covers the inclusive range [Top..Bottom]x[Left..Right]; a
// pixel is written when it is within Thickness of an edge (geometry.InBand).
func (s *Software) DrawRect(buf *media.ImageBuffer, rect geometry.Rect) error {
	info := buf.Info()
	if info.Format != media.FormatNV12 {
		s.log.Warn().Str("format", info.Format.String()).Msg("can't draw rect on this format yet")
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, info.Format)
	}

	t := s.Thickness
	clamped, moved := rect.Clamp(info.Width, info.Height, t)
	s.logClamp(rect, clamped, moved, info)

	if clamped.Inverted() {
		s.log.Debug().Stringer("rect", rect).Msg("rect outside frame, skipped")
		return nil
	}

	yPlane, uvPlane, err := info.NV12Planes()
	if err != nil {
		return err
	}
	data := buf.Data()
	c := s.Color

	for y := clamped.Top; y <= clamped.Bottom; y++ {
		for _, span := range geometry.RowSpans(y, clamped, t, clamped.Left, clamped.Right) {
			row := yPlane.Index(0, y)
			for x := span[0]; x <= span[1]; x++ {
				data[row+x] = c.Y
			}
			// chroma is shared by 2x2 luma blocks; U sits on the even column
			for x := span[0] - span[0]%2; x <= span[1]; x += 2 {
				u := uvPlane.Index(x, y/2)
				data[u] = c.U
				data[u+1] = c.V
			}
		}
	}
	return nil
}

func (s *Software) logClamp(orig, clamped geometry.Rect, moved geometry.Edges, info media.ImageInfo) {
	if moved == 0 {
		return
	}
	ev := s.log.Warn().
		Stringer("rect", orig).
		Stringer("clamped", clamped).
		Int("width", info.Width).
		Int("height", info.Height)
	if moved.Has(geometry.EdgeRight) {
		ev = ev.Bool("right_clamped", true)
	}
	if moved.Has(geometry.EdgeLeft) {
		ev = ev.Bool("left_clamped", true)
	}
	if moved.Has(geometry.EdgeBottom) {
		ev = ev.Bool("bottom_clamped", true)
	}
	if moved.Has(geometry.EdgeTop) {
		ev = ev.Bool("top_clamped", true)
	}
	ev.Msg("draw rect clamped to frame")
}
