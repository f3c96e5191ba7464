package overlay

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/rs/zerolog"
)

// DefaultRegionID is the OSD region the stage draws detections into.
const DefaultRegionID = 7

var (
	// ErrMisaligned rejects regions whose size is not a multiple of 16.
	ErrMisaligned = errors.New("overlay: osd region size must be a multiple of 16x16")

	// ErrNoRegion means no rectangle survived alignment.
	ErrNoRegion = errors.New("overlay: no drawable region")

	// ErrNoSink means the hardware path was used without a sink.
	ErrNoSink = errors.New("overlay: no osd sink attached")
)

// Hardware turns a set of boxes into a single OSD region covering all of
// them and hands it to a sink.
type Hardware struct {
	Thickness    int
	PaletteIndex byte
	Background   byte
	RegionID     int

	log *zerolog.Logger
}

// NewHardware returns a builder with the stage defaults.
func NewHardware(thickness int) *Hardware {
	if thickness < 1 {
		thickness = DefaultThickness
	}
	return &Hardware{
		Thickness:    thickness,
		PaletteIndex: osd.IndexOutline,
		Background:   osd.IndexTransparent,
		RegionID:     DefaultRegionID,
		log:          logger.WithComponent("overlay"),
	}
}

// Build aligns rects to the 16 pixel grid, bounds them and rasterizes their
// outlines into a palette buffer.
//
// Outlines are drawn over the half-open range [Top,Bottom)x[Left,Right),
// unlike Software.DrawRect which is inclusive: region edges are exclusive.
func (h *Hardware) Build(rects []geometry.Rect) (*osd.Region, error) {
	aligned := make([]geometry.Rect, 0, len(rects))
	for _, r := range rects {
		a := r.Align(osd.Alignment)
		if a.Empty() {
			h.log.Debug().Stringer("rect", r).Msg("rect vanished after 16px alignment")
			continue
		}
		aligned = append(aligned, a)
	}
	if len(aligned) == 0 {
		return nil, ErrNoRegion
	}

	bounds := geometry.Combine(aligned)
	origin := bounds.Min()
	w, hgt := bounds.Width(), bounds.Height()

	buf := make([]byte, w*hgt)
	for i := range buf {
		buf[i] = h.Background
	}
	for _, r := range aligned {
		h.rasterize(buf, w, r.Sub(origin))
	}

	return &osd.Region{
		PosX:     bounds.Left,
		PosY:     bounds.Top,
		Width:    w,
		Height:   hgt,
		Enable:   true,
		RegionID: h.RegionID,
		Buffer:   buf,
	}, nil
}

// rasterize draws r's band over [Top,Bottom)x[Left,Right) with the inclusive
// band test shared with Software. Over a half-open range that gives
// Thickness+1 columns/rows on the left and top edges but Thickness on the
// right and bottom ones.
func (h *Hardware) rasterize(buf []byte, stride int, r geometry.Rect) {
	for y := r.Top; y < r.Bottom; y++ {
		row := y * stride
		for _, span := range geometry.RowSpans(y, r, h.Thickness, r.Left, r.Right-1) {
			for x := span[0]; x <= span[1]; x++ {
				buf[row+x] = h.PaletteIndex
			}
		}
	}
}

// Submit validates region and moves it to sink. The caller must not touch
// region.Buffer afterwards.
func (h *Hardware) Submit(sink osd.Sink, region *osd.Region) error {
	if sink == nil {
		return ErrNoSink
	}
	if region.Enable && !region.Aligned() {
		h.log.Error().
			Int("width", region.Width).
			Int("height", region.Height).
			Msg("osd region size must be a multiple of 16x16")
		return fmt.Errorf("%w: %dx%d", ErrMisaligned, region.Width, region.Height)
	}
	payload, err := region.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode osd region: %w", err)
	}
	region.Buffer = nil
	if err := sink.ChangeRegion(payload); err != nil {
		return fmt.Errorf("osd sink: %w", err)
	}
	return nil
}

// Draw builds and submits a region for rects.
func (h *Hardware) Draw(sink osd.Sink, rects []geometry.Rect) (*osd.Region, error) {
	region, err := h.Build(rects)
	if err != nil {
		return nil, err
	}
	meta := *region
	meta.Buffer = nil
	if err := h.Submit(sink, region); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Disable hides regionID on sink.
func (h *Hardware) Disable(sink osd.Sink, regionID int) error {
	return h.Submit(sink, osd.DisableRegion(regionID))
}
