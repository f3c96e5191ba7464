package output

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
)

// ToYCbCr converts an NV12 frame into a planar 4:2:0 image.
func ToYCbCr(buf *media.ImageBuffer) (*image.YCbCr, error) {
	info := buf.Info()
	yPlane, uvPlane, err := info.NV12Planes()
	if err != nil {
		return nil, err
	}
	w, h := info.Width, info.Height
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	data := buf.Data()

	for y := 0; y < h; y++ {
		copy(img.Y[y*img.YStride:y*img.YStride+w], data[yPlane.Index(0, y):yPlane.Index(w, y)])
	}
	cw := (w + 1) / 2
	for y := 0; y < (h+1)/2; y++ {
		for x := 0; x < cw; x++ {
			i := uvPlane.Index(2*x, y)
			img.Cb[y*img.CStride+x] = data[i]
			img.Cr[y*img.CStride+x] = data[i+1]
		}
	}
	return img, nil
}

// ToRGBA converts an NV12 frame to RGBA.
func ToRGBA(buf *media.ImageBuffer) (*image.RGBA, error) {
	ycc, err := ToYCbCr(buf)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	dst := image.NewRGBA(ycc.Bounds())
	draw.Draw(dst, dst.Bounds(), ycc, image.Point{}, draw.Src)
	return dst, nil
}

// Composite paints the visible palette entries of region onto dst,
// clipping at the frame edges.
func Composite(dst *image.RGBA, region *osd.Region, palette osd.Palette) {
	if region == nil || !region.Enable {
		return
	}
	b := dst.Bounds()
	for ry := 0; ry < region.Height; ry++ {
		dy := region.PosY + ry
		if dy < b.Min.Y || dy >= b.Max.Y {
			continue
		}
		for rx := 0; rx < region.Width; rx++ {
			dx := region.PosX + rx
			if dx < b.Min.X || dx >= b.Max.X {
				continue
			}
			if c, ok := palette.Lookup(region.Buffer[ry*region.Width+rx]); ok {
				dst.SetRGBA(dx, dy, c)
			}
		}
	}
}

// PaletteImage renders region as a standalone paletted image.
func PaletteImage(region *osd.Region, palette osd.Palette) *image.Paletted {
	pal := make(color.Palette, 256)
	for i := range pal {
		c, _ := palette.Lookup(byte(i))
		pal[i] = c
	}
	img := image.NewPaletted(image.Rect(0, 0, region.Width, region.Height), pal)
	copy(img.Pix, region.Buffer)
	return img
}
