package media

import "fmt"

// PixelFormat enumerates the raw layouts a pipeline can hand over.
type PixelFormat int

const (
	FormatNone PixelFormat = iota - 1
	FormatYUV420P
	FormatNV12
	FormatNV21
	FormatYUV422P
	FormatNV16
	FormatNV61
	FormatYVYU422
	FormatUYVY422
	FormatRGB565
	FormatBGR565
	FormatRGB888
	FormatBGR888
	FormatARGB8888
	FormatABGR8888
)

var formatNames = map[PixelFormat]string{
	FormatYUV420P:  "yuv420p",
	FormatNV12:     "nv12",
	FormatNV21:     "nv21",
	FormatYUV422P:  "yuv422p",
	FormatNV16:     "nv16",
	FormatNV61:     "nv61",
	FormatYVYU422:  "yvyu422",
	FormatUYVY422:  "uyvy422",
	FormatRGB565:   "rgb565",
	FormatBGR565:   "bgr565",
	FormatRGB888:   "rgb888",
	FormatBGR888:   "bgr888",
	FormatARGB8888: "argb8888",
	FormatABGR8888: "abgr8888",
}

func (f PixelFormat) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "none"
}

// ParsePixelFormat accepts the lower-case names used in config files.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for f, n := range formatNames {
		if n == s {
			return f, nil
		}
	}
	return FormatNone, fmt.Errorf("unknown pixel format %q", s)
}

// ImageInfo describes the logical and stride-aligned dimensions of a frame.
type ImageInfo struct {
	Format    PixelFormat
	Width     int // valid pixel width
	Height    int // valid pixel height
	VirWidth  int // stride width, 0 means Width
	VirHeight int // stride height, 0 means Height
}

// Stride returns the row pitch in samples.
func (i ImageInfo) Stride() int {
	if i.VirWidth > 0 {
		return i.VirWidth
	}
	return i.Width
}

// Rows returns the allocated luma row count.
func (i ImageInfo) Rows() int {
	if i.VirHeight > 0 {
		return i.VirHeight
	}
	return i.Height
}

// Size is the number of bytes the layout occupies, or 0 when the format
// has no known size.
func (i ImageInfo) Size() int {
	s, r := i.Stride(), i.Rows()
	switch i.Format {
	case FormatYUV420P, FormatNV12, FormatNV21:
		return s*r + s*((r+1)/2)
	case FormatYUV422P, FormatNV16, FormatNV61, FormatYVYU422, FormatUYVY422,
		FormatRGB565, FormatBGR565:
		return s * r * 2
	case FormatRGB888, FormatBGR888:
		return s * r * 3
	case FormatARGB8888, FormatABGR8888:
		return s * r * 4
	default:
		return 0
	}
}

// Plane locates one sample plane inside the buffer.
type Plane struct {
	Offset int
	Stride int
	Rows   int
}

// Index returns the byte offset of sample (x, y) within the plane.
func (p Plane) Index(x, y int) int {
	return p.Offset + y*p.Stride + x
}

// NV12Planes returns the luma plane and the interleaved UV plane. The UV
// plane has half the rows (rounded up); each row holds U,V pairs for two luma columns.
func (i ImageInfo) NV12Planes() (y, uv Plane, err error) {
	if i.Format != FormatNV12 {
		return Plane{}, Plane{}, fmt.Errorf("no nv12 planes for %s", i.Format)
	}
	s, r := i.Stride(), i.Rows()
	y = Plane{Offset: 0, Stride: s, Rows: r}
	uv = Plane{Offset: s * r, Stride: s, Rows: (r + 1) / 2}
	return y, uv, nil
}
