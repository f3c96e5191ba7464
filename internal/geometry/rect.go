// Package geometry holds the rectangle math shared by the software and
// hardware overlay paths. Everything here is pure.
package geometry

import (
	"fmt"
	"image"
)

// Rect is a detection box in pixel coordinates.
//
// Whether Right/Bottom are inclusive depends on the consumer: the software
// renderer walks [Top..Bottom]x[Left..Right] inclusively, the hardware
// builder walks [Top,Bottom)x[Left,Right).
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Point is an origin used for translation.
type Point struct {
	X, Y int
}

// Width returns Right-Left.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns Bottom-Top.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Inverted reports whether an edge pair crossed (Left > Right or Top > Bottom).
func (r Rect) Inverted() bool { return r.Left > r.Right || r.Top > r.Bottom }

// Min returns the top-left corner.
func (r Rect) Min() Point { return Point{X: r.Left, Y: r.Top} }

// Sub translates r so that p becomes the local origin.
func (r Rect) Sub(p Point) Rect {
	return Rect{
		Left:   r.Left - p.X,
		Top:    r.Top - p.Y,
		Right:  r.Right - p.X,
		Bottom: r.Bottom - p.Y,
	}
}

// Image converts to an image.Rectangle (half-open).
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// FromImage converts an image.Rectangle.
func FromImage(r image.Rectangle) Rect {
	return Rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Edges is a bit set of the edges a Clamp call moved.
type Edges uint8

const (
	EdgeLeft Edges = 1 << iota
	EdgeTop
	EdgeRight
	EdgeBottom
)

// Has reports whether e contains edge.
func (e Edges) Has(edge Edges) bool { return e&edge != 0 }

// Clamp keeps an outline of the given thickness inside a width x height
// image. Each edge is clamped independently:
//
//	right  > width-thick  -> width-thick
//	left   < 0            -> 0
//	bottom > height-thick -> height-thick
//	top    < 0            -> 0
//
// A rectangle lying completely outside the image comes back Inverted.
func (r Rect) Clamp(width, height, thick int) (Rect, Edges) {
	var moved Edges
	if r.Right > width-thick {
		r.Right = width - thick
		moved |= EdgeRight
	}
	if r.Left < 0 {
		r.Left = 0
		moved |= EdgeLeft
	}
	if r.Bottom > height-thick {
		r.Bottom = height - thick
		moved |= EdgeBottom
	}
	if r.Top < 0 {
		r.Top = 0
		moved |= EdgeTop
	}
	return r, moved
}

// AlignUp rounds v up to the next multiple of a.
func AlignUp(v, a int) int {
	if a <= 1 {
		return v
	}
	return floorDiv(v+a-1, a) * a
}

// AlignDown rounds v down to the previous multiple of a.
func AlignDown(v, a int) int {
	if a <= 1 {
		return v
	}
	return floorDiv(v, a) * a
}

func floorDiv(v, a int) int {
	q := v / a
	if v%a != 0 && v < 0 {
		q--
	}
	return q
}

// Align shrinks r onto an a-pixel grid: Left/Top go up, Right/Bottom go down.
func (r Rect) Align(a int) Rect {
	return Rect{
		Left:   AlignUp(r.Left, a),
		Top:    AlignUp(r.Top, a),
		Right:  AlignDown(r.Right, a),
		Bottom: AlignDown(r.Bottom, a),
	}
}

// Combine returns the bounding box of rects, or the zero Rect when empty.
func Combine(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	c := rects[0]
	for _, r := range rects[1:] {
		c.Left = min(c.Left, r.Left)
		c.Top = min(c.Top, r.Top)
		c.Right = max(c.Right, r.Right)
		c.Bottom = max(c.Bottom, r.Bottom)
	}
	return c
}

// InBand reports whether (x, y) lies on the outline of r with the given
// thickness. Both renderers use this test; only their iteration bounds differ.
func InBand(x, y int, r Rect, thick int) bool {
	return x <= r.Left+thick || x >= r.Right-thick ||
		y <= r.Top+thick || y >= r.Bottom-thick
}

// RowSpans returns the x ranges of row y that belong to the outline band,
// given inclusive column bounds [x0, x1]. A full-band row yields one span,
// other rows yield the left and right strips. Spans are inclusive.
func RowSpans(y int, r Rect, thick, x0, x1 int) [][2]int {
	if x0 > x1 {
		return nil
	}
	if y <= r.Top+thick || y >= r.Bottom-thick {
		return [][2]int{{x0, x1}}
	}
	leftEnd := min(r.Left+thick, x1)
	rightStart := max(r.Right-thick, x0)
	if leftEnd >= rightStart-1 {
		return [][2]int{{x0, x1}}
	}
	var spans [][2]int
	if leftEnd >= x0 {
		spans = append(spans, [2]int{x0, leftEnd})
	}
	if rightStart <= x1 {
		spans = append(spans, [2]int{rightStart, x1})
	}
	return spans
}
