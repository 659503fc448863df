// Package roi implements the region algebra used to tile microscopy tile
// scans into fields of view and to compare segmentations.
//
// Regions live on the pixel grid of a reference image. A pixel (x, y) belongs
// to a region when its centre (x+0.5, y+0.5) lies inside the region, so point
// counts and boolean operations are exact on the grid and never accumulate
// floating point drift between derivations.
package roi

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Kind identifies how a Region is described.
type Kind int

const (
	// KindEmpty covers no pixels.
	KindEmpty Kind = iota
	// KindRect is a single rotated rectangle.
	KindRect
	// KindComposite is a pixel set produced by a boolean operation.
	KindComposite
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRect:
		return "rect"
	case KindComposite:
		return "composite"
	default:
		return "empty"
	}
}

// RotatedRect is a rectangle anchored at one corner and rotated about that
// corner by Angle degrees, using the image coordinate system (y grows
// downwards). For angles in (-90, 0] the anchor is the left-most vertex.
type RotatedRect struct {
	Anchor r2.Vec
	Width  float64
	Height float64
	// Angle is the rotation in degrees about Anchor.
	Angle float64
}

func (r RotatedRect) rotation() r2.Rotation {
	return r2.NewRotation(r.Angle*math.Pi/180, r.Anchor)
}

// Vertices returns the four corners starting at the anchor, then along the
// width edge, the opposite corner and the end of the height edge.
func (r RotatedRect) Vertices() [4]r2.Vec {
	rot := r.rotation()
	a := r.Anchor
	return [4]r2.Vec{
		a,
		rot.Rotate(r2.Add(a, r2.Vec{X: r.Width})),
		rot.Rotate(r2.Add(a, r2.Vec{X: r.Width, Y: r.Height})),
		rot.Rotate(r2.Add(a, r2.Vec{Y: r.Height})),
	}
}

// Center returns the rotation centre of the rectangle.
func (r RotatedRect) Center() r2.Vec {
	v := r.Vertices()
	return r2.Scale(0.5, r2.Add(v[0], v[2]))
}

// Box returns the continuous bounding box of the rectangle.
func (r RotatedRect) Box() r2.Box {
	v := r.Vertices()
	b := r2.Box{Min: v[0], Max: v[0]}
	for _, p := range v[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// Bounds returns the pixel rectangle holding every pixel whose centre can
// fall inside the rectangle.
func (r RotatedRect) Bounds() image.Rectangle {
	b := r.Box()
	return image.Rect(
		int(math.Ceil(b.Min.X-0.5)),
		int(math.Ceil(b.Min.Y-0.5)),
		int(math.Floor(b.Max.X-0.5))+1,
		int(math.Floor(b.Max.Y-0.5))+1,
	)
}

// Grow returns the rectangle enlarged outward by amount on every side.
func (r RotatedRect) Grow(amount float64) RotatedRect {
	corner := r2.Add(r.Anchor, r2.Vec{X: -amount, Y: -amount})
	return RotatedRect{
		Anchor: r.rotation().Rotate(corner),
		Width:  r.Width + 2*amount,
		Height: r.Height + 2*amount,
		Angle:  r.Angle,
	}
}

// coverage holds the inverse rotation of a RotatedRect so pixel membership
// can be tested without recomputing trigonometry.
type coverage struct {
	ax, ay   float64
	sin, cos float64
	w, h     float64
}

func (r RotatedRect) coverage() coverage {
	sin, cos := math.Sincos(-r.Angle * math.Pi / 180)
	return coverage{ax: r.Anchor.X, ay: r.Anchor.Y, sin: sin, cos: cos, w: r.Width, h: r.Height}
}

func (c coverage) covers(x, y int) bool {
	dx := float64(x) + 0.5 - c.ax
	dy := float64(y) + 0.5 - c.ay
	u := dx*c.cos - dy*c.sin
	v := dx*c.sin + dy*c.cos
	return u >= 0 && u < c.w && v >= 0 && v < c.h
}

// Region is an immutable description of a 2-D area on the pixel grid. The
// zero value is the empty region. Operations never modify their inputs;
// they derive new Regions.
type Region struct {
	kind Kind
	rect RotatedRect

	// box and bits describe composite regions; bits is row-major over box
	// and box is always tight around the set pixels.
	box  image.Rectangle
	bits []bool
}

// NewRegion returns a Region covering the rotated rectangle r.
func NewRegion(r RotatedRect) Region {
	if r.Width <= 0 || r.Height <= 0 || math.IsNaN(r.Width) || math.IsNaN(r.Height) {
		return Region{}
	}
	return Region{kind: KindRect, rect: r}
}

// NewRotatedSquare returns a square of the given side anchored at anchor and
// rotated about it by angle degrees.
func NewRotatedSquare(anchor r2.Vec, side, angle float64) Region {
	return NewRegion(RotatedRect{Anchor: anchor, Width: side, Height: side, Angle: angle})
}

// NewCenteredSquare returns a square of the given side centred on center and
// rotated about it by angle degrees.
func NewCenteredSquare(center r2.Vec, side, angle float64) Region {
	corner := r2.Sub(center, r2.Vec{X: side / 2, Y: side / 2})
	anchor := r2.Rotate(corner, angle*math.Pi/180, center)
	return NewRotatedSquare(anchor, side, angle)
}

// NewRectangle returns the axis-aligned rectangle of w×h pixels whose top
// left pixel is (x, y).
func NewRectangle(x, y, w, h int) Region {
	return NewRegion(RotatedRect{
		Anchor: r2.Vec{X: float64(x), Y: float64(y)},
		Width:  float64(w),
		Height: float64(h),
	})
}

// newComposite builds a composite region from a row-major pixel buffer over
// box, trimming it to the set pixels. The buffer is not retained.
func newComposite(box image.Rectangle, bits []bool) Region {
	w := box.Dx()
	minX, minY, maxX, maxY := box.Max.X, box.Max.Y, box.Min.X-1, box.Min.Y-1
	for y := box.Min.Y; y < box.Max.Y; y++ {
		row := bits[(y-box.Min.Y)*w : (y-box.Min.Y+1)*w]
		for i, set := range row {
			if !set {
				continue
			}
			x := box.Min.X + i
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return Region{}
	}
	tight := image.Rect(minX, minY, maxX+1, maxY+1)

	tw := tight.Dx()
	out := make([]bool, tw*tight.Dy())
	for y := tight.Min.Y; y < tight.Max.Y; y++ {
		src := (y-box.Min.Y)*w + (tight.Min.X - box.Min.X)
		copy(out[(y-tight.Min.Y)*tw:(y-tight.Min.Y+1)*tw], bits[src:src+tw])
	}
	return Region{kind: KindComposite, box: tight, bits: out}
}

// regionFromFunc rasterizes the predicate over box into a composite region.
func regionFromFunc(box image.Rectangle, in func(x, y int) bool) Region {
	if box.Empty() {
		return Region{}
	}
	w := box.Dx()
	bits := make([]bool, w*box.Dy())
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if in(x, y) {
				bits[(y-box.Min.Y)*w+(x-box.Min.X)] = true
			}
		}
	}
	return newComposite(box, bits)
}

// Kind reports how the region is described.
func (r Region) Kind() Kind { return r.kind }

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return r.kind == KindEmpty || (r.kind == KindRect && r.rect.Bounds().Empty())
}

// Shape returns the rotated rectangle describing the region, if it is one.
func (r Region) Shape() (RotatedRect, bool) {
	return r.rect, r.kind == KindRect
}

// Bounds returns the pixel bounding rectangle of the region.
func (r Region) Bounds() image.Rectangle {
	switch r.kind {
	case KindRect:
		return r.rect.Bounds()
	case KindComposite:
		return r.box
	default:
		return image.Rectangle{}
	}
}

// Contains reports whether pixel (x, y) belongs to the region.
func (r Region) Contains(x, y int) bool {
	return r.membership()(x, y)
}

// membership returns a pixel predicate with any per-region setup hoisted.
func (r Region) membership() func(x, y int) bool {
	switch r.kind {
	case KindRect:
		c := r.rect.coverage()
		return c.covers
	case KindComposite:
		box, bits, w := r.box, r.bits, r.box.Dx()
		return func(x, y int) bool {
			if x < box.Min.X || x >= box.Max.X || y < box.Min.Y || y >= box.Max.Y {
				return false
			}
			return bits[(y-box.Min.Y)*w+(x-box.Min.X)]
		}
	default:
		return func(int, int) bool { return false }
	}
}

// each calls fn for every covered pixel in row-major order.
func (r Region) each(fn func(x, y int)) {
	in := r.membership()
	b := r.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if in(x, y) {
				fn(x, y)
			}
		}
	}
}

// PointCount returns the number of pixels covered by the region.
func (r Region) PointCount() int {
	if r.kind == KindComposite {
		n := 0
		for _, set := range r.bits {
			if set {
				n++
			}
		}
		return n
	}
	n := 0
	r.each(func(int, int) { n++ })
	return n
}

// BoundingArea returns the area of the pixel bounding rectangle. It is an
// upper bound of PointCount.
func (r Region) BoundingArea() int {
	b := r.Bounds()
	return b.Dx() * b.Dy()
}

