package roi

import (
	"image"

	"gonum.org/v1/gonum/spatial/r2"
)

// RasterMask is a mutable per-pixel buffer over a canvas. It is used to
// track area that is still available while a region is consumed piece by
// piece; clearing pixels is exact where repeated polygon subtraction along
// rotated edges is not.
//
// A RasterMask is not safe for concurrent use.
type RasterMask struct {
	canvas image.Rectangle
	bits   []bool

	// per-column and per-row population counts keep Bounds and
	// TopLeftAnchor proportional to the canvas perimeter
	cols  []int
	rows  []int
	count int

	// firstCol never decreases: pixels are only ever cleared after
	// rasterization
	firstCol int
}

// NewRasterMask returns an empty mask over canvas.
func NewRasterMask(canvas image.Rectangle) *RasterMask {
	return &RasterMask{
		canvas: canvas,
		bits:   make([]bool, canvas.Dx()*canvas.Dy()),
		cols:   make([]int, canvas.Dx()),
		rows:   make([]int, canvas.Dy()),
	}
}

// Rasterize returns a mask over canvas with every pixel of region set.
// Pixels of region outside canvas are dropped.
func Rasterize(region Region, canvas image.Rectangle) *RasterMask {
	m := NewRasterMask(canvas)
	in := region.membership()
	b := region.Bounds().Intersect(canvas)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if in(x, y) {
				m.Set(x, y)
			}
		}
	}
	return m
}

// Canvas returns the extent of the mask.
func (m *RasterMask) Canvas() image.Rectangle { return m.canvas }

func (m *RasterMask) index(x, y int) (int, bool) {
	if !(image.Point{X: x, Y: y}).In(m.canvas) {
		return 0, false
	}
	return (y-m.canvas.Min.Y)*m.canvas.Dx() + (x - m.canvas.Min.X), true
}

// Contains reports whether pixel (x, y) is set.
func (m *RasterMask) Contains(x, y int) bool {
	i, ok := m.index(x, y)
	return ok && m.bits[i]
}

// Set marks pixel (x, y). It reports whether the pixel changed.
func (m *RasterMask) Set(x, y int) bool {
	i, ok := m.index(x, y)
	if !ok || m.bits[i] {
		return false
	}
	m.bits[i] = true
	m.cols[x-m.canvas.Min.X]++
	m.rows[y-m.canvas.Min.Y]++
	m.count++
	if x-m.canvas.Min.X < m.firstCol {
		m.firstCol = x - m.canvas.Min.X
	}
	return true
}

// Clear unmarks pixel (x, y). It reports whether the pixel changed.
func (m *RasterMask) Clear(x, y int) bool {
	i, ok := m.index(x, y)
	if !ok || !m.bits[i] {
		return false
	}
	m.bits[i] = false
	m.cols[x-m.canvas.Min.X]--
	m.rows[y-m.canvas.Min.Y]--
	m.count--
	return true
}

// Cut clears every pixel of region and returns how many pixels were cleared.
func (m *RasterMask) Cut(region Region) int {
	in := region.membership()
	b := region.Bounds().Intersect(m.canvas)
	cleared := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if in(x, y) && m.Clear(x, y) {
				cleared++
			}
		}
	}
	return cleared
}

// PointCount returns the number of set pixels.
func (m *RasterMask) PointCount() int { return m.count }

// IsEmpty reports whether no pixel is set.
func (m *RasterMask) IsEmpty() bool { return m.count == 0 }

// Bounds returns the tight bounding rectangle of the set pixels.
func (m *RasterMask) Bounds() image.Rectangle {
	if m.count == 0 {
		return image.Rectangle{}
	}
	x0, x1 := span(m.cols)
	y0, y1 := span(m.rows)
	return image.Rect(x0, y0, x1+1, y1+1).Add(m.canvas.Min)
}

func span(counts []int) (int, int) {
	lo, hi := 0, len(counts)-1
	for lo < len(counts) && counts[lo] == 0 {
		lo++
	}
	for hi >= 0 && counts[hi] == 0 {
		hi--
	}
	return lo, hi
}

// BoundingArea returns the area of Bounds. It is the loose estimate of the
// remaining area used to decide when tiling stops.
func (m *RasterMask) BoundingArea() int {
	b := m.Bounds()
	return b.Dx() * b.Dy()
}

// TopLeftAnchor returns the first set pixel in column-major order (smallest
// x, then smallest y). It agrees with TopLeftAnchor(m.Region()).
func (m *RasterMask) TopLeftAnchor() (r2.Vec, bool) {
	if m.count == 0 {
		return r2.Vec{}, false
	}
	for m.firstCol < len(m.cols) && m.cols[m.firstCol] == 0 {
		m.firstCol++
	}
	w := m.canvas.Dx()
	for y := 0; y < m.canvas.Dy(); y++ {
		if m.bits[y*w+m.firstCol] {
			return r2.Vec{
				X: float64(m.canvas.Min.X + m.firstCol),
				Y: float64(m.canvas.Min.Y + y),
			}, true
		}
	}
	return r2.Vec{}, false
}

// Region converts the set pixels into a composite Region.
func (m *RasterMask) Region() Region {
	return newComposite(m.canvas, m.bits)
}

