package roi

import "math"

// DefaultContainmentTolerance is the relative area a candidate may lose to
// the container's boundary and still count as contained. Containers are
// usually flood-fill derived while candidates are exact rectangles, so a
// strict test would fail on one-pixel rasterization noise.
const DefaultContainmentTolerance = 0.01

// PixelSet is anything that can answer pixel membership. Region and
// *RasterMask both satisfy it.
type PixelSet interface {
	Contains(x, y int) bool
}

// IsContained reports whether candidate lies inside container up to
// tolerance: the share of candidate's pixels missing from container must not
// exceed tolerance. A share exactly equal to tolerance counts as contained.
// An empty candidate is never contained.
func IsContained(candidate Region, container PixelSet, tolerance float64) bool {
	total, inside := overlapCounts(candidate, container)
	if total == 0 {
		return false
	}
	return float64(total-inside)/float64(total) <= tolerance
}

// overlapCounts returns the point count of candidate and of its
// intersection with container.
func overlapCounts(candidate Region, container PixelSet) (int, int) {
	in := container.Contains
	if r, ok := container.(Region); ok {
		in = r.membership()
	}
	total, inside := 0, 0
	candidate.each(func(x, y int) {
		total++
		if in(x, y) {
			inside++
		}
	})
	return total, inside
}

// CenterInArea reports whether the rotation centre of r lies inside area.
// The centre is tested through the pixel containing it; composite regions
// use the centre of their bounding box. The empty region is never inside.
func CenterInArea(r Region, area PixelSet) bool {
	if r.IsEmpty() {
		return false
	}
	cx, cy := centerPixel(r)
	return area.Contains(cx, cy)
}

func centerPixel(r Region) (int, int) {
	if s, ok := r.Shape(); ok {
		c := s.Center()
		return int(math.Floor(c.X)), int(math.Floor(c.Y))
	}
	b := r.Bounds()
	return (b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2
}
