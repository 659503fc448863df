package roi

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Union returns the geometric OR of regions. A single region is returned
// unchanged.
func Union(regions ...Region) (Region, error) {
	switch len(regions) {
	case 0:
		return Region{}, errors.Wrap(ErrEmptyInput, "union")
	case 1:
		return regions[0], nil
	}

	box := image.Rectangle{}
	members := make([]func(x, y int) bool, 0, len(regions))
	for _, r := range regions {
		if r.IsEmpty() {
			continue
		}
		box = box.Union(r.Bounds())
		members = append(members, r.membership())
	}
	return regionFromFunc(box, func(x, y int) bool {
		for _, in := range members {
			if in(x, y) {
				return true
			}
		}
		return false
	}), nil
}

// Intersection returns the geometric AND of regions, folded left to right.
// A single region is returned unchanged.
func Intersection(regions ...Region) (Region, error) {
	switch len(regions) {
	case 0:
		return Region{}, errors.Wrap(ErrEmptyInput, "intersection")
	case 1:
		return regions[0], nil
	}

	acc := regions[0]
	for _, r := range regions[1:] {
		acc = intersect(acc, r)
	}
	return acc, nil
}

func intersect(a, b Region) Region {
	if a.IsEmpty() || b.IsEmpty() {
		return Region{}
	}
	box := a.Bounds().Intersect(b.Bounds())
	inA, inB := a.membership(), b.membership()
	return regionFromFunc(box, func(x, y int) bool { return inA(x, y) && inB(x, y) })
}

// Xor returns the pixels covered by exactly one of a and b.
func Xor(a, b Region) Region {
	switch {
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}
	inA, inB := a.membership(), b.membership()
	return regionFromFunc(a.Bounds().Union(b.Bounds()), func(x, y int) bool { return inA(x, y) != inB(x, y) })
}

// Subtract removes toRemove from total. toRemove is first grown outward by
// growth pixels so rasterization fuzz along a shared boundary is absorbed;
// only the part of the grown region overlapping total is then exclusive-or'd
// away, so nothing outside total's footprint is ever touched. A result that
// falls apart into several pieces is reduced with Cleanup.
func Subtract(total, toRemove Region, growth float64) (Region, error) {
	if growth < 0 || math.IsNaN(growth) {
		return Region{}, errors.Wrapf(ErrUnsupportedConfiguration, "negative growth %v", growth)
	}
	if total.IsEmpty() {
		return Region{}, errors.Wrap(ErrDegenerateRegion, "subtract from empty region")
	}

	grown := Grow(toRemove, growth)
	overlap := intersect(grown, total)
	result := Xor(total, overlap)
	if result.Kind() == KindComposite {
		result = Cleanup(result)
	}
	return result, nil
}

// Grow enlarges region outward by amount pixels. Rotated rectangles grow
// exactly; composites are dilated with a square structuring element of
// radius ceil(amount).
func Grow(region Region, amount float64) Region {
	if amount <= 0 {
		return region
	}
	switch region.kind {
	case KindRect:
		return NewRegion(region.rect.Grow(amount))
	case KindComposite:
		return dilate(region, int(math.Ceil(amount)))
	default:
		return region
	}
}

// dilate performs a separable max filter of radius k over a composite.
func dilate(r Region, k int) Region {
	box := r.box.Inset(-k)
	w, h := box.Dx(), box.Dy()
	in := r.membership()

	// horizontal pass: a pixel is set if any source pixel within k columns is
	horiz := make([]bool, w*h)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		last := math.MinInt
		for x := box.Min.X - k; x < box.Max.X; x++ {
			if in(x+k, y) {
				last = x + k
			}
			if x >= box.Min.X && last != math.MinInt && last >= x-k {
				horiz[(y-box.Min.Y)*w+(x-box.Min.X)] = true
			}
		}
	}

	out := make([]bool, w*h)
	for x := 0; x < w; x++ {
		last := math.MinInt
		for y := -k; y < h; y++ {
			if y+k < h && horiz[(y+k)*w+x] {
				last = y + k
			}
			if y >= 0 && last != math.MinInt && last >= y-k {
				out[y*w+x] = true
			}
		}
	}
	return newComposite(box, out)
}

// Invert returns the complement of region within canvas.
func Invert(region Region, canvas image.Rectangle) Region {
	in := region.membership()
	return regionFromFunc(canvas, func(x, y int) bool { return !in(x, y) })
}
