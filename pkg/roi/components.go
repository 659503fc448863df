package roi

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// Components splits region into its 4-connected pieces. Pieces are ordered
// by their first pixel in column-major order (smallest x, then smallest y).
// A rotated rectangle is returned as its own single piece and the empty
// region yields no pieces.
func Components(region Region) []Region {
	switch region.kind {
	case KindEmpty:
		return nil
	case KindRect:
		if region.IsEmpty() {
			return nil
		}
		return []Region{region}
	}

	box := region.box
	w, h := box.Dx(), box.Dy()
	set := 0
	for _, b := range region.bits {
		if b {
			set++
		}
	}
	labels := make([]int32, w*h)
	var pieces []Region
	var label int32

	// column-major seeding keeps piece order consistent with TopLeftAnchor
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			idx := y*w + x
			if !region.bits[idx] || labels[idx] != 0 {
				continue
			}
			label++
			piece, count := floodComponent(region, labels, x, y, label)
			if label == 1 && count == set {
				return []Region{piece}
			}
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

// floodComponent labels the component containing (sx, sy) (coordinates
// relative to the region's box) and returns it as a composite together with
// its pixel count.
func floodComponent(region Region, labels []int32, sx, sy int, label int32) (Region, int) {
	box := region.box
	w, h := box.Dx(), box.Dy()
	minX, minY, maxX, maxY := sx, sy, sx, sy
	count := 0

	stack := []int{sy*w + sx}
	labels[sy*w+sx] = label
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		cx, cy := idx%w, idx/w
		minX, maxX = min(minX, cx), max(maxX, cx)
		minY, maxY = min(minY, cy), max(maxY, cy)

		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if region.bits[ni] && labels[ni] == 0 {
				labels[ni] = label
				stack = append(stack, ni)
			}
		}
	}

	sub := image.Rect(minX, minY, maxX+1, maxY+1)
	sw := sub.Dx()
	bits := make([]bool, sw*sub.Dy())
	for y := sub.Min.Y; y < sub.Max.Y; y++ {
		for x := sub.Min.X; x < sub.Max.X; x++ {
			if labels[y*w+x] == label {
				bits[(y-sub.Min.Y)*sw+(x-sub.Min.X)] = true
			}
		}
	}
	return Region{kind: KindComposite, box: sub.Add(box.Min), bits: bits}, count
}

// Cleanup keeps only the piece of a multi-part composite with the largest
// bounding area, discarding the slivers left behind by boolean operations
// at fuzzy boundaries. Ties go to the piece found first. Rotated rectangles,
// empty regions and single-piece composites are returned unchanged.
func Cleanup(region Region) Region {
	if region.kind != KindComposite {
		return region
	}
	pieces := Components(region)
	if len(pieces) <= 1 {
		return region
	}
	best := pieces[0]
	for _, p := range pieces[1:] {
		if p.BoundingArea() > best.BoundingArea() {
			best = p
		}
	}
	return best
}

// TopLeftAnchor returns the outline point with the smallest x, breaking
// ties by the smallest y. For composites this is the top-left corner of the
// first covered pixel in column-major order.
func TopLeftAnchor(region Region) (r2.Vec, error) {
	switch region.kind {
	case KindRect:
		if region.IsEmpty() {
			break
		}
		v := region.rect.Vertices()
		best := v[0]
		for _, p := range v[1:] {
			if p.X < best.X || (p.X == best.X && p.Y < best.Y) {
				best = p
			}
		}
		return best, nil
	case KindComposite:
		box, w := region.box, region.box.Dx()
		for x := 0; x < w; x++ {
			for y := 0; y < box.Dy(); y++ {
				if region.bits[y*w+x] {
					return r2.Vec{X: float64(box.Min.X + x), Y: float64(box.Min.Y + y)}, nil
				}
			}
		}
	}
	return r2.Vec{}, errors.Wrap(ErrDegenerateRegion, "anchor of empty region")
}
