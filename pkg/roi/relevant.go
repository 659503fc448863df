package roi

import (
	"image"

	"github.com/pkg/errors"
)

// PixelBuffer is the read-only view of an image the region code needs.
type PixelBuffer interface {
	Bounds() image.Rectangle
	Intensity(x, y int) float64
}

// isBlank is the single definition of "no image data" shared by relevant
// region detection and segmentation extraction.
func isBlank(v, threshold float64) bool {
	return v <= threshold
}

// FindRelevantRegion returns the part of img that holds image data, leaving
// out the blank padding that rotating a tile scan adds along the canvas
// edges. Blank area connected to each of the four corners is flood filled,
// the patches are unioned and the union is inverted within the canvas. When
// the inversion leaves several pieces only the dominant one is kept.
//
// A canvas without blank corners yields the whole canvas and an entirely
// blank canvas yields the empty region.
func FindRelevantRegion(img PixelBuffer, blankThreshold float64) (Region, error) {
	padding, err := FindBlankPadding(img, blankThreshold)
	if err != nil {
		return Region{}, err
	}
	return Cleanup(Invert(padding, img.Bounds())), nil
}

// FindBlankPadding returns the union of the blank areas 4-connected to the
// corners of img. A corner that is not blank contributes nothing.
func FindBlankPadding(img PixelBuffer, blankThreshold float64) (Region, error) {
	canvas := img.Bounds()
	if canvas.Empty() {
		return Region{}, errors.Wrap(ErrDegenerateRegion, "empty canvas")
	}

	corners := []image.Point{
		canvas.Min,
		{X: canvas.Max.X - 1, Y: canvas.Min.Y},
		{X: canvas.Min.X, Y: canvas.Max.Y - 1},
		{X: canvas.Max.X - 1, Y: canvas.Max.Y - 1},
	}

	var patches []Region
	for _, c := range corners {
		if coveredBy(patches, c) {
			continue
		}
		patch := floodFillBlank(img, c, blankThreshold)
		if !patch.IsEmpty() {
			patches = append(patches, patch)
		}
	}
	if len(patches) == 0 {
		return Region{}, nil
	}
	return Union(patches...)
}

func coveredBy(patches []Region, p image.Point) bool {
	for _, r := range patches {
		if r.Contains(p.X, p.Y) {
			return true
		}
	}
	return false
}

// floodFillBlank returns the 4-connected blank area reachable from seed. A
// seed that is not blank yields the empty region.
func floodFillBlank(img PixelBuffer, seed image.Point, threshold float64) Region {
	canvas := img.Bounds()
	if !isBlank(img.Intensity(seed.X, seed.Y), threshold) {
		return Region{}
	}

	w, h := canvas.Dx(), canvas.Dy()
	filled := make([]bool, w*h)
	stack := []image.Point{seed}
	filled[(seed.Y-canvas.Min.Y)*w+(seed.X-canvas.Min.X)] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// scan the run of blank pixels through p, queueing the rows above and below
		x0 := p.X
		for x0 > canvas.Min.X && !filled[(p.Y-canvas.Min.Y)*w+(x0-1-canvas.Min.X)] && isBlank(img.Intensity(x0-1, p.Y), threshold) {
			x0--
		}
		x1 := p.X
		for x1 < canvas.Max.X-1 && !filled[(p.Y-canvas.Min.Y)*w+(x1+1-canvas.Min.X)] && isBlank(img.Intensity(x1+1, p.Y), threshold) {
			x1++
		}
		for x := x0; x <= x1; x++ {
			filled[(p.Y-canvas.Min.Y)*w+(x-canvas.Min.X)] = true
			for _, ny := range [2]int{p.Y - 1, p.Y + 1} {
				if ny < canvas.Min.Y || ny >= canvas.Max.Y {
					continue
				}
				i := (ny-canvas.Min.Y)*w + (x - canvas.Min.X)
				if !filled[i] && isBlank(img.Intensity(x, ny), threshold) {
					filled[i] = true
					stack = append(stack, image.Point{X: x, Y: ny})
				}
			}
		}
	}
	return newComposite(canvas, filled)
}

// FindNonZeroRegion returns the pixels of img brighter than threshold. The
// boolean is false when there are none, i.e. the region is absent.
func FindNonZeroRegion(img PixelBuffer, threshold float64) (Region, bool) {
	r := regionFromFunc(img.Bounds(), func(x, y int) bool {
		return !isBlank(img.Intensity(x, y), threshold)
	})
	return r, !r.IsEmpty()
}
