// Package segmentation scores the agreement between two binary segmentations
// of the same field with the Dice coefficient and the Jaccard index.
package segmentation

import (
	"math"

	"github.com/pkg/errors"

	"tilescanfov/pkg/roi"
)

// Options controls what is compared.
type Options struct {
	// Foreground compares the segmented pixels. When false the unsegmented
	// pixels inside Window are compared instead.
	Foreground bool

	// Window limits the comparison, usually to the field boundary. It is
	// required when Foreground is false; in foreground mode a nil Window
	// compares the whole canvas.
	Window *roi.Region

	// Threshold is the intensity above which a pixel is segmented.
	Threshold float64
}

// Similarity holds the scores and the pixel counts they were computed from.
type Similarity struct {
	// Dice is 2|A∩B| / (|A|+|B|), NaN when both sets are empty.
	Dice float64

	// Jaccard is |A∩B| / |A∪B|, NaN when both sets are empty.
	Jaccard float64

	Intersection int
	Union        int
	// Total is |A|+|B|.
	Total int
}

// CompareSegmentations returns the Dice coefficient and Jaccard index of segA
// and segB. Any non-zero pixel counts as segmented.
func CompareSegmentations(segA, segB roi.PixelBuffer, compareForeground bool, window *roi.Region) (float64, float64, error) {
	s, err := Compare(segA, segB, Options{Foreground: compareForeground, Window: window})
	if err != nil {
		return 0, 0, err
	}
	return s.Dice, s.Jaccard, nil
}

// Compare scores segA against segB.
//
// A segmentation with no segmented pixels is absent rather than an error:
// two absent segmentations give NaN for both scores (there is nothing to
// agree on) and one absent segmentation gives zero for both.
func Compare(segA, segB roi.PixelBuffer, opts Options) (Similarity, error) {
	if !opts.Foreground && (opts.Window == nil || opts.Window.IsEmpty()) {
		return Similarity{}, errors.Wrap(roi.ErrUnsupportedConfiguration, "background comparison needs a window")
	}

	a, err := extract(segA, opts)
	if err != nil {
		return Similarity{}, err
	}
	b, err := extract(segB, opts)
	if err != nil {
		return Similarity{}, err
	}

	var s Similarity
	switch {
	case a.IsEmpty() && b.IsEmpty():
	case a.IsEmpty():
		s.Union = b.PointCount()
		s.Total = s.Union
	case b.IsEmpty():
		s.Union = a.PointCount()
		s.Total = s.Union
	default:
		inter, err := roi.Intersection(a, b)
		if err != nil {
			return Similarity{}, err
		}
		union, err := roi.Union(a, b)
		if err != nil {
			return Similarity{}, err
		}
		s.Intersection = inter.PointCount()
		s.Union = union.PointCount()
		s.Total = a.PointCount() + b.PointCount()
	}

	s.Jaccard = ratio(s.Intersection, s.Union)
	s.Dice = ratio(2*s.Intersection, s.Total)
	return s, nil
}

// extract returns the pixels of seg taking part in the comparison.
func extract(seg roi.PixelBuffer, opts Options) (roi.Region, error) {
	fg, ok := roi.FindNonZeroRegion(seg, opts.Threshold)
	if opts.Foreground {
		if !ok {
			return roi.Region{}, nil
		}
		if opts.Window != nil {
			return roi.Intersection(fg, *opts.Window)
		}
		return fg, nil
	}
	return roi.Intersection(roi.Invert(fg, seg.Bounds()), *opts.Window)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
