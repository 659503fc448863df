package imageio

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tilescanfov/pkg/roi"
)

// DefaultSaturation is the share of pixels, in percent, clipped by Normalize.
const DefaultSaturation = 0.35

// Normalize stretches the contrast of img so that the darkest and brightest
// saturated/2 percent of pixels are clipped and the rest spans the full
// 16-bit range. A flat image is returned as all zeros.
func Normalize(img image.Image, saturated float64) *image.Gray16 {
	g := NewGrayBuffer(img, roi.PixelCalibration)
	b := g.rect
	out := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	if len(g.pix) == 0 {
		return out
	}

	values := make([]float64, len(g.pix))
	for i, v := range g.pix {
		values[i] = float64(v)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	lo, hi := floats.Min(sorted), floats.Max(sorted)
	if tail := saturated / 200; tail > 0 {
		lo = stat.Quantile(tail, stat.Empirical, sorted, nil)
		hi = stat.Quantile(1-tail, stat.Empirical, sorted, nil)
	}

	if hi <= lo {
		return out
	}
	scale := 0xffff / (hi - lo)
	for i, v := range values {
		s := math.Round((v - lo) * scale)
		s = math.Max(0, math.Min(0xffff, s))
		out.Pix[2*i] = uint8(uint16(s) >> 8)
		out.Pix[2*i+1] = uint8(uint16(s))
	}
	return out
}
