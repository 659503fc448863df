package imageio

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// rotatedCanvas returns the size of the canvas holding a w x h image turned
// by degrees.
func rotatedCanvas(w, h int, degrees float64) (int, int) {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	// trims float noise at multiples of 90 degrees
	const eps = 1e-6
	return int(math.Ceil(fw*cos + fh*sin - eps)), int(math.Ceil(fw*sin + fh*cos - eps))
}

// resample fills a rotated canvas by mapping every destination pixel centre
// back into the source and interpolating bilinearly. Points falling outside
// the source are left at zero.
func resample(src image.Rectangle, at func(x, y int) float64, degrees float64, set func(x, y int, v float64)) {
	w, h := src.Dx(), src.Dy()
	nw, nh := rotatedCanvas(w, h, degrees)

	inverse := r2.NewRotation(-degrees*math.Pi/180, r2.Vec{})
	dstCenter := r2.Vec{X: float64(nw) / 2, Y: float64(nh) / 2}
	srcCenter := r2.Vec{X: float64(w) / 2, Y: float64(h) / 2}

	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			p := r2.Sub(r2.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5}, dstCenter)
			s := r2.Add(inverse.Rotate(p), srcCenter)
			// pixel centre coordinates
			sx, sy := s.X-0.5, s.Y-0.5
			if sx < -0.5 || sy < -0.5 || sx > float64(w)-0.5 || sy > float64(h)-0.5 {
				continue
			}
			set(x, y, bilinear(at, w, h, sx, sy))
		}
	}
}

func bilinear(at func(x, y int) float64, w, h int, sx, sy float64) float64 {
	x0, y0 := math.Floor(sx), math.Floor(sy)
	fx, fy := sx-x0, sy-y0
	ix, iy := int(x0), int(y0)
	clamp := func(v, hi int) int { return max(0, min(v, hi-1)) }

	x1, y1 := clamp(ix+1, w), clamp(iy+1, h)
	ix, iy = clamp(ix, w), clamp(iy, h)

	top := at(ix, iy)*(1-fx) + at(x1, iy)*fx
	bottom := at(ix, y1)*(1-fx) + at(x1, y1)*fx
	return top*(1-fy) + bottom*fy
}

func rotateGray16(src *image.Gray16, degrees float64) *image.Gray16 {
	b := src.Bounds()
	nw, nh := rotatedCanvas(b.Dx(), b.Dy(), degrees)
	out := image.NewGray16(image.Rect(0, 0, nw, nh))
	at := func(x, y int) float64 { return float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y) }
	resample(b, at, degrees, func(x, y int, v float64) {
		i := out.PixOffset(x, y)
		u := uint16(math.Round(v))
		out.Pix[i], out.Pix[i+1] = uint8(u>>8), uint8(u)
	})
	return out
}

func rotateGray(src *image.Gray, degrees float64) *image.Gray {
	b := src.Bounds()
	nw, nh := rotatedCanvas(b.Dx(), b.Dy(), degrees)
	out := image.NewGray(image.Rect(0, 0, nw, nh))
	at := func(x, y int) float64 { return float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y) }
	resample(b, at, degrees, func(x, y int, v float64) {
		out.Pix[out.PixOffset(x, y)] = uint8(math.Round(v))
	})
	return out
}
