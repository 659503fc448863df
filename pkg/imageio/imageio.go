// Package imageio loads, transforms and writes the tile scan images that the
// region code works on.
package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"tilescanfov/pkg/roi"
)

// GrayBuffer is a luminance copy of an image with its calibration. It
// satisfies roi.PixelBuffer with intensities in [0, 1].
type GrayBuffer struct {
	rect        image.Rectangle
	pix         []uint16
	Calibration roi.Calibration
}

// NewGrayBuffer converts img to 16-bit luminance.
func NewGrayBuffer(img image.Image, cal roi.Calibration) *GrayBuffer {
	b := img.Bounds()
	g := &GrayBuffer{rect: b, pix: make([]uint16, b.Dx()*b.Dy()), Calibration: cal}
	if src, ok := img.(*image.Gray16); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g.pix[g.offset(x, y)] = src.Gray16At(x, y).Y
			}
		}
		return g
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.pix[g.offset(x, y)] = color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
		}
	}
	return g
}

func (g *GrayBuffer) offset(x, y int) int {
	return (y-g.rect.Min.Y)*g.rect.Dx() + (x - g.rect.Min.X)
}

// Bounds returns the extent of the buffer.
func (g *GrayBuffer) Bounds() image.Rectangle { return g.rect }

// Intensity returns the luminance at (x, y) scaled to [0, 1]. Pixels outside
// the buffer are blank.
func (g *GrayBuffer) Intensity(x, y int) float64 {
	if !(image.Point{X: x, Y: y}).In(g.rect) {
		return 0
	}
	return float64(g.pix[g.offset(x, y)]) / 0xffff
}

// Image returns the buffer as a 16-bit grayscale image.
func (g *GrayBuffer) Image() *image.Gray16 {
	img := image.NewGray16(g.rect)
	for y := g.rect.Min.Y; y < g.rect.Max.Y; y++ {
		for x := g.rect.Min.X; x < g.rect.Max.X; x++ {
			img.SetGray16(x, y, color.Gray16{Y: g.pix[g.offset(x, y)]})
		}
	}
	return img
}

// Load decodes the image at path. TIFF, PNG, JPEG, GIF and BMP are
// supported.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	return img, nil
}

// LoadGray decodes the image at path into a GrayBuffer carrying cal.
func LoadGray(path string, cal roi.Calibration) (*GrayBuffer, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewGrayBuffer(img, cal), nil
}

// SaveTIFF writes img as a Deflate compressed TIFF, creating parent
// directories as needed.
func SaveTIFF(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}

// SavePNG writes img as PNG, creating parent directories as needed.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

// Rotate turns img clockwise by degrees. The canvas is enlarged to hold the
// whole rotated image and the uncovered corners are filled with black, the
// blank padding roi.FindRelevantRegion looks for. Gray16 and Gray images
// keep their pixel format; anything else comes back as 8-bit NRGBA.
func Rotate(img image.Image, degrees float64) image.Image {
	switch src := img.(type) {
	case *image.Gray16:
		return rotateGray16(src, degrees)
	case *image.Gray:
		return rotateGray(src, degrees)
	}
	// imaging turns counter-clockwise
	return imaging.Rotate(img, -degrees, color.Black)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropRegion returns the part of img inside the bounding box of region,
// re-based so its top-left pixel is (0, 0). Images that support SubImage
// keep their pixel format.
func CropRegion(img image.Image, region roi.Region) (image.Image, error) {
	box := region.Bounds().Intersect(img.Bounds())
	if box.Empty() {
		return nil, errors.Wrapf(roi.ErrDegenerateRegion, "region %v outside image %v", region.Bounds(), img.Bounds())
	}
	if s, ok := img.(subImager); ok {
		return rebase(s.SubImage(box)), nil
	}
	return imaging.Crop(img, box), nil
}

// rebase copies a sub-image of the common grayscale and colour formats into
// a fresh image starting at the origin.
func rebase(img image.Image) image.Image {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray16:
		dst := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+2*b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst
	case *image.Gray:
		dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst
	default:
		return imaging.Crop(img, b)
	}
}
