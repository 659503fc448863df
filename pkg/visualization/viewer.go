package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/spatial/r2"

	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/tiling"
)

var (
	// FieldColor outlines the overlap-inclusive square of a field
	FieldColor = color.NRGBA{R: 255, G: 255, A: 255}

	// BoundaryColor outlines the non-overlapping core of a field
	BoundaryColor = color.NRGBA{G: 255, B: 255, A: 255}

	// RelevantColor outlines the imaged area
	RelevantColor = color.NRGBA{R: 255, A: 255}
)

// Viewer draws region outlines over a copy of a tile scan so a tiling run
// can be checked by eye.
type Viewer struct {
	// canvas is the base image the outlines are drawn on
	canvas *image.NRGBA
}

// NewViewer creates a viewer drawing over a copy of base
func NewViewer(base image.Image) *Viewer {
	return &Viewer{canvas: imaging.Clone(base)}
}

// Image returns the annotated image
func (v *Viewer) Image() image.Image {
	return v.canvas
}

// DrawRegion outlines region in c. Rotated rectangles are drawn edge by edge;
// composites have every pixel on their border coloured.
func (v *Viewer) DrawRegion(region roi.Region, c color.Color) {
	if region.IsEmpty() {
		return
	}
	if shape, ok := region.Shape(); ok {
		vs := shape.Vertices()
		for i := range vs {
			v.line(vs[i], vs[(i+1)%len(vs)], c)
		}
		return
	}

	b := region.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !region.Contains(x, y) {
				continue
			}
			if !region.Contains(x-1, y) || !region.Contains(x+1, y) ||
				!region.Contains(x, y-1) || !region.Contains(x, y+1) {
				v.canvas.Set(x, y, c)
			}
		}
	}
}

// DrawFields outlines every field and its non-overlapping boundary
func (v *Viewer) DrawFields(fields []tiling.FieldOfView) {
	for _, f := range fields {
		v.DrawRegion(f.Region, FieldColor)
		v.DrawRegion(f.Boundary, BoundaryColor)
	}
}

// line draws the segment from a to b one pixel at a time
func (v *Viewer) line(a, b r2.Vec, c color.Color) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		v.canvas.Set(int(math.Floor(a.X)), int(math.Floor(a.Y)), c)
		return
	}
	for i := 0; i <= steps; i++ {
		p := r2.Add(a, r2.Scale(float64(i)/float64(steps), r2.Sub(b, a)))
		v.canvas.Set(int(math.Floor(p.X)), int(math.Floor(p.Y)), c)
	}
}

// SaveOverlay saves the annotated image; the format follows the extension
func (v *Viewer) SaveOverlay(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return imaging.Save(v.canvas, filename)
}

// SaveFieldSequence crops every field out of the annotated image and saves
// them as field_<n>.png in outputDir
func (v *Viewer) SaveFieldSequence(fields []tiling.FieldOfView, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for _, f := range fields {
		box := f.Region.Bounds().Intersect(v.canvas.Bounds())
		if box.Empty() {
			return fmt.Errorf("field %s lies outside the image", f.Name)
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("field_%03d.png", f.Number))
		if err := imaging.Save(imaging.Crop(v.canvas, box), filename); err != nil {
			return err
		}
	}

	return nil
}

// MaskImage renders a mask as white on black over the mask's canvas
func MaskImage(mask *roi.RasterMask) *image.Gray {
	img := image.NewGray(mask.Canvas())
	b := mask.Canvas()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Contains(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}
