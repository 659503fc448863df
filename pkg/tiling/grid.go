package tiling

import (
	"fmt"
	"image"

	"github.com/pkg/errors"

	"tilescanfov/internal/models"
	"tilescanfov/pkg/roi"
)

// Grid lays an axis-aligned grid of fields over canvas without looking at
// the image content. Every field is twice fieldSize wide and extends half
// way into each neighbour; the grid is centred on the canvas. Fields are
// named "Row<r>-Col<c>".
func Grid(canvas image.Rectangle, fieldSize int) (*Result, error) {
	if fieldSize <= 0 {
		return nil, errors.Wrapf(roi.ErrUnsupportedConfiguration, "field size %d must be positive", fieldSize)
	}
	w, h := canvas.Dx(), canvas.Dy()
	rows, cols := h/fieldSize-1, w/fieldSize-1

	firstRow := canvas.Min.Y + h/2 - (rows+1)*fieldSize/2 + 1
	firstCol := canvas.Min.X + w/2 - (cols+1)*fieldSize/2 + 1

	res := &Result{
		Fields:    make([]FieldOfView, 0),
		FieldSize: fieldSize,
		// the boundary leaves a one pixel margin inside the central half
		BoundaryTemplate: roi.NewRectangle(fieldSize/2+1, fieldSize/2+1, fieldSize-2, fieldSize-2),
		Relevant:         roi.NewRectangle(canvas.Min.X, canvas.Min.Y, w, h),
	}
	side := 2*fieldSize - 1
	for row, y := 1, firstRow; y < canvas.Max.Y-2*fieldSize; row, y = row+1, y+fieldSize {
		for col, x := 1, firstCol; x < canvas.Max.X-2*fieldSize; col, x = col+1, x+fieldSize {
			n := len(res.Fields) + 1
			res.Fields = append(res.Fields, FieldOfView{
				Number:   n,
				Name:     fmt.Sprintf("Row%d-Col%d", row, col),
				Region:   roi.NewRectangle(x, y, side, side),
				Boundary: roi.NewRectangle(x+fieldSize/2+1, y+fieldSize/2+1, fieldSize-2, fieldSize-2),
			})
		}
	}
	return res, nil
}

// Locations returns the rotation centre of every field in the physical
// units of cal.
func Locations(fields []FieldOfView, cal roi.Calibration) []models.FieldLocation {
	locs := make([]models.FieldLocation, len(fields))
	for i, f := range fields {
		c := f.Center()
		locs[i] = models.FieldLocation{Number: f.Number, X: cal.X(c.X), Y: cal.Y(c.Y)}
	}
	return locs
}
