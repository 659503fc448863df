// Package tiling divides the imaged part of a tile scan into square fields of
// view that overlap into their neighbours, ready to be handed out to
// annotators.
package tiling

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"tilescanfov/pkg/roi"
)

// Params holds the tiling parameters.
type Params struct {
	// FieldSize is the side of a field of view in pixels, without overlap.
	FieldSize int

	// FieldOverlap is how far, in pixels, a field extends into each of its
	// neighbours.
	FieldOverlap int

	// Rotation is the angle in degrees the tile scan was rotated by before
	// tiling. It is normalized to (-90, 0].
	Rotation float64

	// Tolerance is the share of a candidate field that may fall outside the
	// remaining area and still be accepted.
	Tolerance float64

	// BlankThreshold is the intensity at or below which a pixel counts as
	// rotation padding.
	BlankThreshold float64

	// SkipCleanup keeps every piece of the relevant region instead of only
	// the dominant one.
	SkipCleanup bool

	// Logger receives per-iteration debug records and a summary. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultParams returns parameters with the default containment tolerance.
func DefaultParams(fieldSize, fieldOverlap int, rotation float64) *Params {
	return &Params{
		FieldSize:    fieldSize,
		FieldOverlap: fieldOverlap,
		Rotation:     rotation,
		Tolerance:    roi.DefaultContainmentTolerance,
	}
}

func (p *Params) validate() error {
	if p.FieldSize <= 0 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "field size %d must be positive", p.FieldSize)
	}
	if p.FieldOverlap < 0 {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "field overlap %d must not be negative", p.FieldOverlap)
	}
	if p.Tolerance < 0 || p.Tolerance >= 1 || math.IsNaN(p.Tolerance) {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "tolerance %v outside [0, 1)", p.Tolerance)
	}
	if math.IsNaN(p.Rotation) || math.IsInf(p.Rotation, 0) {
		return errors.Wrapf(roi.ErrUnsupportedConfiguration, "rotation %v", p.Rotation)
	}
	return nil
}

// State is the phase of a tiling run.
type State int

const (
	// Seeding rasterizes the relevant region into the remaining-area mask.
	Seeding State = iota
	// Iterating places fields until less than one field of area remains.
	Iterating
	// Done means the field list and boundary template are final.
	Done
)

func (s State) String() string {
	switch s {
	case Seeding:
		return "seeding"
	case Iterating:
		return "iterating"
	default:
		return "done"
	}
}

// FieldOfView is one accepted field. It never changes once emitted.
type FieldOfView struct {
	// Number counts accepted fields from 1 in acceptance order.
	Number int

	// Name is "Field-<Number>".
	Name string

	// Region is the square including the overlap into neighbouring fields.
	Region roi.Region

	// Boundary is the square without the overlap.
	Boundary roi.Region
}

// Shape returns the rotated square of the overlap-inclusive field.
func (f FieldOfView) Shape() roi.RotatedRect {
	s, _ := f.Region.Shape()
	return s
}

// Center returns the rotation centre of the field in pixels.
func (f FieldOfView) Center() r2.Vec {
	return f.Shape().Center()
}

// FieldName returns the name given to field n.
func FieldName(n int) string {
	return fmt.Sprintf("Field-%d", n)
}

// Result is the outcome of a tiling run.
type Result struct {
	// Fields holds the accepted fields in acceptance order. It is never nil.
	Fields []FieldOfView

	// BoundaryTemplate is the non-overlapping field boundary expressed in
	// the local coordinates of a cropped field image.
	BoundaryTemplate roi.Region

	// Rotation is the normalized rotation every field carries.
	Rotation float64

	FieldSize    int
	FieldOverlap int

	// Relevant is the region the fields were carved from.
	Relevant roi.Region

	// Iterations counts loop passes, Rejected the candidates that failed
	// the containment test.
	Iterations int
	Rejected   int
}

// FieldsInArea returns the fields whose rotation centre lies inside area,
// keeping their numbers and order.
func FieldsInArea(fields []FieldOfView, area roi.PixelSet) []FieldOfView {
	out := make([]FieldOfView, 0, len(fields))
	for _, f := range fields {
		if roi.CenterInArea(f.Region, area) {
			out = append(out, f)
		}
	}
	return out
}

// Partitioner tiles images with a fixed set of parameters. It keeps no state
// between calls, so one Partitioner may tile several images concurrently.
type Partitioner struct {
	params *Params
	logger *slog.Logger
}

// NewPartitioner creates a partitioner with the provided parameters.
func NewPartitioner(params *Params) *Partitioner {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Partitioner{params: params, logger: logger}
}

// Tile is shorthand for NewPartitioner(DefaultParams(...)).Tile(img).
func Tile(img roi.PixelBuffer, fieldSize, fieldOverlap int, rotationDegrees float64) (*Result, error) {
	return NewPartitioner(DefaultParams(fieldSize, fieldOverlap, rotationDegrees)).Tile(img)
}

// run is the state of one Tile call. The mask is owned by the run and
// discarded when it ends.
type run struct {
	state     State
	mask      *roi.RasterMask
	rotation  float64
	fullWidth float64
	fieldArea int
	result    *Result
}

// Tile carves fields of view out of the relevant region of img.
//
// Each pass anchors a candidate square of side FieldSize+2*FieldOverlap at the
// top-left anchor of the remaining area. The candidate is accepted when it is
// contained in the remaining area up to Tolerance. Accepted or not, the area
// around the anchor is then cut from the mask, so every pass shrinks it and
// the loop ends once the bounding box of what remains is no larger than one
// field.
//
// A relevant region smaller than one field yields no fields and no error.
func (p *Partitioner) Tile(img roi.PixelBuffer) (*Result, error) {
	if err := p.params.validate(); err != nil {
		return nil, err
	}

	fs, ov := p.params.FieldSize, p.params.FieldOverlap
	full := fs + 2*ov
	r := &run{
		state:     Seeding,
		rotation:  NormalizeRotation(p.params.Rotation),
		fullWidth: float64(full),
		fieldArea: full * full,
	}

	relevant, err := p.relevantRegion(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find relevant region")
	}
	r.mask = roi.Rasterize(relevant, img.Bounds())
	r.result = &Result{
		Fields:           make([]FieldOfView, 0),
		BoundaryTemplate: BoundaryTemplate(fs, ov, r.rotation),
		Rotation:         r.rotation,
		FieldSize:        fs,
		FieldOverlap:     ov,
		Relevant:         relevant,
	}
	p.logger.Debug("seeded remaining area",
		slog.String("state", r.state.String()),
		slog.Int("pixels", r.mask.PointCount()),
		slog.Int("boundingArea", r.mask.BoundingArea()),
		slog.Float64("rotation", r.rotation))

	r.state = Iterating
	for r.mask.BoundingArea() > r.fieldArea {
		anchor, ok := r.mask.TopLeftAnchor()
		if !ok {
			break
		}
		p.step(r, anchor)
	}
	r.state = Done

	p.logger.Info("tiling complete",
		slog.Int("fields", len(r.result.Fields)),
		slog.Int("rejected", r.result.Rejected),
		slog.Int("iterations", r.result.Iterations),
		slog.Float64("rotation", r.rotation))
	return r.result, nil
}

func (p *Partitioner) relevantRegion(img roi.PixelBuffer) (roi.Region, error) {
	if !p.params.SkipCleanup {
		return roi.FindRelevantRegion(img, p.params.BlankThreshold)
	}
	padding, err := roi.FindBlankPadding(img, p.params.BlankThreshold)
	if err != nil {
		return roi.Region{}, err
	}
	return roi.Invert(padding, img.Bounds()), nil
}

// step runs one pass of the loop at anchor.
func (p *Partitioner) step(r *run, anchor r2.Vec) {
	r.result.Iterations++
	fs, ov := float64(p.params.FieldSize), float64(p.params.FieldOverlap)

	candidate := roi.NewRotatedSquare(anchor, r.fullWidth, r.rotation)
	if roi.IsContained(candidate, r.mask, p.params.Tolerance) {
		n := len(r.result.Fields) + 1
		r.result.Fields = append(r.result.Fields, FieldOfView{
			Number:   n,
			Name:     FieldName(n),
			Region:   candidate,
			Boundary: fieldBoundary(anchor, fs, ov, r.rotation),
		})
		p.logger.Debug("field accepted",
			slog.Int("field", n),
			slog.Float64("x", anchor.X),
			slog.Float64("y", anchor.Y))
	} else {
		r.result.Rejected++
	}

	crop := roi.Grow(roi.NewRotatedSquare(anchor, fs+ov, r.rotation), ov)
	if r.mask.Cut(crop) == 0 {
		// a crop that misses every pixel would stall the loop
		r.mask.Clear(int(anchor.X), int(anchor.Y))
	}
}

// fieldBoundary returns the core of the field anchored at anchor: the square
// of side fieldSize inset by overlap from each edge.
func fieldBoundary(anchor r2.Vec, fieldSize, overlap, rotation float64) roi.Region {
	corner := r2.Rotate(r2.Add(anchor, r2.Vec{X: overlap, Y: overlap}), rotation*math.Pi/180, anchor)
	return roi.NewRotatedSquare(corner, fieldSize, rotation)
}

// BoundaryTemplate returns the square of side fieldSize centred in the
// bounding box of a rotated field, in that box's local coordinates. Cropping
// any field by its bounding box gives an image in which the template marks
// the non-overlapping part.
func BoundaryTemplate(fieldSize, fieldOverlap int, rotation float64) roi.Region {
	full := float64(fieldSize + 2*fieldOverlap)
	box := roi.NewRotatedSquare(r2.Vec{}, full, rotation).Bounds()
	center := r2.Vec{X: float64(box.Dx()) / 2, Y: float64(box.Dy()) / 2}
	return roi.NewCenteredSquare(center, float64(fieldSize), rotation)
}

// NormalizeRotation maps degrees into (-90, 0]. Rotations a quarter turn
// apart give the same grid, so 450 and 0 are equivalent.
func NormalizeRotation(degrees float64) float64 {
	r := math.Mod(degrees, 90)
	if r > 0 {
		r -= 90
	}
	if r == 0 {
		return 0
	}
	return r
}
