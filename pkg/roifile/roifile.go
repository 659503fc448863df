// Package roifile stores named rotated rectangles, such as the fields of a
// tiling run, in YAML files.
package roifile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/tiling"
)

// ErrNotFound is returned when an ROI file does not exist.
var ErrNotFound = errors.New("roifile: not found")

// ROI is one named rotated rectangle in pixel coordinates.
type ROI struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Angle  float64 `yaml:"angle"`
}

// New returns the ROI for a rotated rectangle.
func New(name string, r roi.RotatedRect) ROI {
	return ROI{Name: name, X: r.Anchor.X, Y: r.Anchor.Y, Width: r.Width, Height: r.Height, Angle: r.Angle}
}

// Rect returns the rotated rectangle described by the ROI.
func (r ROI) Rect() roi.RotatedRect {
	return roi.RotatedRect{
		Anchor: r2.Vec{X: r.X, Y: r.Y},
		Width:  r.Width,
		Height: r.Height,
		Angle:  r.Angle,
	}
}

// Region returns the ROI as a region.
func (r ROI) Region() roi.Region {
	return roi.NewRegion(r.Rect())
}

// Set is an ordered collection of ROIs.
type Set struct {
	ROIs []ROI `yaml:"rois"`
}

// FromFields returns a set holding the overlap-inclusive square of each
// field, named after the field.
func FromFields(fields []tiling.FieldOfView) Set {
	s := Set{ROIs: make([]ROI, 0, len(fields))}
	for _, f := range fields {
		s.ROIs = append(s.ROIs, New(f.Name, f.Shape()))
	}
	return s
}

// FromRegion returns a single-ROI set for region. Only rotated rectangles
// can be stored; ok is false for composite or empty regions.
func FromRegion(name string, region roi.Region) (Set, bool) {
	shape, ok := region.Shape()
	if !ok {
		return Set{ROIs: []ROI{}}, false
	}
	return Set{ROIs: []ROI{New(name, shape)}}, true
}

// Lookup returns the rectangle stored under name.
func (s Set) Lookup(name string) (roi.RotatedRect, bool) {
	for _, r := range s.ROIs {
		if r.Name == name {
			return r.Rect(), true
		}
	}
	return roi.RotatedRect{}, false
}

// Names returns the ROI names in order.
func (s Set) Names() []string {
	names := make([]string, len(s.ROIs))
	for i, r := range s.ROIs {
		names[i] = r.Name
	}
	return names
}

// Regions returns every ROI as a region, in order.
func (s Set) Regions() []roi.Region {
	regions := make([]roi.Region, len(s.ROIs))
	for i, r := range s.ROIs {
		regions[i] = r.Region()
	}
	return regions
}

// Save writes set to path, creating parent directories as needed.
func Save(path string, set Set) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating ROI directory")
	}
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "error marshaling ROIs")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "error writing ROI file")
	}
	return nil
}

// Open reads the set stored at path.
func Open(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Set{ROIs: []ROI{}}, errors.Wrap(ErrNotFound, path)
	}
	if err != nil {
		return Set{ROIs: []ROI{}}, errors.Wrap(err, "error reading ROI file")
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{ROIs: []ROI{}}, errors.Wrap(err, "error parsing ROI file")
	}
	if set.ROIs == nil {
		set.ROIs = []ROI{}
	}
	return set, nil
}
