package roi

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Calibration converts between pixels and physical units. It is supplied by
// whatever decoded the source image and is never modified by this package.
type Calibration struct {
	// PixelWidth is the physical width of one pixel.
	PixelWidth float64 `yaml:"pixelWidth"`

	// PixelHeight is the physical height of one pixel.
	PixelHeight float64 `yaml:"pixelHeight"`

	// PixelDepth is the physical distance between z slices.
	PixelDepth float64 `yaml:"pixelDepth"`

	// Unit is the physical length unit, e.g. "µm".
	Unit string `yaml:"unit"`
}

// PixelCalibration is the identity calibration used when an image carries
// no physical scale.
var PixelCalibration = Calibration{PixelWidth: 1, PixelHeight: 1, PixelDepth: 1, Unit: "pixel"}

// NormalizeUnit replaces the micro sign (and the Greek mu often typed in its
// place) with "u" so the unit is safe in file names and CSV headers.
func NormalizeUnit(unit string) string {
	return strings.NewReplacer("µ", "u", "μ", "u").Replace(unit)
}

// LengthUnit returns the normalized length unit.
func (c Calibration) LengthUnit() string {
	return NormalizeUnit(c.Unit)
}

// AreaUnit returns the normalized squared unit, e.g. "um_Squared".
func (c Calibration) AreaUnit() string {
	return NormalizeUnit(c.Unit + "_Squared")
}

func (c Calibration) validate() error {
	if !(c.PixelWidth > 0) || !(c.PixelHeight > 0) || math.IsInf(c.PixelWidth, 0) || math.IsInf(c.PixelHeight, 0) {
		return errors.Wrapf(ErrDegenerateRegion, "calibration scale %vx%v", c.PixelWidth, c.PixelHeight)
	}
	return nil
}

// X converts a horizontal pixel distance to physical units.
func (c Calibration) X(pixels float64) float64 { return pixels * c.PixelWidth }

// Y converts a vertical pixel distance to physical units.
func (c Calibration) Y(pixels float64) float64 { return pixels * c.PixelHeight }

// RawX converts a horizontal physical distance to pixels.
func (c Calibration) RawX(physical float64) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	return physical / c.PixelWidth, nil
}

// RawY converts a vertical physical distance to pixels.
func (c Calibration) RawY(physical float64) (float64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}
	return physical / c.PixelHeight, nil
}

// Area returns the physical area of region and its unit. The area is the
// number of covered pixels times the area of one pixel; the bounding box
// would overstate rotated and composite regions.
func Area(region Region, cal Calibration) (float64, string, error) {
	if err := cal.validate(); err != nil {
		return 0, "", err
	}
	return float64(region.PointCount()) * cal.PixelWidth * cal.PixelHeight, cal.AreaUnit(), nil
}
