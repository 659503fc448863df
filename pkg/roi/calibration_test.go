package roi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArea(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		area float64
		unit string
	}{
		{"Pixels", PixelCalibration, 100, "pixel_Squared"},
		{"MicroSign", Calibration{PixelWidth: 0.5, PixelHeight: 0.25, Unit: "µm"}, 12.5, "um_Squared"},
		{"GreekMu", Calibration{PixelWidth: 2, PixelHeight: 2, Unit: "μm"}, 400, "um_Squared"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			area, unit, err := Area(NewRectangle(0, 0, 10, 10), tc.cal)
			require.NoError(t, err)
			assert.InDelta(t, tc.area, area, 1e-9)
			assert.Equal(t, tc.unit, unit)
		})
	}
}

func TestAreaInvalidCalibration(t *testing.T) {
	_, _, err := Area(NewRectangle(0, 0, 10, 10), Calibration{PixelWidth: 0, PixelHeight: 1})
	assert.ErrorIs(t, err, ErrDegenerateRegion)

	_, err = Calibration{PixelWidth: -1, PixelHeight: 1}.RawX(10)
	assert.ErrorIs(t, err, ErrDegenerateRegion)
}

func TestRawConversions(t *testing.T) {
	cal := Calibration{PixelWidth: 0.5, PixelHeight: 0.25, Unit: "µm"}

	px, err := cal.RawX(10)
	require.NoError(t, err)
	assert.Equal(t, 20.0, px)

	py, err := cal.RawY(10)
	require.NoError(t, err)
	assert.Equal(t, 40.0, py)

	assert.Equal(t, 5.0, cal.X(10))
	assert.Equal(t, 2.5, cal.Y(10))
	assert.Equal(t, "um", cal.LengthUnit())
}
