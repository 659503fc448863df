package roi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestIsContained(t *testing.T) {
	candidate := NewRectangle(0, 0, 10, 10)
	canvas := image.Rect(0, 0, 20, 20)

	missing := func(n int) *RasterMask {
		m := Rasterize(candidate, canvas)
		for i := 0; i < n; i++ {
			m.Clear(i%10, i/10)
		}
		return m
	}

	tests := []struct {
		name      string
		missing   int
		tolerance float64
		expected  bool
	}{
		{"FullyInside", 0, 0, true},
		{"OnePercentAtDefault", 1, DefaultContainmentTolerance, true},
		{"TwoPercentAtDefault", 2, DefaultContainmentTolerance, false},
		{"JustBelowTolerance", 1, 0.0101, true},
		{"JustAboveTolerance", 1, 0.0099, false},
		{"StrictTolerance", 1, 0, false},
		{"AllMissing", 100, 0.5, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsContained(candidate, missing(tc.missing), tc.tolerance))
		})
	}
}

func TestIsContainedRegionContainer(t *testing.T) {
	assert.True(t, IsContained(NewRectangle(2, 2, 5, 5), NewRectangle(0, 0, 10, 10), 0))
	assert.False(t, IsContained(NewRectangle(8, 8, 5, 5), NewRectangle(0, 0, 10, 10), DefaultContainmentTolerance))

	// an empty candidate is never contained
	assert.False(t, IsContained(Region{}, NewRectangle(0, 0, 10, 10), 1))
}

func TestCenterInArea(t *testing.T) {
	area := NewRectangle(0, 0, 10, 10)
	comp, err := Union(NewRectangle(5, 5, 1, 1), NewRectangle(7, 7, 1, 1))
	require.NoError(t, err)

	tests := []struct {
		name     string
		region   Region
		expected bool
	}{
		{"Inside", NewRectangle(0, 0, 4, 4), true},
		{"Far", NewRectangle(30, 30, 4, 4), false},
		{"CentreOnLastPixel", NewRectangle(7, 7, 4, 4), true},
		{"CentreJustOutside", NewRectangle(8, 8, 4, 4), false},
		// a centre at 9.6 lies in pixel 9, not the nearest pixel 10
		{"FractionalCentre", NewRegion(RotatedRect{Anchor: r2.Vec{X: 7.6, Y: 7.6}, Width: 4, Height: 4}), true},
		{"Composite", comp, true},
		{"Empty", Region{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CenterInArea(tc.region, area))
		})
	}
}
