package roi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// diamond mimics a tile scan rotated by 45 degrees: image data in the middle,
// zero padding in the corners.
func diamond(size, radius int) func(x, y int) float64 {
	c := size / 2
	return func(x, y int) float64 {
		if abs(x-c)+abs(y-c) <= radius {
			return 0.8
		}
		return 0
	}
}

func countNonBlank(img PixelBuffer) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Intensity(x, y) > 0 {
				n++
			}
		}
	}
	return n
}

func TestFindRelevantRegion(t *testing.T) {
	t.Run("NoPadding", func(t *testing.T) {
		img := newGrayCanvas(30, 20, func(x, y int) float64 { return 0.5 })
		r, err := FindRelevantRegion(img, 0)
		require.NoError(t, err)
		assert.Equal(t, 600, r.PointCount())
		assert.Equal(t, image.Rect(0, 0, 30, 20), r.Bounds())
	})

	t.Run("InteriorHoleKept", func(t *testing.T) {
		img := newGrayCanvas(20, 20, func(x, y int) float64 {
			if x == 10 && y == 10 {
				return 0
			}
			return 1
		})
		r, err := FindRelevantRegion(img, 0)
		require.NoError(t, err)
		assert.Equal(t, 400, r.PointCount())
	})

	t.Run("RotatedScan", func(t *testing.T) {
		img := newGrayCanvas(41, 41, diamond(41, 15))
		r, err := FindRelevantRegion(img, 0)
		require.NoError(t, err)
		assert.Equal(t, countNonBlank(img), r.PointCount())
		assert.Equal(t, image.Rect(5, 5, 36, 36), r.Bounds())
	})

	t.Run("SpeckInPaddingDropped", func(t *testing.T) {
		base := diamond(41, 15)
		img := newGrayCanvas(41, 41, func(x, y int) float64 {
			if x == 1 && y == 1 {
				return 0.3
			}
			return base(x, y)
		})
		r, err := FindRelevantRegion(img, 0)
		require.NoError(t, err)
		assert.Equal(t, countNonBlank(img)-1, r.PointCount())
		assert.False(t, r.Contains(1, 1))
	})

	t.Run("AllBlank", func(t *testing.T) {
		img := newGrayCanvas(10, 10, func(x, y int) float64 { return 0 })
		r, err := FindRelevantRegion(img, 0)
		require.NoError(t, err)
		assert.True(t, r.IsEmpty())
	})

	t.Run("BlankThreshold", func(t *testing.T) {
		img := newGrayCanvas(41, 41, func(x, y int) float64 {
			if v := diamond(41, 15)(x, y); v > 0 {
				return v
			}
			return 0.01
		})
		r, err := FindRelevantRegion(img, 0.02)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(5, 5, 36, 36), r.Bounds())
	})

	t.Run("EmptyCanvas", func(t *testing.T) {
		_, err := FindRelevantRegion(newGrayCanvas(0, 0, nil), 0)
		assert.ErrorIs(t, err, ErrDegenerateRegion)
	})
}

func TestFindNonZeroRegion(t *testing.T) {
	img := newGrayCanvas(10, 10, func(x, y int) float64 {
		if x >= 2 && x < 5 && y == 3 {
			return 1
		}
		return 0
	})
	r, ok := FindNonZeroRegion(img, 0)
	require.True(t, ok)
	assert.Equal(t, 3, r.PointCount())
	assert.Equal(t, image.Rect(2, 3, 5, 4), r.Bounds())

	_, ok = FindNonZeroRegion(newGrayCanvas(5, 5, func(x, y int) float64 { return 0 }), 0)
	assert.False(t, ok)
}

func TestFindBlankPadding(t *testing.T) {
	img := newGrayCanvas(41, 41, diamond(41, 15))
	padding, err := FindBlankPadding(img, 0)
	require.NoError(t, err)
	assert.Equal(t, 41*41-countNonBlank(img), padding.PointCount())
	assert.True(t, padding.Contains(0, 40))

	full := newGrayCanvas(8, 8, func(x, y int) float64 { return 1 })
	padding, err = FindBlankPadding(full, 0)
	require.NoError(t, err)
	assert.True(t, padding.IsEmpty())
}
