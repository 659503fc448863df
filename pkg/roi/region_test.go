package roi

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// grayCanvas is an in-memory PixelBuffer for tests.
type grayCanvas struct {
	w, h int
	px   []float64
}

func newGrayCanvas(w, h int, fill func(x, y int) float64) *grayCanvas {
	c := &grayCanvas{w: w, h: h, px: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.px[y*w+x] = fill(x, y)
		}
	}
	return c
}

func (c *grayCanvas) Bounds() image.Rectangle    { return image.Rect(0, 0, c.w, c.h) }
func (c *grayCanvas) Intensity(x, y int) float64 { return c.px[y*c.w+x] }

func TestRectanglePointCount(t *testing.T) {
	r := NewRectangle(2, 3, 10, 4)
	assert.Equal(t, KindRect, r.Kind())
	assert.Equal(t, 40, r.PointCount())
	assert.Equal(t, image.Rect(2, 3, 12, 7), r.Bounds())
	assert.True(t, r.Contains(2, 3))
	assert.True(t, r.Contains(11, 6))
	assert.False(t, r.Contains(12, 6))
	assert.False(t, r.Contains(1, 3))
}

func TestRotatedSquare(t *testing.T) {
	sq := NewRotatedSquare(r2.Vec{X: 50, Y: 50}, 20, -30)
	shape, ok := sq.Shape()
	require.True(t, ok)

	v := shape.Vertices()
	// the anchor stays put and is the left-most vertex for angles in (-90, 0]
	assert.Equal(t, r2.Vec{X: 50, Y: 50}, v[0])
	for _, p := range v[1:] {
		assert.Greater(t, p.X, v[0].X)
	}
	// the width edge climbs (y decreases) for negative angles
	assert.Less(t, v[1].Y, v[0].Y)

	assert.InDelta(t, 400, sq.PointCount(), 20)
	c := shape.Center()
	assert.True(t, sq.Contains(int(c.X), int(c.Y)))
}

func TestCenteredSquare(t *testing.T) {
	sq := NewCenteredSquare(r2.Vec{X: 10, Y: 10}, 8, 0)
	assert.Equal(t, image.Rect(6, 6, 14, 14), sq.Bounds())
	assert.Equal(t, 64, sq.PointCount())

	rotated := NewCenteredSquare(r2.Vec{X: 40, Y: 40}, 20, -45)
	shape, _ := rotated.Shape()
	c := shape.Center()
	assert.InDelta(t, 40, c.X, 1e-9)
	assert.InDelta(t, 40, c.Y, 1e-9)
}

func TestDegenerateRectangle(t *testing.T) {
	assert.True(t, NewRectangle(0, 0, 0, 10).IsEmpty())
	assert.True(t, NewRegion(RotatedRect{Width: 5, Height: math.NaN()}).IsEmpty())
	assert.Equal(t, 0, Region{}.PointCount())
	assert.Equal(t, KindEmpty, Region{}.Kind())
}

func TestTopLeftAnchor(t *testing.T) {
	t.Run("Rect", func(t *testing.T) {
		a, err := TopLeftAnchor(NewRectangle(4, 7, 3, 3))
		require.NoError(t, err)
		assert.Equal(t, r2.Vec{X: 4, Y: 7}, a)
	})

	t.Run("RotatedRect", func(t *testing.T) {
		anchor := r2.Vec{X: 20, Y: 30}
		a, err := TopLeftAnchor(NewRotatedSquare(anchor, 10, -60))
		require.NoError(t, err)
		assert.Equal(t, anchor, a)
	})

	t.Run("CompositeTieBreak", func(t *testing.T) {
		comp, err := Union(NewRectangle(5, 3, 2, 2), NewRectangle(5, 1, 1, 1), NewRectangle(9, 0, 1, 1))
		require.NoError(t, err)
		a, err := TopLeftAnchor(comp)
		require.NoError(t, err)
		assert.Equal(t, r2.Vec{X: 5, Y: 1}, a)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := TopLeftAnchor(Region{})
		assert.ErrorIs(t, err, ErrDegenerateRegion)
	})
}

func TestComponentsAndCleanup(t *testing.T) {
	comp, err := Union(NewRectangle(20, 0, 3, 3), NewRectangle(0, 0, 5, 5), NewRectangle(10, 10, 1, 1))
	require.NoError(t, err)

	pieces := Components(comp)
	require.Len(t, pieces, 3)
	assert.Equal(t, 25, pieces[0].PointCount())
	assert.Equal(t, 1, pieces[1].PointCount())
	assert.Equal(t, 9, pieces[2].PointCount())

	kept := Cleanup(comp)
	assert.Equal(t, image.Rect(0, 0, 5, 5), kept.Bounds())

	// non-composites pass through untouched
	rect := NewRectangle(1, 1, 2, 2)
	assert.Equal(t, rect, Cleanup(rect))
	assert.Equal(t, Region{}, Cleanup(Region{}))
	assert.Len(t, Components(rect), 1)
	assert.Empty(t, Components(Region{}))
}

func TestCleanupTieKeepsFirst(t *testing.T) {
	comp, err := Union(NewRectangle(10, 0, 2, 2), NewRectangle(0, 5, 2, 2))
	require.NoError(t, err)
	kept := Cleanup(comp)
	assert.Equal(t, image.Rect(0, 5, 2, 7), kept.Bounds())
}

func TestComponentsSinglePiece(t *testing.T) {
	// an L shape spanning a large box is one piece
	comp, err := Union(NewRectangle(0, 0, 400, 10), NewRectangle(0, 0, 10, 300))
	require.NoError(t, err)
	require.Equal(t, KindComposite, comp.Kind())

	pieces := Components(comp)
	require.Len(t, pieces, 1)
	assert.Equal(t, comp.PointCount(), pieces[0].PointCount())
	assert.Equal(t, image.Rect(0, 0, 400, 300), pieces[0].Bounds())
	assert.Equal(t, comp.Bounds(), Cleanup(comp).Bounds())
}
