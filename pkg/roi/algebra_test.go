package roi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestEmptyInputs(t *testing.T) {
	_, err := Union()
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = Intersection()
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSingleInputUnchanged(t *testing.T) {
	r := NewRotatedSquare(r2.Vec{X: 3, Y: 4}, 5, -10)
	u, err := Union(r)
	require.NoError(t, err)
	assert.Equal(t, r, u)
	i, err := Intersection(r)
	require.NoError(t, err)
	assert.Equal(t, r, i)
}

func TestUnionOfIdenticalRegionsKeepsArea(t *testing.T) {
	cal := Calibration{PixelWidth: 0.5, PixelHeight: 0.5, Unit: "µm"}
	regions := []Region{
		NewRectangle(0, 0, 10, 10),
		NewRotatedSquare(r2.Vec{X: 20, Y: 20}, 15, -37),
		Invert(NewRectangle(2, 2, 3, 3), image.Rect(0, 0, 8, 8)),
	}
	for _, r := range regions {
		u, err := Union(r, r)
		require.NoError(t, err)

		want, _, err := Area(r, cal)
		require.NoError(t, err)
		got, _, err := Area(u, cal)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestUnionIntersectionBounds(t *testing.T) {
	pairs := []struct {
		name string
		a, b Region
	}{
		{"Overlapping", NewRectangle(0, 0, 10, 10), NewRectangle(5, 5, 10, 10)},
		{"Disjoint", NewRectangle(0, 0, 4, 4), NewRectangle(10, 10, 3, 3)},
		{"Nested", NewRectangle(0, 0, 20, 20), NewRectangle(5, 5, 4, 4)},
		{"Rotated", NewRotatedSquare(r2.Vec{X: 10, Y: 20}, 25, -20), NewRectangle(12, 5, 20, 20)},
		{"WithEmpty", NewRectangle(0, 0, 4, 4), Region{}},
	}
	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			inter, err := Intersection(tc.a, tc.b)
			require.NoError(t, err)
			union, err := Union(tc.a, tc.b)
			require.NoError(t, err)

			na, nb := tc.a.PointCount(), tc.b.PointCount()
			ni, nu := inter.PointCount(), union.PointCount()
			assert.LessOrEqual(t, ni, min(na, nb))
			assert.LessOrEqual(t, min(na, nb), nu)
			assert.LessOrEqual(t, nu, na+nb)
			// inclusion-exclusion holds exactly on the pixel grid
			assert.Equal(t, na+nb, ni+nu)
		})
	}
}

func TestOverlapCounts(t *testing.T) {
	a := NewRectangle(0, 0, 10, 10)
	b := NewRectangle(5, 5, 10, 10)
	inter, _ := Intersection(a, b)
	union, _ := Union(a, b)
	assert.Equal(t, 25, inter.PointCount())
	assert.Equal(t, 175, union.PointCount())
	assert.Equal(t, 150, Xor(a, b).PointCount())
}

func TestSubtract(t *testing.T) {
	total := NewRectangle(0, 0, 20, 10)

	t.Run("NoGrowth", func(t *testing.T) {
		left, err := Subtract(total, NewRectangle(0, 0, 10, 10), 0)
		require.NoError(t, err)
		assert.Equal(t, 100, left.PointCount())
		assert.Equal(t, image.Rect(10, 0, 20, 10), left.Bounds())
	})

	t.Run("Growth", func(t *testing.T) {
		left, err := Subtract(total, NewRectangle(0, 0, 10, 10), 1)
		require.NoError(t, err)
		assert.Equal(t, 90, left.PointCount())
		// growth never reaches outside total's footprint
		assert.Equal(t, image.Rect(11, 0, 20, 10), left.Bounds())
	})

	t.Run("SplitKeepsDominantPiece", func(t *testing.T) {
		wide := NewRectangle(0, 0, 30, 10)
		left, err := Subtract(wide, NewRectangle(10, 0, 5, 10), 0)
		require.NoError(t, err)
		assert.Equal(t, 150, left.PointCount())
		assert.Equal(t, image.Rect(15, 0, 30, 10), left.Bounds())
	})

	t.Run("Disjoint", func(t *testing.T) {
		left, err := Subtract(total, NewRectangle(50, 50, 5, 5), 2)
		require.NoError(t, err)
		assert.Equal(t, total.PointCount(), left.PointCount())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := Subtract(Region{}, total, 0)
		assert.ErrorIs(t, err, ErrDegenerateRegion)
		_, err = Subtract(total, total, -1)
		assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	})
}

func TestGrow(t *testing.T) {
	dot, err := Union(NewRectangle(5, 5, 1, 1), NewRectangle(5, 5, 1, 1))
	require.NoError(t, err)
	require.Equal(t, KindComposite, dot.Kind())

	assert.Equal(t, 9, Grow(dot, 1).PointCount())
	assert.Equal(t, 9, Grow(dot, 0.5).PointCount())
	assert.Equal(t, 25, Grow(dot, 2).PointCount())
	assert.Equal(t, dot, Grow(dot, 0))

	rect := Grow(NewRectangle(2, 2, 4, 4), 1)
	assert.Equal(t, image.Rect(1, 1, 7, 7), rect.Bounds())
	assert.Equal(t, 36, rect.PointCount())
}

func TestInvert(t *testing.T) {
	canvas := image.Rect(0, 0, 10, 10)
	inv := Invert(NewRectangle(2, 2, 6, 6), canvas)
	assert.Equal(t, 64, inv.PointCount())
	assert.False(t, inv.Contains(4, 4))
	assert.True(t, inv.Contains(0, 0))

	assert.Equal(t, 100, Invert(Region{}, canvas).PointCount())
	assert.True(t, Invert(NewRectangle(-5, -5, 30, 30), canvas).IsEmpty())
}
