package roifile

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"tilescanfov/pkg/roi"
	"tilescanfov/pkg/tiling"
)

type flat struct{ w, h int }

func (f flat) Bounds() image.Rectangle    { return image.Rect(0, 0, f.w, f.h) }
func (f flat) Intensity(x, y int) float64 { return 1 }

func TestSaveOpenFields(t *testing.T) {
	res, err := tiling.Tile(flat{260, 260}, 100, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Fields, 4)

	path := filepath.Join(t.TempDir(), "ROIs", "fields.yaml")
	require.NoError(t, Save(path, FromFields(res.Fields)))

	set, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Field-1", "Field-2", "Field-3", "Field-4"}, set.Names())

	rect, ok := set.Lookup("Field-2")
	require.True(t, ok)
	assert.Equal(t, res.Fields[1].Shape(), rect)

	regions := set.Regions()
	require.Len(t, regions, 4)
	assert.Equal(t, res.Fields[3].Region.PointCount(), regions[3].PointCount())

	_, ok = set.Lookup("Field-9")
	assert.False(t, ok)
}

func TestRotatedRoundTrip(t *testing.T) {
	r := roi.RotatedRect{Anchor: r2.Vec{X: 12.25, Y: 40.5}, Width: 75, Height: 75, Angle: -33.3}
	path := filepath.Join(t.TempDir(), "boundary.yaml")

	set, ok := FromRegion("60um Field of View Boundary", roi.NewRegion(r))
	require.True(t, ok)
	require.NoError(t, Save(path, set))

	loaded, err := Open(path)
	require.NoError(t, err)
	got, ok := loaded.Lookup("60um Field of View Boundary")
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestFromRegionComposite(t *testing.T) {
	comp, err := roi.Union(roi.NewRectangle(0, 0, 2, 2), roi.NewRectangle(5, 5, 2, 2))
	require.NoError(t, err)
	set, ok := FromRegion("blob", comp)
	assert.False(t, ok)
	assert.NotNil(t, set.ROIs)
	assert.Empty(t, set.ROIs)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	set, err := Open(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotNil(t, set.ROIs)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rois: [unterminated"), 0644))
	_, err = Open(bad)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	set, err = Open(empty)
	require.NoError(t, err)
	assert.NotNil(t, set.ROIs)
	assert.Empty(t, set.ROIs)
}
