package assignment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilescanfov/internal/models"
	"tilescanfov/pkg/roi"
)

func fieldNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Field-%d", i+1)
	}
	return names
}

func TestAssign(t *testing.T) {
	fields := fieldNames(10)
	got, err := Assign(fields, []string{"AR", "JK", "MS"}, 42)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "AR", got[0].Researcher)
	assert.Len(t, got[0].Fields, 4)
	assert.Len(t, got[1].Fields, 3)
	assert.Len(t, got[2].Fields, 3)

	var all []string
	for _, a := range got {
		all = append(all, a.Fields...)
	}
	sort.Strings(all)
	expected := append([]string(nil), fields...)
	sort.Strings(expected)
	assert.Equal(t, expected, all)

	// the input is not reordered
	assert.Equal(t, fieldNames(10), fields)

	again, err := Assign(fields, []string{"AR", "JK", "MS"}, 42)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestAssignEdgeCases(t *testing.T) {
	_, err := Assign(fieldNames(3), nil, 1)
	assert.ErrorIs(t, err, roi.ErrUnsupportedConfiguration)

	got, err := Assign(fieldNames(1), []string{"A", "B"}, 1)
	require.NoError(t, err)
	assert.Len(t, got[0].Fields, 1)
	assert.NotNil(t, got[1].Fields)
	assert.Empty(t, got[1].Fields)
}

func TestFieldNumber(t *testing.T) {
	tests := []struct {
		name     string
		expected int
		ok       bool
	}{
		{"Field-12_Scan.tif", 12, true},
		{"3Field-7_DAPI.tif", 7, true},
		{"Field-12", 0, false},
		{"Row1-Col2_Scan.tif", 0, false},
	}

	for _, tc := range tests {
		n, ok := FieldNumber(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.expected, n, tc.name)
	}
}

func TestLink(t *testing.T) {
	root := t.TempDir()
	dapi := filepath.Join(root, "DAPI")
	require.NoError(t, os.MkdirAll(dapi, 0755))
	for _, name := range fieldNames(4) {
		require.NoError(t, os.WriteFile(filepath.Join(dapi, name+"_Scan.tif"), []byte("x"), 0644))
	}

	assignments, err := Assign([]string{"Field-1", "Field-2", "Field-3", "Field-4"}, []string{"AR", "JK"}, 7)
	require.NoError(t, err)

	out := filepath.Join(root, "Quantifications")
	require.NoError(t, Link(out, assignments, []MarkerDir{{Marker: "DAPI", Dir: dapi}}))

	for _, a := range assignments {
		dir := filepath.Join(out, "Researcher-"+a.Researcher, "DAPI_Unlabeled_Fields")
		for i, field := range a.Fields {
			link := filepath.Join(dir, fmt.Sprintf("%d%s_Scan.tif", i+1, field))
			target, err := os.Readlink(link)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dapi, field+"_Scan.tif"), target)
		}
	}

	err = Link(out, nil, []MarkerDir{{Marker: "GFP", Dir: filepath.Join(root, "GFP")}})
	assert.Error(t, err)

	missing := []models.Assignment{{Researcher: "AR", Fields: []string{"Field-9"}}}
	err = Link(filepath.Join(root, "Other"), missing, []MarkerDir{{Marker: "DAPI", Dir: dapi}})
	assert.Error(t, err)
}

func TestLinkRerun(t *testing.T) {
	root := t.TempDir()
	dapi := filepath.Join(root, "DAPI")
	require.NoError(t, os.MkdirAll(dapi, 0755))
	for _, name := range fieldNames(12) {
		require.NoError(t, os.WriteFile(filepath.Join(dapi, name+"_Scan.tif"), []byte("x"), 0644))
	}
	markers := []MarkerDir{{Marker: "DAPI", Dir: dapi}}

	first := []models.Assignment{{Researcher: "AR", Fields: []string{"Field-1", "Field-12"}}}
	require.NoError(t, Link(root, first, markers))

	// a second run replaces the links instead of failing on them
	second := []models.Assignment{{Researcher: "AR", Fields: []string{"Field-2", "Field-1"}}}
	require.NoError(t, Link(root, second, markers))

	dir := filepath.Join(root, "Researcher-AR", "DAPI_Unlabeled_Fields")
	target, err := os.Readlink(filepath.Join(dir, "1Field-2_Scan.tif"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dapi, "Field-2_Scan.tif"), target)

	// Field-1 is matched by number, never by the Field-12 prefix
	target, err = os.Readlink(filepath.Join(dir, "2Field-1_Scan.tif"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dapi, "Field-1_Scan.tif"), target)

	// a real file in the way is not overwritten
	require.NoError(t, os.Remove(filepath.Join(dir, "1Field-2_Scan.tif")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1Field-2_Scan.tif"), []byte("labels"), 0644))
	assert.Error(t, Link(root, second, markers))
}
