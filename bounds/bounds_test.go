package bounds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tileoperator/grid"
	"github.com/pdok/tileoperator/tiles"
)

func TestFromFile_GeoJSON(t *testing.T) {
	tests := []struct {
		file string
		want tiles.BoundingBox
	}{
		{file: "sapporo.geojson", want: tiles.BoundingBox{141.347, 43.066, 141.354, 43.070}},
		{file: "feature.geojson", want: tiles.BoundingBox{5.12, 52.09, 5.12, 52.09}},
		{file: "geometry.json", want: tiles.BoundingBox{4.5, 51.9, 6.1, 53.2}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := FromFile(filepath.Join("testdata", tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFile_SapporoTileRange(t *testing.T) {
	bbox, err := FromFile(filepath.Join("testdata", "sapporo.geojson"))
	require.NoError(t, err)
	r, err := tiles.BoundingBoxToTileRange(bbox, 18)
	require.NoError(t, err)
	assert.Equal(t, tiles.TileRange{MinX: 233997, MinY: 96254, MaxX: 234002, MaxY: 96258}, r)
	assert.Equal(t, 30, r.Count())
}

func TestFromFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing", path: filepath.Join("testdata", "nope.geojson"), want: ErrFileNotFound},
		{name: "unknown extension", path: filepath.Join("testdata", "notes.txt"), want: ErrUnsupportedFormat},
		{name: "directory", path: "testdata", want: ErrUnsupportedFormat},
		{name: "broken json", path: filepath.Join("testdata", "broken.geojson"), want: ErrUnsupportedFormat},
		{name: "no features", path: filepath.Join("testdata", "empty.geojson"), want: ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFile(tt.path)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromFile_GeoPackage(t *testing.T) {
	r := tiles.TileRange{MinX: 233997, MinY: 96254, MaxX: 234002, MaxY: 96258}
	cells, err := grid.Footprints(r.Tiles(18), grid.EPSG4326)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "footprints.gpkg")
	require.NoError(t, grid.WriteGeoPackage(path, cells, grid.EPSG4326))

	got, err := FromFile(path)
	require.NoError(t, err)

	topLeft := tiles.TileToGeoBoundingBox(233997, 96254, 18)
	bottomRight := tiles.TileToGeoBoundingBox(234002, 96258, 18)
	assert.InDelta(t, topLeft.MinX(), got.MinX(), 1e-9)
	assert.InDelta(t, topLeft.MaxY(), got.MaxY(), 1e-9)
	assert.InDelta(t, bottomRight.MaxX(), got.MaxX(), 1e-9)
	assert.InDelta(t, bottomRight.MinY(), got.MinY(), 1e-9)
}

func TestFromFile_GeoPackageWrongSRS(t *testing.T) {
	cells, err := grid.Footprints([]tiles.Tile{{Z: 3, X: 4, Y: 2}}, grid.EPSG3857)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mercator.gpkg")
	require.NoError(t, grid.WriteGeoPackage(path, cells, grid.EPSG3857))

	_, err = FromFile(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromFile_GeoPackageWithoutFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpkg")
	h, err := gpkg.Open(path)
	require.NoError(t, err)
	h.Close()

	_, err = FromFile(path)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestFromFile_NotAGeoPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.gpkg")
	require.NoError(t, os.WriteFile(path, []byte("this is not sqlite"), 0o644))

	_, err := FromFile(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse(t *testing.T) {
	got, err := Parse("141.347, 43.066,141.354,43.070")
	require.NoError(t, err)
	assert.Equal(t, tiles.BoundingBox{141.347, 43.066, 141.354, 43.070}, got)

	got, err = Parse("10,10,5,5")
	require.NoError(t, err)
	assert.True(t, got.Inverted())

	_, err = Parse("1,2,3")
	require.Error(t, err)
	_, err = Parse("1,2,3,north")
	require.Error(t, err)
}
