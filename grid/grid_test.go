package grid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdok/tileoperator/tiles"
)

func sapporoTiles(t *testing.T) []tiles.Tile {
	t.Helper()
	r, err := tiles.BoundingBoxToTileRange(tiles.BoundingBox{141.347, 43.066, 141.354, 43.070}, 18)
	require.NoError(t, err)
	return r.Tiles(18)
}

func TestFootprints(t *testing.T) {
	ts := []tiles.Tile{{Z: 18, X: 233997, Y: 96254}}

	cells, err := Footprints(ts, EPSG3857)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.InDelta(t, 15734562.270313263, cells[0].BBox.MinX(), 1e-6)
	assert.InDelta(t, 5322616.026869046, cells[0].BBox.MinY(), 1e-6)
	assert.InDelta(t, 15734715.14436981, cells[0].BBox.MaxX(), 1e-6)
	assert.InDelta(t, 5322768.900925593, cells[0].BBox.MaxY(), 1e-6)

	cells, err = Footprints(ts, EPSG4326)
	require.NoError(t, err)
	assert.Equal(t, tiles.TileToGeoBoundingBox(233997, 96254, 18), cells[0].BBox)

	_, err = Footprints(ts, 28992)
	require.Error(t, err)
}

func TestWriteGeoJSON(t *testing.T) {
	cells, err := Footprints(sapporoTiles(t), EPSG4326)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "grid.geojson")
	require.NoError(t, Write(path, cells, EPSG4326))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 30)

	first := fc.Features[0]
	assert.Equal(t, 18.0, first.Properties.MustFloat64("z"))
	assert.Equal(t, 233997.0, first.Properties.MustFloat64("x"))
	assert.Equal(t, 96254.0, first.Properties.MustFloat64("y"))

	polygon, ok := first.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, polygon, 1)
	assert.Len(t, polygon[0], 5)
	assert.True(t, polygon[0].Closed())
	assert.InDelta(t, cells[0].BBox.MinX(), polygon.Bound().Min.X(), 1e-9)
	assert.InDelta(t, cells[0].BBox.MaxY(), polygon.Bound().Max.Y(), 1e-9)
}

func TestWriteGeoPackage(t *testing.T) {
	cells, err := Footprints(sapporoTiles(t), EPSG3857)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "grid.gpkg")
	require.NoError(t, Write(path, cells, EPSG3857))
	// writing again replaces the file instead of appending
	require.NoError(t, Write(path, cells, EPSG3857))

	h, err := gpkg.Open(path)
	require.NoError(t, err)
	defer h.Close()

	var count int
	require.NoError(t, h.QueryRow(`SELECT count(*) FROM "tiles";`).Scan(&count))
	assert.Equal(t, 30, count)

	var srsID int
	require.NoError(t, h.QueryRow(`SELECT srs_id FROM gpkg_geometry_columns WHERE table_name = 'tiles';`).Scan(&srsID))
	assert.Equal(t, EPSG3857, srsID)

	var z, x, y int
	var blob []byte
	require.NoError(t, h.QueryRow(`SELECT z, x, y, geom FROM "tiles" ORDER BY fid LIMIT 1;`).Scan(&z, &x, &y, &blob))
	assert.Equal(t, []int{18, 233997, 96254}, []int{z, x, y})

	sb, err := gpkg.DecodeGeometry(blob)
	require.NoError(t, err)
	assert.NotNil(t, sb.Geometry)
}

func TestWriteUnsupported(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, Write(filepath.Join(dir, "grid.shp"), nil, EPSG3857))
	require.Error(t, Write(filepath.Join(dir, "grid.gpkg"), nil, 28992))
}
