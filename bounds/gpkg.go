package bounds

import (
	"fmt"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/pdok/tileoperator/geomhelp"
	"github.com/pdok/tileoperator/tiles"
)

const epsg4326 = 4326

// GeoPackageReader unions the geometries of every feature table registered in gpkg_geometry_columns.
// All tables must be in EPSG:4326.
type GeoPackageReader struct{}

type geometryTable struct {
	name    string
	gcolumn string
	srsID   int
}

func (GeoPackageReader) Bounds(path string) (tiles.BoundingBox, error) {
	handle, err := gpkg.Open(path)
	if err != nil {
		return tiles.BoundingBox{}, fmt.Errorf("%s: %v: %w", path, err, ErrUnsupportedFormat)
	}
	defer handle.Close()

	tables, err := getGeometryTables(handle)
	if err != nil {
		return tiles.BoundingBox{}, fmt.Errorf("%s: %v: %w", path, err, ErrUnsupportedFormat)
	}

	var ext *geom.Extent
	for _, t := range tables {
		if err = checkSpatialReferenceSystem(handle, t); err != nil {
			return tiles.BoundingBox{}, fmt.Errorf("%s: %w", path, err)
		}
		ext, err = readTableExtent(handle, t, ext)
		if err != nil {
			return tiles.BoundingBox{}, fmt.Errorf("%s: table %s: %w", path, t.name, err)
		}
	}
	if ext == nil {
		return tiles.BoundingBox{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return tiles.FromGeomExtent(*ext), nil
}

// getGeometryTables lists the feature tables with their geometry column
func getGeometryTables(h *gpkg.Handle) ([]geometryTable, error) {
	rows, err := h.Query(`SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []geometryTable
	for rows.Next() {
		var t geometryTable
		if err = rows.Scan(&t.name, &t.gcolumn, &t.srsID); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func checkSpatialReferenceSystem(h *gpkg.Handle, t geometryTable) error {
	var organization string
	var code int
	row := h.QueryRow(`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?;`, t.srsID)
	if err := row.Scan(&organization, &code); err != nil {
		return fmt.Errorf("table %s: srs %d: %v: %w", t.name, t.srsID, err, ErrUnsupportedFormat)
	}
	if !strings.EqualFold(organization, "EPSG") || code != epsg4326 {
		return fmt.Errorf("table %s is in %s:%d, expected EPSG:%d: %w", t.name, organization, code, epsg4326, ErrUnsupportedFormat)
	}
	return nil
}

// readTableExtent decodes every geometry of the table and grows ext with it
func readTableExtent(h *gpkg.Handle, t geometryTable, ext *geom.Extent) (*geom.Extent, error) {
	rows, err := h.Query(fmt.Sprintf(`SELECT "%s" FROM "%s";`, t.gcolumn, t.name))
	if err != nil {
		return ext, err
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		if err = rows.Scan(&blob); err != nil {
			return ext, err
		}
		if len(blob) == 0 {
			continue
		}
		sb, err := gpkg.DecodeGeometry(blob)
		if err != nil {
			return ext, fmt.Errorf("error decoding the geometry: %w", err)
		}
		if sb.Geometry == nil {
			continue
		}
		if ext, err = geomhelp.MergeExtent(ext, sb.Geometry); err != nil {
			return ext, err
		}
	}
	return ext, rows.Err()
}
