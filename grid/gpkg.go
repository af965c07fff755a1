package grid

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"

	"github.com/pdok/tileoperator/geomhelp"
)

const (
	tableName      = "tiles"
	geometryColumn = "geom"
)

var spatialReferenceSystems = map[int]gpkg.SpatialReferenceSystem{
	EPSG4326: {
		Name:                   "WGS 84 geodetic",
		ID:                     EPSG4326,
		Organization:           "EPSG",
		OrganizationCoordsysID: EPSG4326,
		Definition:             `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
		Description:            "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
	},
	EPSG3857: {
		Name:                   "WGS 84 / Pseudo-Mercator",
		ID:                     EPSG3857,
		Organization:           "EPSG",
		OrganizationCoordsysID: EPSG3857,
		Definition:             `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","3857"]]`,
		Description:            "Web Mercator",
	},
}

// WriteGeoPackage writes the cells to a new GeoPackage with a single "tiles" feature table.
// An existing file at path is replaced.
func WriteGeoPackage(path string, cells []Cell, srid int) error {
	srs, ok := spatialReferenceSystems[srid]
	if !ok {
		return fmt.Errorf("unsupported srid %d, use %d or %d", srid, EPSG4326, EPSG3857)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	handle, err := gpkg.Open(path)
	if err != nil {
		return fmt.Errorf("error opening GeoPackage: %w", err)
	}
	defer handle.Close()

	if err = handle.UpdateSRS(srs); err != nil {
		return err
	}
	if err = buildTable(handle, srs); err != nil {
		return err
	}
	ext, err := writeCells(handle, cells, srs)
	if err != nil {
		return err
	}
	if ext == nil {
		return nil
	}
	return handle.UpdateGeometryExtent(tableName, ext)
}

// buildTable creates the feature table with the necessary gpkg_ information
func buildTable(h *gpkg.Handle, srs gpkg.SpatialReferenceSystem) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s"(fid INTEGER PRIMARY KEY, z INTEGER NOT NULL, x INTEGER NOT NULL, y INTEGER NOT NULL, %s BLOB);`,
		tableName, geometryColumn)
	if _, err := h.Exec(query); err != nil {
		return fmt.Errorf("error building table in target GeoPackage: %w", err)
	}
	err := h.AddGeometryTable(gpkg.TableDescription{
		Name:          tableName,
		ShortName:     tableName,
		Description:   "tile footprints",
		GeometryField: geometryColumn,
		GeometryType:  gpkg.Polygon,
		SRS:           int32(srs.ID),
		//
		Z: gpkg.Prohibited,
		M: gpkg.Prohibited,
	})
	if err != nil {
		return fmt.Errorf("error adding geometry table in target GeoPackage: %w", err)
	}
	return nil
}

func writeCells(h *gpkg.Handle, cells []Cell, srs gpkg.SpatialReferenceSystem) (*geom.Extent, error) {
	tx, err := h.Begin()
	if err != nil {
		return nil, fmt.Errorf("could not start a transaction: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO "%s"(z, x, y, %s) VALUES(?, ?, ?, ?)`, tableName, geometryColumn))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("could not prepare a statement: %w", err)
	}
	defer stmt.Close()

	var ext *geom.Extent
	for _, c := range cells {
		polygon := geomhelp.BoundingBoxPolygon(c.BBox)
		sb, err := gpkg.NewBinary(int32(srs.ID), polygon)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("could not create a binary geometry for tile %s: %w", c.Tile, err)
		}
		if _, err = stmt.Exec(c.Tile.Z, c.Tile.X, c.Tile.Y, sb); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("could not insert tile %s: %w", c.Tile, err)
		}
		if ext, err = geomhelp.MergeExtent(ext, polygon); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	return ext, tx.Commit()
}
