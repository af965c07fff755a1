// Package tms20 implements the parts of the OGC Tile Matrix Set standard (v2.0) needed to describe
// the Web Mercator tile pyramid, as a slippy.Grid.
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/perimeterx/marshmallow"
)

// WebMercatorQuad is the id of the tile matrix set of the XYZ tile scheme.
const WebMercatorQuad = "WebMercatorQuad"

var (
	//go:embed tilematrixsets/*.json
	embeddedTileMatrixSetsJSONFS embed.FS

	embeddedMu                  sync.Mutex
	embeddedTileMatrixSetsCache = make(map[string]*TileMatrixSet)
)

// Load loads a tile matrix set from a JSON file when ref ends in .json, else the embedded one with id ref.
func Load(ref string) (TileMatrixSet, error) {
	if strings.EqualFold(filepath.Ext(ref), ".json") {
		return LoadJSONTileMatrixSet(ref)
	}
	return LoadEmbeddedTileMatrixSet(ref)
}

// LoadEmbeddedTileMatrixSet loads one of the tile matrix sets shipped with this package by id.
// Safe for concurrent use.
func LoadEmbeddedTileMatrixSet(id string) (TileMatrixSet, error) {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()
	if cached, ok := embeddedTileMatrixSetsCache[id]; ok {
		return *cached, nil
	}
	tmsJSON, err := embeddedTileMatrixSetsJSONFS.ReadFile("tilematrixsets/" + id + ".json")
	if err != nil {
		return TileMatrixSet{}, fmt.Errorf("unknown tile matrix set %q: %w", id, err)
	}
	var tms TileMatrixSet
	if err = json.Unmarshal(tmsJSON, &tms); err != nil {
		return TileMatrixSet{}, err
	}
	embeddedTileMatrixSetsCache[id] = &tms
	return tms, nil
}

// LoadJSONTileMatrixSet loads a tile matrix set definition from a file.
func LoadJSONTileMatrixSet(path string) (TileMatrixSet, error) {
	var tms TileMatrixSet
	tmsJSON, err := os.ReadFile(path)
	if err != nil {
		return tms, err
	}
	err = json.Unmarshal(tmsJSON, &tms)
	return tms, err
}

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitnil,min=1" json:"orderedAxes"`
	// Coordinate Reference System (CRS)
	CRS URICRS `json:"-"`
	// Reference to a well-known scale set
	WellKnownScaleSet string `validate:"omitempty,uri" json:"wellKnownScaleSet,omitempty"`
	// Describes scale levels and its tile matrices, keyed by zoom level
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	err := defaults.Set(tms)
	if err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	if err = tms.CRS.UnmarshalJSONFromMap(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices)
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(rawTileMatrices interface{}) (map[int]TileMatrix, error) {
	rawTileMatricesList, ok := rawTileMatrices.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(rawTileMatricesList))
	for _, rawTileMatrix := range rawTileMatricesList {
		rawTileMatrixMap, ok := rawTileMatrix.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf(`"tileMatrices" should be objects`)
		}
		var tileMatrix TileMatrix
		if err := tileMatrix.UnmarshalJSONFromMap(rawTileMatrixMap); err != nil {
			return nil, err
		}
		zoom, err := strconv.ParseInt(tileMatrix.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[int(zoom)] = tileMatrix
	}
	return tileMatrices, nil
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$")
)

// URICRS is a CRS given by reference, either as a plain string or as {"uri": ...}.
type URICRS struct {
	URI           string `validate:"required,uri"`
	AuthorityName string `validate:"required"`
	AuthorityCode string `validate:"required"`
}

func (crs *URICRS) UnmarshalJSONFromMap(data interface{}) error {
	switch d := data.(type) {
	case string:
		crs.URI = d
	case map[string]interface{}:
		rawURI, ok := d["uri"]
		if !ok {
			return fmt.Errorf(`uri property not found`)
		}
		if crs.URI, ok = rawURI.(string); !ok {
			return fmt.Errorf(`uri property is not a string but a %T`, rawURI)
		}
	default:
		return fmt.Errorf(`wrong type key "crs": %T`, data)
	}

	uriParts := crsURIRegexURL.FindStringSubmatch(crs.URI)
	if uriParts == nil {
		uriParts = crsURIRegexURN.FindStringSubmatch(crs.URI)
	}
	if uriParts == nil {
		return fmt.Errorf(`could not parse crs uri "%v"`, crs.URI)
	}
	crs.AuthorityName = uriParts[1]
	crs.AuthorityCode = uriParts[2]

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(crs)
}

// TwoDPoint is a 2D Point in the CRS of the tile matrix set
type TwoDPoint [2]float64

func (p TwoDPoint) XY() [2]float64 {
	return p
}

// TileMatrix is a tile matrix, corresponding to one zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier of this tile matrix, the zoom level
	ID string `validate:"required" json:"id"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix in CRS units per pixel
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix used as the origin for numbering tile rows and columns.
	CornerOfOrigin CornerOfOrigin `default:"topLeft" validate:"oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin, (0, 0) is a valid origin
	PointOfOrigin TwoDPoint `json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data map[string]interface{}) error {
	if err := defaults.Set(tm); err != nil {
		return err
	}
	if _, err := marshmallow.UnmarshalFromJSONMap(data, tm, marshmallow.WithExcludeKnownFieldsFromMap(true)); err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

// TileSpan is the width and height of a single tile in CRS units.
func (tm *TileMatrix) TileSpan() (float64, float64) {
	return float64(tm.TileWidth) * tm.CellSize, float64(tm.TileHeight) * tm.CellSize
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

// SRID is the numeric authority code of the CRS, e.g. 3857.
func (tms *TileMatrixSet) SRID() (uint, error) {
	code, err := strconv.ParseUint(tms.CRS.AuthorityCode, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("crs %s has no numeric code: %w", tms.CRS.URI, err)
	}
	return uint(code), nil
}

// Zooms returns the zoom levels of the tile matrix set in ascending order.
func (tms *TileMatrixSet) Zooms() []uint {
	zooms := make([]uint, 0, len(tms.TileMatrices))
	for z := range tms.TileMatrices {
		zooms = append(zooms, uint(z))
	}
	sort.Slice(zooms, func(i, j int) bool { return zooms[i] < zooms[j] })
	return zooms
}

// TileMatrix returns the tile matrix for a zoom level.
func (tms *TileMatrixSet) TileMatrix(zoom uint) (TileMatrix, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	return tm, ok
}

func (tms *TileMatrixSet) Size(zoom uint) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrix(zoom)
	if !ok {
		return nil, false
	}
	return slippy.NewTile(zoom, tm.MatrixWidth, tm.MatrixHeight), true
}

// FromNative returns the tile containing pt (in the CRS of the tile matrix set).
func (tms *TileMatrixSet) FromNative(zoom uint, pt geom.Point) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrix(zoom)
	if !ok {
		return nil, false
	}

	tileSizeX, tileSizeY := tm.TileSpan()
	origin := tm.PointOfOrigin.XY()
	x := math.Floor((pt.X() - origin[0]) / tileSizeX)
	if x < 0 || x >= float64(tm.MatrixWidth) {
		return nil, false
	}

	var y float64
	switch tm.CornerOfOrigin {
	case BottomLeft:
		y = math.Floor((pt.Y() - origin[1]) / tileSizeY)
	default:
		y = math.Floor((origin[1] - pt.Y()) / tileSizeY)
	}
	if y < 0 || y >= float64(tm.MatrixHeight) {
		return nil, false
	}

	return slippy.NewTile(zoom, uint(x), uint(y)), true
}

// ToNative returns the top-left corner of a tile in the CRS of the tile matrix set.
func (tms *TileMatrixSet) ToNative(tile *slippy.Tile) (geom.Point, bool) {
	topLeftPt := geom.Point{}
	tm, ok := tms.TileMatrix(tile.Z)
	if !ok {
		return topLeftPt, false
	}
	if tile.X > tm.MatrixWidth || tile.Y > tm.MatrixHeight {
		// >, not >= because "should be able to take tiles with x and y values 1 higher than the max"
		return topLeftPt, false
	}

	tileSizeX, tileSizeY := tm.TileSpan()
	topLeftPt[0] = tm.PointOfOrigin.XY()[0] + float64(tile.X)*tileSizeX
	switch tm.CornerOfOrigin {
	case BottomLeft:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] + float64(tile.Y+1)*tileSizeY
	default:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] - float64(tile.Y)*tileSizeY
	}

	return topLeftPt, true
}

// Footprint is the extent of a tile in the CRS of the tile matrix set.
// Returns false for tiles outside the tile matrix.
func (tms *TileMatrixSet) Footprint(tile *slippy.Tile) (geom.Extent, bool) {
	size, ok := tms.Size(tile.Z)
	if !ok || tile.X >= size.X || tile.Y >= size.Y {
		return geom.Extent{}, false
	}
	topLeft, ok := tms.ToNative(tile)
	if !ok {
		return geom.Extent{}, false
	}
	tm, _ := tms.TileMatrix(tile.Z)
	w, h := tm.TileSpan()
	return geom.Extent{topLeft.X(), topLeft.Y() - h, topLeft.X() + w, topLeft.Y()}, true
}
