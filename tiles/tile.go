package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/tileoperator/mathhelp"
	"github.com/pdok/tileoperator/morton"
)

// Tile identifies one tile in the pyramid: the tile index (X, Y) and its zoom level Z.
// X grows eastwards and Y southwards, (0, 0) is the top-left tile.
// X and Y are signed so tiles outside the world (e.g. derived from lon = 180) stay representable.
type Tile struct {
	Z uint
	X int
	Y int
}

func NewTile(z uint, x, y int) Tile {
	return Tile{Z: z, X: x, Y: y}
}

// ZXY returns the tile as (x, y, zoom), the self-describing triple used by downstream consumers.
func (t Tile) ZXY() (x, y int, z uint) {
	return t.X, t.Y, t.Z
}

// Valid reports whether the index lies within the 2^z × 2^z grid.
func (t Tile) Valid() bool {
	if t.Z > MaxZoom {
		return false
	}
	last := int(mathhelp.Pow2(t.Z)) - 1
	return mathhelp.BetweenInc(t.X, 0, last) && mathhelp.BetweenInc(t.Y, 0, last)
}

// Slippy converts to a go-spatial slippy tile. Returns false for invalid tiles.
func (t Tile) Slippy() (*slippy.Tile, bool) {
	if !t.Valid() {
		return nil, false
	}
	return slippy.NewTile(t.Z, uint(t.X), uint(t.Y)), true
}

// Quadkey is the Bing Maps quadkey of the tile.
func (t Tile) Quadkey() (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("tile %s: %w", t, ErrDomain)
	}
	return morton.Quadkey(uint(t.X), uint(t.Y), t.Z)
}

// TileFromQuadkey is the inverse of Quadkey.
func TileFromQuadkey(quadkey string) (Tile, error) {
	x, y, z, err := morton.FromQuadkey(quadkey)
	if err != nil {
		return Tile{}, err
	}
	t := Tile{Z: z, X: int(x), Y: int(y)}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("quadkey %q: %w", quadkey, ErrDomain)
	}
	return t, nil
}

// ParseTile reads a tile written as z/x/y, the inverse of String.
func ParseTile(s string) (Tile, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Tile{}, fmt.Errorf("tile %q should be z/x/y", s)
	}
	z, err := strconv.ParseUint(parts[0], 10, 0)
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: zoom: %w", s, err)
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: column: %w", s, err)
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: row: %w", s, err)
	}
	t := Tile{Z: uint(z), X: x, Y: y}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("tile %q: %w", s, ErrDomain)
	}
	return t, nil
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
