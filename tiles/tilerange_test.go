package tiles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxToTileRange(t *testing.T) {
	tests := []struct {
		name  string
		bbox  BoundingBox
		zoom  uint
		count int
		first Tile
		last  Tile
	}{
		{
			name:  "literal bbox",
			bbox:  BoundingBox{141.347, 43.066, 141.354, 43.070},
			zoom:  18,
			count: 30,
			first: Tile{Z: 18, X: 233997, Y: 96254},
			last:  Tile{Z: 18, X: 234002, Y: 96258},
		},
		{
			name:  "bbox of vector file",
			bbox:  BoundingBox{141.34745105748715, 43.06613341427342, 141.35447566877565, 43.07026242419525},
			zoom:  18,
			count: 30,
			first: Tile{Z: 18, X: 233998, Y: 96254},
			last:  Tile{Z: 18, X: 234003, Y: 96258},
		},
		{
			name:  "whole world at zoom 0",
			bbox:  BoundingBox{-180, -85, 179.999, 85},
			zoom:  0,
			count: 1,
			first: Tile{Z: 0, X: 0, Y: 0},
			last:  Tile{Z: 0, X: 0, Y: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := BoundingBoxToTileRange(tt.bbox, tt.zoom)
			require.NoError(t, err)
			tiles := r.Tiles(tt.zoom)
			require.Len(t, tiles, tt.count)
			assert.Equal(t, tt.count, r.Count())
			assert.Equal(t, tt.first, tiles[0])
			assert.Equal(t, tt.last, tiles[len(tiles)-1])
		})
	}
}

func TestBoundingBoxToTileRange_EdgeOnTileBoundaryIsInclusive(t *testing.T) {
	// lon 0 and lat 0 are exact tile boundaries at every zoom level > 0
	r, err := BoundingBoxToTileRange(BoundingBox{-90, 0, 0, 40}, 2)
	require.NoError(t, err)
	assert.Equal(t, TileRange{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}, r)
	assert.Equal(t, []Tile{
		{Z: 2, X: 1, Y: 1},
		{Z: 2, X: 1, Y: 2},
		{Z: 2, X: 2, Y: 1},
		{Z: 2, X: 2, Y: 2},
	}, r.Tiles(2))
}

func TestBoundingBoxToTileRange_DomainError(t *testing.T) {
	_, err := BoundingBoxToTileRange(BoundingBox{0, -10, 10, 90}, 5)
	require.ErrorIs(t, err, ErrDomain)
	_, err = BoundingBoxToTileRange(BoundingBox{0, -90, 10, 10}, 5)
	require.ErrorIs(t, err, ErrDomain)
}

func TestTileRange_OrderIsColumnMajor(t *testing.T) {
	r := TileRange{MinX: 10, MinY: 20, MaxX: 11, MaxY: 22}
	assert.Equal(t, []Tile{
		{Z: 7, X: 10, Y: 20},
		{Z: 7, X: 10, Y: 21},
		{Z: 7, X: 10, Y: 22},
		{Z: 7, X: 11, Y: 20},
		{Z: 7, X: 11, Y: 21},
		{Z: 7, X: 11, Y: 22},
	}, r.Tiles(7))
	assert.Equal(t, 2, r.XSpan())
	assert.Equal(t, 3, r.YSpan())
}

func TestTileRange_Empty(t *testing.T) {
	tests := []struct {
		name string
		r    TileRange
	}{
		{name: "inverted x", r: TileRange{MinX: 5, MinY: 0, MaxX: 4, MaxY: 3}},
		{name: "inverted y", r: TileRange{MinX: 0, MinY: 5, MaxX: 3, MaxY: 4}},
		{name: "inverted both", r: TileRange{MinX: 9, MinY: 9, MaxX: 1, MaxY: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.r.Empty())
			assert.Equal(t, 0, tt.r.Count())
			assert.Empty(t, tt.r.Tiles(3))
			called := false
			require.NoError(t, tt.r.Each(3, func(Tile) error {
				called = true
				return nil
			}))
			assert.False(t, called)
		})
	}
}

func TestBoundingBoxToTileRange_InvertedBoxYieldsNoTiles(t *testing.T) {
	bbox := BoundingBox{141.354, 43.070, 141.347, 43.066}
	require.True(t, bbox.Inverted())
	r, err := BoundingBoxToTileRange(bbox, 18)
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Empty(t, r.Tiles(18))
}

func TestBoundingBoxToTileRange_DegenerateBoxes(t *testing.T) {
	tests := []struct {
		name  string
		bbox  BoundingBox
		count int
	}{
		{name: "inverted within one tile", bbox: BoundingBox{10, 10, 5, 5}, count: 0},
		{name: "inverted longitude only", bbox: BoundingBox{10, 5, 5, 10}, count: 0},
		{name: "inverted latitude only", bbox: BoundingBox{5, 10, 10, 5}, count: 0},
		{name: "zero area", bbox: BoundingBox{7, 7, 7, 7}, count: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := BoundingBoxToTileRange(tt.bbox, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.count == 0, r.Empty())
			assert.Len(t, r.Tiles(5), tt.count)
		})
	}
}

func TestTileRange_EachStopsOnError(t *testing.T) {
	r := TileRange{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}
	stop := errors.New("stop")
	var visited []Tile
	err := r.Each(2, func(tile Tile) error {
		visited = append(visited, tile)
		if len(visited) == 3 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	assert.Len(t, visited, 3)
}

func TestParseTile(t *testing.T) {
	tests := []struct {
		in      string
		ok      bool
		want    Tile
		wantErr error
	}{
		{in: "18/233997/96254", ok: true, want: NewTile(18, 233997, 96254)},
		{in: "0/0/0", ok: true, want: NewTile(0, 0, 0)},
		{in: "1/2/0", wantErr: ErrDomain},
		{in: "31/0/0", wantErr: ErrDomain},
		{in: "18/-1/3", wantErr: ErrDomain},
		{in: "18/233997"},
		{in: "a/b/c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTile(tt.in)
			if !tt.ok {
				require.Error(t, err)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestTile(t *testing.T) {
	tile := NewTile(18, 233997, 96254)
	assert.Equal(t, "18/233997/96254", tile.String())
	x, y, z := tile.ZXY()
	assert.Equal(t, 233997, x)
	assert.Equal(t, 96254, y)
	assert.Equal(t, uint(18), z)
	assert.True(t, tile.Valid())

	st, ok := tile.Slippy()
	require.True(t, ok)
	assert.Equal(t, uint(18), st.Z)
	assert.Equal(t, uint(233997), st.X)
	assert.Equal(t, uint(96254), st.Y)

	assert.False(t, NewTile(1, 2, 0).Valid())
	assert.False(t, NewTile(1, 0, -1).Valid())
	_, ok = NewTile(1, 2, 0).Slippy()
	assert.False(t, ok)
}

func TestTile_Quadkey(t *testing.T) {
	q, err := NewTile(3, 3, 5).Quadkey()
	require.NoError(t, err)
	assert.Equal(t, "213", q)

	tile, err := TileFromQuadkey("213")
	require.NoError(t, err)
	assert.Equal(t, NewTile(3, 3, 5), tile)

	_, err = NewTile(3, 8, 0).Quadkey()
	require.ErrorIs(t, err, ErrDomain)
	_, err = TileFromQuadkey("2x3")
	require.Error(t, err)
}
