package processing

import (
	"context"

	"github.com/pdok/tileoperator/tiles"
)

// Source enumerates the tiles to process, in order, stopping at the first error f returns.
type Source interface {
	Each(f func(tiles.Tile) error) error
}

// FetchFunc retrieves one tile and returns the path it was stored at.
type FetchFunc func(ctx context.Context, tile tiles.Tile) (string, error)

// Target does something with every tile that was fetched, e.g. georeference it.
type Target interface {
	Name() string
	WriteTile(tile tiles.Tile, path string) error
}

// Reasoner is implemented by errors that know why a tile failed, used to group failures.
type Reasoner interface {
	Reason() string
}

// TileSlice is a Source over a fixed list of tiles.
type TileSlice []tiles.Tile

func (s TileSlice) Each(f func(tiles.Tile) error) error {
	for _, t := range s {
		if err := f(t); err != nil {
			return err
		}
	}
	return nil
}
