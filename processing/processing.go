// Package processing takes care of the logistics around fetching tiles and handing them to Targets.
// Not the fetching itself.
package processing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdok/tileoperator/tiles"
)

type fetchedTile struct {
	tile tiles.Tile
	path string
}

// readTilesFromSource enumerates the source onto the channel until it is exhausted or ctx is done
func readTilesFromSource(ctx context.Context, source Source, tilesOut chan<- tiles.Tile) error {
	defer close(tilesOut)
	return source.Each(func(t tiles.Tile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case tilesOut <- t:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// fetchTiles fetches the tiles one after the other, in the order they come in
func fetchTiles(ctx context.Context, tilesIn <-chan tiles.Tile, tilesOut chan<- fetchedTile, fetch FetchFunc, report *Report, logger zerolog.Logger) {
	defer close(tilesOut)
	for tile := range tilesIn {
		if err := ctx.Err(); err != nil {
			report.failed(tile, canceledError{err})
			continue
		}
		path, err := fetch(ctx, tile)
		if err != nil {
			logger.Warn().Err(err).Stringer("tile", tile).Msg("could not fetch tile")
			report.failed(tile, err)
			continue
		}
		report.fetched()
		logger.Debug().Stringer("tile", tile).Str("path", path).Msg("fetched tile")
		tilesOut <- fetchedTile{tile: tile, path: path}
	}
}

// writeTilesToTargets hands every fetched tile to each target, one goroutine per target
func writeTilesToTargets(tilesIn <-chan fetchedTile, targets []Target, report *Report, logger zerolog.Logger) {
	wg := sync.WaitGroup{}
	targetChannels := make([]chan fetchedTile, len(targets))
	for i, target := range targets {
		targetChannels[i] = make(chan fetchedTile)
		wg.Add(1)
		go func(target Target, tilesIn <-chan fetchedTile) {
			defer wg.Done()
			for ft := range tilesIn {
				if err := target.WriteTile(ft.tile, ft.path); err != nil {
					logger.Warn().Err(err).Str("target", target.Name()).Stringer("tile", ft.tile).Msg("could not process tile")
					report.targetFailed(target.Name(), ft.tile, err)
					continue
				}
				report.written()
			}
		}(target, targetChannels[i])
	}

	// distribute the fetched tiles over the targets
	for ft := range tilesIn {
		for _, channel := range targetChannels {
			channel <- ft
		}
	}

	// close the channels, the targets will do their last writing
	for _, channel := range targetChannels {
		close(channel)
	}

	wg.Wait()
}

// ProcessTiles fetches every tile of the source, in order and one at a time, and passes each
// fetched tile to all targets. A failing tile is recorded in the report and the run continues.
// When ctx is done, the remaining tiles are not fetched.
func ProcessTiles(ctx context.Context, source Source, fetch FetchFunc, logger zerolog.Logger, targets ...Target) (*Report, error) {
	report := NewReport()
	tilesBefore := make(chan tiles.Tile)
	tilesAfter := make(chan fetchedTile)

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		writeTilesToTargets(tilesAfter, targets, report, logger)
	}()
	go func() {
		defer wg.Done()
		fetchTiles(ctx, tilesBefore, tilesAfter, fetch, report, logger)
	}()
	err := readTilesFromSource(ctx, source, tilesBefore)

	wg.Wait()
	return report, err
}

type canceledError struct {
	err error
}

func (e canceledError) Error() string {
	return e.err.Error()
}

func (e canceledError) Unwrap() error {
	return e.err
}

func (e canceledError) Reason() string {
	return ReasonCanceled
}
