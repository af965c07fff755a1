package processing

import (
	"errors"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/tileoperator/mapslicehelp"
	"github.com/pdok/tileoperator/tiles"
)

const (
	ReasonCanceled = "canceled"
	ReasonUnknown  = "unknown"
)

// Failure is why a single tile did not make it.
type Failure struct {
	Reason  string
	Message string
}

func newFailure(err error) Failure {
	f := Failure{Reason: ReasonUnknown, Message: err.Error()}
	var r Reasoner
	if errors.As(err, &r) {
		f.Reason = r.Reason()
	}
	return f
}

// Report summarizes a run. Failures are kept in enumeration order.
type Report struct {
	Fetched int
	Written int
	Failed  int

	// Failures holds the fetch failures by tile
	Failures *orderedmap.OrderedMap[tiles.Tile, Failure]
	// TargetFailures holds the target failures by tile, the message prefixed with the target name
	TargetFailures *orderedmap.OrderedMap[tiles.Tile, Failure]

	mu sync.Mutex
}

func NewReport() *Report {
	return &Report{
		Failures:       orderedmap.New[tiles.Tile, Failure](),
		TargetFailures: orderedmap.New[tiles.Tile, Failure](),
	}
}

func (r *Report) fetched() {
	r.Fetched++
}

func (r *Report) failed(tile tiles.Tile, err error) {
	r.Failed++
	r.Failures.Set(tile, newFailure(err))
}

func (r *Report) written() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written++
}

func (r *Report) targetFailed(target string, tile tiles.Tile, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := newFailure(err)
	f.Message = target + ": " + f.Message
	r.TargetFailures.Set(tile, f)
}

// FailedTiles lists the tiles that could not be fetched, in enumeration order.
func (r *Report) FailedTiles() []tiles.Tile {
	return mapslicehelp.OrderedMapKeys(r.Failures)
}

// FailuresByReason counts the fetch failures per reason.
func (r *Report) FailuresByReason() map[string]int {
	counts := make(map[string]int)
	for p := r.Failures.Oldest(); p != nil; p = p.Next() {
		counts[p.Value.Reason]++
	}
	return counts
}

// FailuresWithReason counts the fetch failures with the given reason.
func (r *Report) FailuresWithReason(reason string) int {
	return mapslicehelp.CountFunc(r.Failures, func(f Failure) bool { return f.Reason == reason })
}
