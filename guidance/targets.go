package guidance

import (
	"slices"
	"sync/atomic"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// Target is a nearby interactable object offered for guidance
type Target struct {
	Key      string
	Label    string
	Position waypoint.Point
	Distance float64
}

// TargetSource produces the current snapshot of exploration targets
// The engine only reads the selected target's position; it never owns the data
type TargetSource interface {
	Lookup(key string) (Target, bool)
	Targets() []Target
}

// TargetSet is a TargetSource whose snapshot is replaced wholesale on each update
// Readers never observe a partially written snapshot
type TargetSet struct {
	snapshot atomic.Pointer[[]Target]
}

// NewTargetSet creates an empty target set
func NewTargetSet() *TargetSet {
	ts := &TargetSet{}
	empty := []Target{}
	ts.snapshot.Store(&empty)
	return ts
}

// Replace swaps in a new snapshot
func (ts *TargetSet) Replace(targets []Target) {
	next := slices.Clone(targets)
	ts.snapshot.Store(&next)
}

// Targets returns the current snapshot
func (ts *TargetSet) Targets() []Target {
	return *ts.snapshot.Load()
}

// Lookup finds a target by key in the current snapshot
func (ts *TargetSet) Lookup(key string) (Target, bool) {
	for _, t := range *ts.snapshot.Load() {
		if t.Key == key {
			return t, true
		}
	}
	return Target{}, false
}

// Nearest returns the target closest to from, with Distance filled in tiles
func Nearest(src TargetSource, from waypoint.Point, tileSize float64) (Target, bool) {
	var (
		best  Target
		found bool
	)
	for _, t := range src.Targets() {
		d := from.Distance(t.Position) / tileSize
		if !found || d < best.Distance {
			best = t
			best.Distance = d
			found = true
		}
	}
	return best, found
}
