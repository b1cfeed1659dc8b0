package engine

import (
	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// Status reports the outcome of a user command
type Status uint8

const (
	StatusOK Status = iota
	// StatusSuppressed means a naming session owned by the actor is open
	StatusSuppressed
	// StatusUnavailable means the collection or target set was empty
	StatusUnavailable
	// StatusRejected means the store refused the change
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuppressed:
		return "naming in progress"
	case StatusUnavailable:
		return "no waypoints available"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// CycleResult is the outcome of Cycle
type CycleResult struct {
	Status    Status
	Selection waypoint.Selection
}

// BeginNaming opens a naming session anchored at the observer
func (s *Session) BeginNaming(actor string) bool {
	if s.closed {
		return false
	}
	return s.capture.Begin(actor, s.observer, s.store.Len())
}

// SubmitName completes the open naming session as if the prompt submitted text
func (s *Session) SubmitName(text string) int {
	return s.capture.Submit(text)
}

// CancelName abandons the open naming session
func (s *Session) CancelName(partial string) {
	s.capture.Cancel(partial)
}

// Cycle moves the selection by dir with wraparound
func (s *Session) Cycle(actor string, dir int) CycleResult {
	if s.capture.Blocks(actor) {
		return CycleResult{Status: StatusSuppressed, Selection: s.store.Selection()}
	}
	sel, ok := s.store.Cycle(dir)
	if !ok {
		return CycleResult{Status: StatusUnavailable, Selection: sel}
	}
	return CycleResult{Status: StatusOK, Selection: sel}
}

// SelectWaypoint selects index, out of range clears the selection
func (s *Session) SelectWaypoint(actor string, index int) Status {
	if s.capture.Blocks(actor) {
		return StatusSuppressed
	}
	if s.store.SelectWaypoint(index).IsNone() {
		return StatusUnavailable
	}
	return StatusOK
}

// SelectExplorationTarget selects a target by key from the target source
func (s *Session) SelectExplorationTarget(actor, key string) Status {
	if s.capture.Blocks(actor) {
		return StatusSuppressed
	}
	if _, ok := s.targets.Lookup(key); !ok {
		return StatusUnavailable
	}
	s.store.SelectExplorationTarget(key)
	return StatusOK
}

// SelectNearestTarget selects the exploration target closest to the observer
func (s *Session) SelectNearestTarget(actor string) (guidance.Target, Status) {
	if s.capture.Blocks(actor) {
		return guidance.Target{}, StatusSuppressed
	}
	t, ok := guidance.Nearest(s.targets, s.observer, s.config.Guidance.TileSize)
	if !ok {
		return guidance.Target{}, StatusUnavailable
	}
	s.store.SelectExplorationTarget(t.Key)
	return t, StatusOK
}

// ClearSelection stops guidance
func (s *Session) ClearSelection(actor string) Status {
	if s.capture.Blocks(actor) {
		return StatusSuppressed
	}
	s.store.ClearSelection()
	return StatusOK
}

// Delete removes a waypoint and propagates the delete
func (s *Session) Delete(actor string, index int) Status {
	if s.capture.Blocks(actor) {
		return StatusSuppressed
	}
	if !s.coord.Delete(index) {
		return StatusUnavailable
	}
	return StatusOK
}

// DeleteSelected removes the selected waypoint
func (s *Session) DeleteSelected(actor string) Status {
	sel := s.store.Selection()
	if !sel.IsWaypoint() {
		if s.capture.Blocks(actor) {
			return StatusSuppressed
		}
		return StatusUnavailable
	}
	return s.Delete(actor, sel.Index)
}

// CommitWaypoint implements naming.Committer
// The new waypoint is created, propagated and selected
func (s *Session) CommitWaypoint(name string, pos waypoint.Point) int {
	idx := s.coord.Create(name, pos)
	if idx < 0 {
		return -1
	}
	s.store.SelectWaypoint(idx)
	return idx
}

// RestoreGuidance implements naming.Committer
func (s *Session) RestoreGuidance() {
	s.scheduler.Invalidate()
}
