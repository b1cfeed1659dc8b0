package waypoint

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultCapacity is the collection ceiling used when none is configured
	DefaultCapacity = 2048

	// MaxNameLength bounds waypoint names in runes
	MaxNameLength = 64
)

// Waypoint is a named target point
type Waypoint struct {
	Name     string
	Position Point
}

// Store owns the ordered waypoint collection and the current selection
// Not safe for concurrent use: one logical writer per process drives it from the tick loop
//
// Two revision counters let consumers detect change without diffing:
//   - Revision advances on every collection or selection mutation
//   - SelectionRevision advances only when the selected referent changes
type Store struct {
	waypoints []Waypoint
	selection Selection
	capacity  int

	revision          uint64
	selectionRevision uint64
}

// NewStore creates an empty store bounded to capacity waypoints
// Non-positive capacity falls back to DefaultCapacity
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		selection: NoSelection(),
		capacity:  capacity,
	}
}

// DefaultName is the name given to the waypoint created when count waypoints already exist
func DefaultName(count int) string {
	return fmt.Sprintf("Waypoint %d", count+1)
}

// NormalizeName trims name and bounds its length, substituting the default for count when empty
func NormalizeName(name string, count int) string {
	name = strings.TrimSpace(name)
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "")
		name = strings.TrimSpace(name)
	}
	if name == "" {
		return DefaultName(count)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return name
}

// Capacity returns the collection ceiling
func (s *Store) Capacity() int { return s.capacity }

// Len returns the number of waypoints
func (s *Store) Len() int { return len(s.waypoints) }

// At returns the waypoint at index
func (s *Store) At(index int) (Waypoint, bool) {
	if index < 0 || index >= len(s.waypoints) {
		return Waypoint{}, false
	}
	return s.waypoints[index], true
}

// Waypoints returns a copy of the collection in creation order
func (s *Store) Waypoints() []Waypoint {
	out := make([]Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}

// Selection returns the current selection, always in bounds
func (s *Store) Selection() Selection { return s.selection }

// Selected returns the selected waypoint when the selection is a waypoint
func (s *Store) Selected() (Waypoint, bool) {
	if !s.selection.IsWaypoint() {
		return Waypoint{}, false
	}
	return s.At(s.selection.Index)
}

// Revision advances on every mutation
func (s *Store) Revision() uint64 { return s.revision }

// SelectionRevision advances when the selected referent changes
func (s *Store) SelectionRevision() uint64 { return s.selectionRevision }

// Add appends a waypoint and returns its index
// Empty or whitespace names become DefaultName of the pre-insertion count
// Returns -1 without mutation for a non-finite position or a full collection
func (s *Store) Add(name string, pos Point) int {
	if !pos.IsFinite() || len(s.waypoints) >= s.capacity {
		return -1
	}
	s.waypoints = append(s.waypoints, Waypoint{
		Name:     NormalizeName(name, len(s.waypoints)),
		Position: pos,
	})
	s.revision++
	return len(s.waypoints) - 1
}

// Delete removes the waypoint at index, shifting later indices down by one
// Out-of-range indices are a no-op so late or duplicated delete events cannot corrupt state
func (s *Store) Delete(index int) bool {
	if index < 0 || index >= len(s.waypoints) {
		return false
	}
	s.waypoints = append(s.waypoints[:index], s.waypoints[index+1:]...)
	s.revision++

	if s.selection.IsWaypoint() {
		switch {
		case s.selection.Index == index:
			s.setSelection(NoSelection())
		case s.selection.Index > index:
			// Same referent, new position
			s.selection.Index--
		}
	}
	return true
}

// SelectWaypoint selects index, or clears the selection when index is out of range
func (s *Store) SelectWaypoint(index int) Selection {
	if index < 0 || index >= len(s.waypoints) {
		s.setSelection(NoSelection())
	} else {
		s.setSelection(WaypointSelection(index))
	}
	return s.selection
}

// SelectExplorationTarget selects an exploration target by key
// An empty key clears the selection
func (s *Store) SelectExplorationTarget(key string) Selection {
	if key == "" {
		s.setSelection(NoSelection())
	} else {
		s.setSelection(ExplorationSelection(key))
	}
	return s.selection
}

// ClearSelection selects nothing
func (s *Store) ClearSelection() {
	s.setSelection(NoSelection())
}

// Cycle moves the selection to the next (dir >= 0) or previous (dir < 0) waypoint with wraparound
// With no waypoint selected, forward starts at the first index and backward at the last
// Returns false without mutation when the collection is empty
func (s *Store) Cycle(dir int) (Selection, bool) {
	n := len(s.waypoints)
	if n == 0 {
		return s.selection, false
	}

	step := 1
	if dir < 0 {
		step = -1
	}

	var next int
	switch {
	case s.selection.IsWaypoint():
		next = ((s.selection.Index+step)%n + n) % n
	case step > 0:
		next = 0
	default:
		next = n - 1
	}

	s.setSelection(WaypointSelection(next))
	return s.selection, true
}

// ReplaceAll atomically replaces the collection and selection
// Reserved for full resynchronization; entries beyond capacity or with non-finite positions are dropped
func (s *Store) ReplaceAll(waypoints []Waypoint, sel Selection) {
	next := make([]Waypoint, 0, min(len(waypoints), s.capacity))
	for _, wp := range waypoints {
		if len(next) >= s.capacity {
			break
		}
		if !wp.Position.IsFinite() {
			continue
		}
		next = append(next, Waypoint{
			Name:     NormalizeName(wp.Name, len(next)),
			Position: wp.Position,
		})
	}
	s.waypoints = next
	s.revision++

	s.selection = s.clamp(sel)
	s.selectionRevision++
}

// Clear empties the collection and selection
func (s *Store) Clear() {
	s.ReplaceAll(nil, NoSelection())
}

func (s *Store) clamp(sel Selection) Selection {
	switch sel.Mode {
	case SelectWaypoint:
		if sel.Index < 0 || sel.Index >= len(s.waypoints) {
			return NoSelection()
		}
		return WaypointSelection(sel.Index)
	case SelectExploration:
		if sel.Key == "" {
			return NoSelection()
		}
		return ExplorationSelection(sel.Key)
	default:
		return NoSelection()
	}
}

func (s *Store) setSelection(sel Selection) {
	sel = s.clamp(sel)
	if sel == s.selection {
		return
	}
	s.selection = sel
	s.revision++
	s.selectionRevision++
}
