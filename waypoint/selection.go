package waypoint

import "fmt"

// SelectionMode identifies what the active guidance target refers to
// Values are part of the wire format and must not be renumbered
type SelectionMode uint8

const (
	SelectNone        SelectionMode = 0
	SelectWaypoint    SelectionMode = 1
	SelectExploration SelectionMode = 2
)

func (m SelectionMode) String() string {
	switch m {
	case SelectNone:
		return "none"
	case SelectWaypoint:
		return "waypoint"
	case SelectExploration:
		return "exploration"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Selection is the current guidance target
// Index is meaningful only for SelectWaypoint, Key only for SelectExploration
type Selection struct {
	Mode  SelectionMode
	Index int
	Key   string
}

// NoSelection returns the empty selection
func NoSelection() Selection {
	return Selection{Mode: SelectNone, Index: -1}
}

// WaypointSelection selects the waypoint at index
func WaypointSelection(index int) Selection {
	return Selection{Mode: SelectWaypoint, Index: index}
}

// ExplorationSelection selects the exploration target identified by key
func ExplorationSelection(key string) Selection {
	return Selection{Mode: SelectExploration, Index: -1, Key: key}
}

// IsNone reports whether nothing is selected
func (s Selection) IsNone() bool { return s.Mode == SelectNone }

// IsWaypoint reports whether a waypoint index is selected
func (s Selection) IsWaypoint() bool { return s.Mode == SelectWaypoint }

// IsExploration reports whether an exploration target is selected
func (s Selection) IsExploration() bool { return s.Mode == SelectExploration }

func (s Selection) String() string {
	switch s.Mode {
	case SelectWaypoint:
		return fmt.Sprintf("waypoint[%d]", s.Index)
	case SelectExploration:
		return fmt.Sprintf("target[%s]", s.Key)
	default:
		return "none"
	}
}
