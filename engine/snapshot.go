package engine

import "github.com/lixenwraith/wayfinder/waypoint"

// WaypointView is the JSON form of one waypoint
type WaypointView struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
}

// Snapshot is an immutable view of session state published after each tick
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	Paused    bool           `json:"paused"`
	Role      string         `json:"role"`
	Observer  [2]float32     `json:"observer"`
	Waypoints []WaypointView `json:"waypoints"`
	Selection string         `json:"selection"`
	Selected  *int           `json:"selected_index,omitempty"`
	Target    string         `json:"target,omitempty"`
	Naming    bool           `json:"naming"`
	NextDue   *uint64        `json:"next_due,omitempty"`
	Arrived   bool           `json:"arrived"`
	Closed    bool           `json:"closed"`
}

// Snapshot returns the latest published view, safe from any goroutine
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Session) publish() {
	list := s.store.Waypoints()
	views := make([]WaypointView, len(list))
	for i, wp := range list {
		views[i] = WaypointView{Index: i, Name: wp.Name, X: wp.Position.X, Y: wp.Position.Y}
	}

	sel := s.store.Selection()
	snap := &Snapshot{
		Tick:      s.clock.Now(),
		Paused:    s.clock.IsPaused(),
		Role:      s.coord.Role().String(),
		Observer:  [2]float32{s.observer.X, s.observer.Y},
		Waypoints: views,
		Selection: sel.Mode.String(),
		Naming:    s.capture.Active(),
		Arrived:   s.scheduler.Arrived(),
		Closed:    s.closed,
	}
	switch sel.Mode {
	case waypoint.SelectWaypoint:
		idx := sel.Index
		snap.Selected = &idx
	case waypoint.SelectExploration:
		snap.Target = sel.Key
	}
	if due, ok := s.scheduler.NextDue(); ok {
		snap.NextDue = &due
	}
	s.snapshot.Store(snap)
}
