package guidance

import (
	"math"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// Params tunes cue cadence and arrival detection
// Defaults reproduce the accessibility cue design; see DefaultParams
type Params struct {
	TileSize     float64 // World units per tile
	ArrivalTiles float64 // Distance at or below which the target counts as reached
	DelayPerTile float64 // Ticks of delay per tile of distance
	MinDelay     uint64  // Fastest cadence in ticks
	MaxDelay     uint64  // Slowest cadence in ticks
	PitchSpan    float64 // Vertical world distance mapped to a pitch of 1.0
	PitchLimit   float64 // Absolute pitch bound
	BaseVolume   float64
	VolumeGain   float64 // Added volume per unit of absolute pitch
	MaxVolume    float64
}

// DefaultParams returns the standard cue tuning
func DefaultParams() Params {
	return Params{
		TileSize:     16,
		ArrivalTiles: 4,
		DelayPerTile: 2,
		MinDelay:     12,
		MaxDelay:     70,
		PitchSpan:    320,
		PitchLimit:   0.6,
		BaseVolume:   0.35,
		VolumeGain:   0.2,
		MaxVolume:    0.75,
	}
}

// Cue is a directional audio event
type Cue struct {
	Position waypoint.Point // Target position the cue points at
	Pitch    float64        // [-PitchLimit, PitchLimit], positive means the target is above
	Volume   float64        // [0, MaxVolume]
	Distance float64        // Tiles from observer to target
	Pan      float64        // [-1, 1], positive means the target is to the right
}

// EventKind identifies what a scheduler update produced
type EventKind uint8

const (
	EventNone EventKind = iota
	EventCue
	EventArrived
)

// Event is the outcome of one scheduler update
type Event struct {
	Kind EventKind
	Cue  Cue
}

// Scheduler decides when the next cue fires and whether arrival occurred
// Holds only derived state; Reset recomputes it from scratch
type Scheduler struct {
	params Params

	nextDue   uint64
	scheduled bool
	arrived   bool
	frozen    bool
}

// NewScheduler creates a scheduler with the given tuning
func NewScheduler(p Params) *Scheduler {
	return &Scheduler{params: p}
}

// Params returns the active tuning
func (s *Scheduler) Params() Params { return s.params }

// NextDue returns the tick of the pending cue, if any
func (s *Scheduler) NextDue() (uint64, bool) {
	return s.nextDue, s.scheduled
}

// Arrived reports whether arrival was announced for the current approach
func (s *Scheduler) Arrived() bool { return s.arrived }

// Frozen reports whether updates are suspended
func (s *Scheduler) Frozen() bool { return s.frozen }

// Reset drops the pending cue and re-arms arrival, used when the selection changes
func (s *Scheduler) Reset() {
	s.scheduled = false
	s.nextDue = 0
	s.arrived = false
}

// Invalidate drops the pending cue but keeps arrival state, used when the collection changes
// under an unchanged selection
func (s *Scheduler) Invalidate() {
	s.scheduled = false
	s.nextDue = 0
}

// TriggerAt schedules the next cue for tick, replacing any pending one
func (s *Scheduler) TriggerAt(tick uint64) {
	s.nextDue = tick
	s.scheduled = true
}

// Freeze suspends scheduling while the game is paused or outside gameplay
func (s *Scheduler) Freeze() {
	s.frozen = true
}

// Resume leaves the frozen state
// The pending cue is discarded so a stale schedule never fires against a changed world,
// and arrival re-arms when nothing is selected
func (s *Scheduler) Resume(hasSelection bool) {
	if !s.frozen {
		return
	}
	s.frozen = false
	s.Invalidate()
	if !hasSelection {
		s.arrived = false
	}
}

// Update advances the schedule for tick now
// A nil target disables scheduling
func (s *Scheduler) Update(now uint64, observer waypoint.Point, target *waypoint.Point) Event {
	if s.frozen {
		return Event{}
	}
	if target == nil {
		s.Invalidate()
		return Event{}
	}

	tiles := observer.Distance(*target) / s.params.TileSize

	if tiles <= s.params.ArrivalTiles {
		s.Invalidate()
		if s.arrived {
			return Event{}
		}
		s.arrived = true
		return Event{Kind: EventArrived, Cue: s.cue(observer, *target, tiles)}
	}

	// Back outside the threshold: the next approach may announce again
	s.arrived = false

	if !s.scheduled {
		s.TriggerAt(now + s.Delay(tiles))
		return Event{}
	}
	if now < s.nextDue {
		return Event{}
	}

	s.TriggerAt(now + s.Delay(tiles))
	return Event{Kind: EventCue, Cue: s.cue(observer, *target, tiles)}
}

// Delay returns the cue interval in ticks for a distance in tiles
func (s *Scheduler) Delay(tiles float64) uint64 {
	raw := math.Round(tiles * s.params.DelayPerTile)
	lo, hi := float64(s.params.MinDelay), float64(s.params.MaxDelay)
	if raw < lo || math.IsNaN(raw) {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	return uint64(raw)
}

// Pitch maps the vertical offset from observer to target onto a pitch
// Screen y grows downward, so a target above the observer yields positive pitch
func (s *Scheduler) Pitch(observer, target waypoint.Point) float64 {
	dy := float64(target.Y) - float64(observer.Y)
	return clamp(-dy/s.params.PitchSpan, -s.params.PitchLimit, s.params.PitchLimit)
}

// Pan maps the horizontal offset onto a stereo position over the same span as pitch
func (s *Scheduler) Pan(observer, target waypoint.Point) float64 {
	dx := float64(target.X) - float64(observer.X)
	return clamp(dx/s.params.PitchSpan, -1, 1)
}

// Volume derives cue volume from pitch
func (s *Scheduler) Volume(pitch float64) float64 {
	return clamp(s.params.BaseVolume+math.Abs(pitch)*s.params.VolumeGain, 0, s.params.MaxVolume)
}

func (s *Scheduler) cue(observer, target waypoint.Point, tiles float64) Cue {
	pitch := s.Pitch(observer, target)
	return Cue{
		Position: target,
		Pitch:    pitch,
		Volume:   s.Volume(pitch),
		Distance: tiles,
		Pan:      s.Pan(observer, target),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
