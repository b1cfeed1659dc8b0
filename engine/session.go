// Package engine runs one world session: the single writer that owns waypoint state,
// guidance scheduling, naming and replication, advanced by Tick
package engine

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/naming"
	"github.com/lixenwraith/wayfinder/network"
	"github.com/lixenwraith/wayfinder/protocol"
	"github.com/lixenwraith/wayfinder/replication"
	"github.com/lixenwraith/wayfinder/status"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// Config tunes a session
type Config struct {
	Role     replication.Role
	Capacity int
	Limits   protocol.Limits
	Guidance guidance.Params
	// AnnounceOnSync fires a cue immediately after a FullSync lands on a selected waypoint
	AnnounceOnSync bool
}

// DefaultConfig returns a non-participating session with stock tuning
func DefaultConfig() Config {
	return Config{
		Role:           replication.RoleNone,
		Capacity:       waypoint.DefaultCapacity,
		Limits:         protocol.DefaultLimits(),
		Guidance:       guidance.DefaultParams(),
		AnnounceOnSync: true,
	}
}

// Deps are the collaborators a session consumes, any may be nil
type Deps struct {
	Sender   replication.Sender
	Events   <-chan network.Event
	Player   guidance.TonePlayer
	Targets  guidance.TargetSource
	Prompt   naming.Prompt
	Logger   *zap.Logger
	Registry *status.Registry
}

// Session owns the state of one loaded world
// Every method must be called from the tick loop goroutine except Snapshot
type Session struct {
	config Config

	store     *waypoint.Store
	scheduler *guidance.Scheduler
	capture   *naming.Capture
	coord     *replication.Coordinator
	clock     TickClock

	player  guidance.TonePlayer
	targets guidance.TargetSource
	events  <-chan network.Event
	logger  *zap.Logger

	observer     waypoint.Point
	seenRevision uint64
	seenSelRev   uint64
	announce     bool
	closed       bool

	snapshot atomic.Pointer[Snapshot]

	statCues     *atomic.Int64
	statArrivals *atomic.Int64
	statTicks    *atomic.Int64
}

// NewSession creates a session with an empty store
func NewSession(cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	player := deps.Player
	if player == nil {
		player = guidance.SilentPlayer{}
	}
	targets := deps.Targets
	if targets == nil {
		targets = guidance.NewTargetSet()
	}

	s := &Session{
		config:       cfg,
		store:        waypoint.NewStore(cfg.Capacity),
		scheduler:    guidance.NewScheduler(cfg.Guidance),
		player:       player,
		targets:      targets,
		events:       deps.Events,
		logger:       logger,
		statCues:     deps.Registry.Counter("guidance.cues"),
		statArrivals: deps.Registry.Counter("guidance.arrivals"),
		statTicks:    deps.Registry.Counter("engine.ticks"),
	}
	s.coord = replication.NewCoordinator(cfg.Role, s.store, deps.Sender, cfg.Limits, logger.Named("sync"), deps.Registry)
	s.capture = naming.NewCapture(deps.Prompt, s, logger.Named("naming"))
	s.seenRevision = s.store.Revision()
	s.seenSelRev = s.store.SelectionRevision()
	s.publish()
	return s
}

// Store exposes the waypoint store for load, save and rendering
func (s *Session) Store() *waypoint.Store { return s.store }

// Scheduler exposes guidance state for rendering
func (s *Session) Scheduler() *guidance.Scheduler { return s.scheduler }

// Capture exposes the naming state machine
func (s *Session) Capture() *naming.Capture { return s.capture }

// Coordinator exposes the replication role
func (s *Session) Coordinator() *replication.Coordinator { return s.coord }

// Clock exposes the tick clock
func (s *Session) Clock() *TickClock { return &s.clock }

// Observer returns the position passed to the last Tick
func (s *Session) Observer() waypoint.Point { return s.observer }

// Tick runs one update step
// Network input is applied even while paused; guidance only advances while running
func (s *Session) Tick(observer waypoint.Point, paused bool) guidance.Event {
	if s.closed {
		return guidance.Event{}
	}
	s.observer = observer
	s.drainNetwork()

	if paused {
		s.clock.Pause()
		s.scheduler.Freeze()
		s.clock.Advance()
		s.publish()
		return guidance.Event{}
	}
	if s.clock.Resume() {
		s.scheduler.Resume(!s.store.Selection().IsNone())
	}

	now, _ := s.clock.Advance()
	s.statTicks.Add(1)
	s.syncSchedule()

	if s.announce {
		s.announce = false
		if s.store.Selection().IsWaypoint() {
			s.scheduler.TriggerAt(now)
		}
	}

	target, label := s.resolveTarget()
	if !observer.IsFinite() {
		target = nil
	}

	ev := s.scheduler.Update(now, observer, target)
	switch ev.Kind {
	case guidance.EventCue:
		s.statCues.Add(1)
		s.player.PlayCue(ev.Cue)
	case guidance.EventArrived:
		s.statArrivals.Add(1)
		s.player.AnnounceArrival(label)
	}

	s.publish()
	return ev
}

// syncSchedule drops stale schedules after mutations made since the last running tick
func (s *Session) syncSchedule() {
	rev, selRev := s.store.Revision(), s.store.SelectionRevision()
	switch {
	case selRev != s.seenSelRev:
		s.scheduler.Reset()
	case rev != s.seenRevision:
		s.scheduler.Invalidate()
	}
	s.seenRevision, s.seenSelRev = rev, selRev
}

// resolveTarget returns the selected position and its spoken label
func (s *Session) resolveTarget() (*waypoint.Point, string) {
	sel := s.store.Selection()
	switch sel.Mode {
	case waypoint.SelectWaypoint:
		wp, ok := s.store.Selected()
		if !ok {
			return nil, ""
		}
		return &wp.Position, wp.Name
	case waypoint.SelectExploration:
		t, ok := s.targets.Lookup(sel.Key)
		if !ok || !t.Position.IsFinite() {
			return nil, ""
		}
		return &t.Position, t.Label
	default:
		return nil, ""
	}
}

func (s *Session) drainNetwork() {
	if s.events == nil {
		return
	}
	for {
		select {
		case ev := <-s.events:
			s.handleNetwork(ev)
		default:
			return
		}
	}
}

func (s *Session) handleNetwork(ev network.Event) {
	switch ev.Kind {
	case network.EventConnect:
		if s.coord.Role() == replication.RoleHost {
			if !s.coord.SyncTo(ev.Peer) {
				s.logger.Warn("initial sync not queued", zap.Uint32("peer", uint32(ev.Peer)))
			}
		}
	case network.EventDisconnect:
		s.logger.Debug("peer left", zap.Uint32("peer", uint32(ev.Peer)))
	case network.EventPayload:
		out := s.coord.Handle(ev.Peer, ev.Payload)
		if out.Kind == protocol.KindFullSync && out.Applied && s.config.AnnounceOnSync {
			s.announce = true
		}
	}
}

// Resync broadcasts a FullSync to every replica, host only
func (s *Session) Resync() {
	s.coord.BroadcastSync()
}

// Close ends the session and clears its state
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.capture.Cancel("")
	s.store.Clear()
	s.scheduler.Reset()
	s.closed = true
	s.publish()
}

// Closed reports whether Close was called
func (s *Session) Closed() bool { return s.closed }
