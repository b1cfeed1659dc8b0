package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/naming"
	"github.com/lixenwraith/wayfinder/network"
	"github.com/lixenwraith/wayfinder/protocol"
	"github.com/lixenwraith/wayfinder/replication"
	"github.com/lixenwraith/wayfinder/status"
	"github.com/lixenwraith/wayfinder/waypoint"
)

type fakePlayer struct {
	cues     []guidance.Cue
	arrivals []string
}

func (p *fakePlayer) PlayCue(c guidance.Cue)       { p.cues = append(p.cues, c) }
func (p *fakePlayer) AnnounceArrival(label string) { p.arrivals = append(p.arrivals, label) }

type sent struct {
	peer      replication.PeerID
	broadcast bool
	msg       protocol.Message
}

type fakeSender struct {
	t    *testing.T
	msgs []sent
}

func (f *fakeSender) Send(peer replication.PeerID, payload []byte) bool {
	f.msgs = append(f.msgs, sent{peer: peer, msg: f.decode(payload)})
	return true
}

func (f *fakeSender) BroadcastExcept(except replication.PeerID, payload []byte) {
	f.msgs = append(f.msgs, sent{peer: except, broadcast: true, msg: f.decode(payload)})
}

func (f *fakeSender) decode(payload []byte) protocol.Message {
	m, err := protocol.Decode(payload, protocol.DefaultLimits())
	if err != nil {
		f.t.Fatalf("sent undecodable payload: %v", err)
	}
	return m
}

type fakePrompt struct {
	title, initial string
	onResult       func(naming.Result)
	opens          int
}

func (p *fakePrompt) Open(title, initial string, onResult func(naming.Result)) {
	p.title, p.initial, p.onResult = title, initial, onResult
	p.opens++
}

type fixture struct {
	session *Session
	player  *fakePlayer
	sender  *fakeSender
	prompt  *fakePrompt
	targets *guidance.TargetSet
	events  chan network.Event
	reg     *status.Registry
}

func newFixture(t *testing.T, role replication.Role, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Role = role
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		player:  &fakePlayer{},
		sender:  &fakeSender{t: t},
		prompt:  &fakePrompt{},
		targets: guidance.NewTargetSet(),
		events:  make(chan network.Event, 16),
		reg:     status.NewRegistry(),
	}
	f.session = NewSession(cfg, Deps{
		Sender:   f.sender,
		Events:   f.events,
		Player:   f.player,
		Targets:  f.targets,
		Prompt:   f.prompt,
		Registry: f.reg,
	})
	return f
}

func (f *fixture) run(n int, observer waypoint.Point) {
	for i := 0; i < n; i++ {
		f.session.Tick(observer, false)
	}
}

var origin = waypoint.Point{}

// tiles returns a point n tiles to the right of origin
func tiles(n float32) waypoint.Point { return waypoint.Point{X: n * 16} }

func TestTickClockFreezesWhilePaused(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.run(5, origin)
	for i := 0; i < 7; i++ {
		f.session.Tick(origin, true)
	}
	if got := f.session.Clock().Now(); got != 5 {
		t.Errorf("tick = %d, want 5", got)
	}
	if got := f.session.Clock().PausedTicks(); got != 7 {
		t.Errorf("paused ticks = %d, want 7", got)
	}
}

func TestCueCadence(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("Ten", tiles(10))
	f.session.SelectWaypoint("me", 0)

	f.run(20, origin)
	if len(f.player.cues) != 0 {
		t.Fatalf("cue fired after 20 ticks, delay should be 20")
	}
	f.run(1, origin)
	if len(f.player.cues) != 1 {
		t.Fatalf("cues = %d after due tick, want 1", len(f.player.cues))
	}
	cue := f.player.cues[0]
	if cue.Pitch != 0 || cue.Volume != 0.35 || cue.Position != tiles(10) {
		t.Errorf("cue = %+v", cue)
	}
	if f.reg.Counter("guidance.cues").Load() != 1 {
		t.Error("cue counter not incremented")
	}
}

func TestArrivalAnnouncedOncePerApproach(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("Camp", tiles(0))
	f.session.SelectWaypoint("me", 0)

	f.run(1, tiles(5))
	f.run(3, tiles(3))
	if len(f.player.arrivals) != 1 || f.player.arrivals[0] != "Camp" {
		t.Fatalf("arrivals = %v, want one Camp", f.player.arrivals)
	}

	f.run(1, tiles(6))
	f.run(2, tiles(3.5))
	if len(f.player.arrivals) != 2 {
		t.Errorf("arrivals = %d after second approach, want 2", len(f.player.arrivals))
	}
}

func TestPauseDiscardsStaleSchedule(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("Ten", tiles(10))
	f.session.SelectWaypoint("me", 0)

	f.run(1, origin) // schedules at tick 20
	for i := 0; i < 50; i++ {
		f.session.Tick(origin, true)
	}
	if len(f.player.cues) != 0 {
		t.Fatal("cue fired while paused")
	}

	// Resume at tick 1 reschedules for tick 21
	f.run(20, origin)
	if len(f.player.cues) != 0 {
		t.Fatal("stale schedule fired after resume")
	}
	f.run(1, origin)
	if len(f.player.cues) != 1 {
		t.Errorf("cues = %d, want 1", len(f.player.cues))
	}
}

func TestSelectionChangeResetsSchedule(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	store := f.session.Store()
	store.Add("Near", tiles(10))
	store.Add("Far", tiles(20))
	f.session.SelectWaypoint("me", 1)

	f.run(1, origin)
	if due, _ := f.session.Scheduler().NextDue(); due != 40 {
		t.Fatalf("due = %d, want 40", due)
	}

	f.session.SelectWaypoint("me", 0)
	f.run(1, origin)
	if due, _ := f.session.Scheduler().NextDue(); due != 21 {
		t.Errorf("due after reselect = %d, want 21", due)
	}
}

func TestNamingSubmitCreatesAndSelects(t *testing.T) {
	f := newFixture(t, replication.RoleHost)
	anchor := waypoint.Point{X: 32, Y: -48}
	f.session.Tick(anchor, false)

	if !f.session.BeginNaming("me") {
		t.Fatal("BeginNaming failed")
	}
	if f.session.BeginNaming("me") {
		t.Error("second BeginNaming opened another session")
	}
	if f.prompt.opens != 1 || f.prompt.initial != "Waypoint 1" {
		t.Fatalf("prompt opens=%d initial=%q", f.prompt.opens, f.prompt.initial)
	}

	if got := f.session.Cycle("me", 1); got.Status != StatusSuppressed {
		t.Errorf("owner cycle status = %v, want suppressed", got.Status)
	}
	if got := f.session.Cycle("other", 1); got.Status != StatusUnavailable {
		t.Errorf("other actor cycle status = %v, want unavailable", got.Status)
	}

	// Observer moves while typing; the waypoint lands at the anchor
	f.session.Tick(origin, false)
	f.prompt.onResult(naming.Result{Text: "  Cave "})

	store := f.session.Store()
	wp, ok := store.Selected()
	if !ok || wp.Name != "Cave" || wp.Position != anchor {
		t.Fatalf("selected = %+v,%v", wp, ok)
	}
	if f.session.Capture().Active() {
		t.Error("capture still active")
	}
	if len(f.sender.msgs) != 1 || !f.sender.msgs[0].broadcast {
		t.Fatalf("sent = %+v, want one broadcast", f.sender.msgs)
	}
	if c, ok := f.sender.msgs[0].msg.(protocol.Created); !ok || c.Name != "Cave" || c.Position != anchor {
		t.Errorf("propagated %+v", f.sender.msgs[0].msg)
	}
}

func TestNamingCancelLeavesState(t *testing.T) {
	f := newFixture(t, replication.RoleHost)
	f.session.Store().Add("Home", tiles(10))
	f.session.SelectWaypoint("me", 0)
	f.run(1, origin)

	f.session.BeginNaming("me")
	f.prompt.onResult(naming.Result{Text: "half typed", Canceled: true})

	if f.session.Store().Len() != 1 {
		t.Errorf("store len = %d, want 1", f.session.Store().Len())
	}
	if f.session.Store().Selection() != waypoint.WaypointSelection(0) {
		t.Errorf("selection = %v", f.session.Store().Selection())
	}
	if len(f.sender.msgs) != 0 {
		t.Errorf("cancel propagated %d messages", len(f.sender.msgs))
	}

	// Guidance recomputes from the unchanged selection
	f.run(1, origin)
	if due, ok := f.session.Scheduler().NextDue(); !ok || due != 21 {
		t.Errorf("due = %d,%v want 21,true", due, ok)
	}
}

func TestEmptyNameUsesDefault(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("First", origin)
	f.session.BeginNaming("me")
	f.prompt.onResult(naming.Result{Text: "   "})

	if wp, _ := f.session.Store().At(1); wp.Name != "Waypoint 2" {
		t.Errorf("name = %q, want Waypoint 2", wp.Name)
	}
}

func TestCycleUnavailableOnEmpty(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	res := f.session.Cycle("me", 1)
	if res.Status != StatusUnavailable || !res.Selection.IsNone() {
		t.Errorf("cycle = %+v", res)
	}
	if res.Status.String() != "no waypoints available" {
		t.Errorf("status text = %q", res.Status.String())
	}
}

func TestHostSyncsNewPeer(t *testing.T) {
	f := newFixture(t, replication.RoleHost)
	f.session.Store().Add("Home", tiles(1))
	if f.session.Coordinator().Role() != replication.RoleHost {
		t.Fatalf("coordinator role = %v, want host", f.session.Coordinator().Role())
	}

	f.events <- network.Event{Kind: network.EventConnect, Peer: 4}
	f.session.Tick(origin, false)

	if len(f.sender.msgs) != 1 || f.sender.msgs[0].peer != 4 || f.sender.msgs[0].broadcast {
		t.Fatalf("sent = %+v, want one direct send to peer 4", f.sender.msgs)
	}
	fs, ok := f.sender.msgs[0].msg.(protocol.FullSync)
	if !ok || len(fs.Waypoints) != 1 {
		t.Errorf("sent %+v, want full sync of one waypoint", f.sender.msgs[0].msg)
	}
}

func TestNetworkAppliedWhilePaused(t *testing.T) {
	f := newFixture(t, replication.RoleReplica)
	f.events <- network.Event{Kind: network.EventPayload, Peer: 1, Payload: protocol.Encode(protocol.Created{Name: "Remote"})}
	f.session.Tick(origin, true)

	if f.session.Store().Len() != 1 {
		t.Errorf("store len = %d, want 1", f.session.Store().Len())
	}
}

func fullSync(sel waypoint.Selection) []byte {
	return protocol.Encode(protocol.FullSync{
		Waypoints: []waypoint.Waypoint{{Name: "Ten", Position: tiles(10)}},
		Selection: sel,
	})
}

func TestFullSyncAnnounce(t *testing.T) {
	tests := []struct {
		name     string
		announce bool
		sel      waypoint.Selection
		want     int
	}{
		{"announce selected", true, waypoint.WaypointSelection(0), 1},
		{"announce off", false, waypoint.WaypointSelection(0), 0},
		{"nothing selected", true, waypoint.NoSelection(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, replication.RoleReplica, func(c *Config) { c.AnnounceOnSync = tt.announce })
			f.events <- network.Event{Kind: network.EventPayload, Peer: 1, Payload: fullSync(tt.sel)}
			f.session.Tick(origin, false)
			if len(f.player.cues) != tt.want {
				t.Errorf("cues on sync tick = %d, want %d", len(f.player.cues), tt.want)
			}
		})
	}
}

func TestFullSyncFailureClearsGuidance(t *testing.T) {
	f := newFixture(t, replication.RoleReplica)
	f.events <- network.Event{Kind: network.EventPayload, Peer: 1, Payload: fullSync(waypoint.WaypointSelection(0))}
	f.session.Tick(origin, false)

	bad := fullSync(waypoint.WaypointSelection(0))
	f.events <- network.Event{Kind: network.EventPayload, Peer: 1, Payload: bad[:len(bad)-3]}
	f.session.Tick(origin, false)

	if f.session.Store().Len() != 0 || !f.session.Store().Selection().IsNone() {
		t.Error("truncated full sync left state behind")
	}
	if _, ok := f.session.Scheduler().NextDue(); ok {
		t.Error("schedule survived a cleared store")
	}
}

func TestExplorationTargetGuidance(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.targets.Replace([]guidance.Target{
		{Key: "ruin", Label: "Old ruin", Position: waypoint.Point{Y: -160}},
		{Key: "well", Label: "Well", Position: waypoint.Point{X: 800}},
	})

	if st := f.session.SelectExplorationTarget("me", "missing"); st != StatusUnavailable {
		t.Errorf("unknown key status = %v", st)
	}
	if st := f.session.SelectExplorationTarget("me", "ruin"); st != StatusOK {
		t.Fatalf("status = %v", st)
	}
	f.run(21, origin)
	if len(f.player.cues) != 1 || f.player.cues[0].Pitch != 0.5 {
		t.Fatalf("cues = %+v, want one cue with pitch 0.5", f.player.cues)
	}

	// Target vanishes from the source: guidance stops without clearing the selection
	f.targets.Replace(nil)
	f.run(1, origin)
	if _, ok := f.session.Scheduler().NextDue(); ok {
		t.Error("schedule kept for a vanished target")
	}
	if !f.session.Store().Selection().IsExploration() {
		t.Error("selection dropped")
	}
}

func TestSelectNearestTarget(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	if _, st := f.session.SelectNearestTarget("me"); st != StatusUnavailable {
		t.Errorf("empty source status = %v", st)
	}

	f.targets.Replace([]guidance.Target{
		{Key: "far", Position: tiles(30)},
		{Key: "near", Position: tiles(-5)},
	})
	got, st := f.session.SelectNearestTarget("me")
	if st != StatusOK || got.Key != "near" || got.Distance != 5 {
		t.Errorf("nearest = %+v,%v", got, st)
	}
	if f.session.Store().Selection() != waypoint.ExplorationSelection("near") {
		t.Errorf("selection = %v", f.session.Store().Selection())
	}
}

func TestDeleteSelected(t *testing.T) {
	f := newFixture(t, replication.RoleReplica)
	if st := f.session.DeleteSelected("me"); st != StatusUnavailable {
		t.Errorf("no selection status = %v", st)
	}

	f.session.Store().Add("a", origin)
	f.session.Store().Add("b", origin)
	f.session.SelectWaypoint("me", 1)
	if st := f.session.DeleteSelected("me"); st != StatusOK {
		t.Fatalf("status = %v", st)
	}
	if f.session.Store().Len() != 1 || !f.session.Store().Selection().IsNone() {
		t.Errorf("after delete len=%d sel=%v", f.session.Store().Len(), f.session.Store().Selection())
	}
	if d, ok := f.sender.msgs[0].msg.(protocol.Deleted); !ok || d.Index != 1 {
		t.Errorf("propagated %+v", f.sender.msgs[0].msg)
	}
}

func TestNonFiniteObserverDisablesGuidance(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("a", tiles(10))
	f.session.SelectWaypoint("me", 0)

	f.run(40, waypoint.Point{X: float32(math.NaN())})
	if len(f.player.cues) != 0 {
		t.Error("cue fired for a non-finite observer")
	}
}

func TestCloseClearsState(t *testing.T) {
	f := newFixture(t, replication.RoleNone)
	f.session.Store().Add("a", origin)
	f.session.BeginNaming("me")
	f.session.Close()

	if f.session.Store().Len() != 0 || f.session.Capture().Active() {
		t.Error("Close left state behind")
	}
	if ev := f.session.Tick(origin, false); ev.Kind != guidance.EventNone {
		t.Error("closed session produced an event")
	}
	if !f.session.Closed() || !f.session.Snapshot().Closed {
		t.Error("session not marked closed")
	}
}

func TestSnapshotJSON(t *testing.T) {
	f := newFixture(t, replication.RoleHost)
	f.session.Store().Add("Home", waypoint.Point{X: 1.5, Y: 2})
	f.session.SelectWaypoint("me", 0)
	f.run(1, tiles(10))

	data, err := json.Marshal(f.session.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["role"] != "host" || got["selected_index"] != float64(0) {
		t.Errorf("snapshot = %s", data)
	}
	wps := got["waypoints"].([]any)
	if len(wps) != 1 || wps[0].(map[string]any)["name"] != "Home" {
		t.Errorf("waypoints = %v", wps)
	}
}

func TestTickClock(t *testing.T) {
	var c TickClock
	if tick, ok := c.Advance(); tick != 0 || !ok {
		t.Errorf("first advance = %d,%v", tick, ok)
	}
	if !c.Pause() || c.Pause() {
		t.Error("Pause should report the state change once")
	}
	if _, ok := c.Advance(); ok {
		t.Error("advanced while paused")
	}
	if !c.Resume() || c.Resume() {
		t.Error("Resume should report the state change once")
	}
	if tick, _ := c.Advance(); tick != 1 || c.Now() != 2 {
		t.Errorf("advance after resume = %d, now %d", tick, c.Now())
	}
}
