package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/engine"
	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/ui"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// app binds terminal input to one session; every method runs on the main loop goroutine
type app struct {
	session *engine.Session
	view    *ui.View
	prompt  *ui.Prompt
	keys    *ui.KeyTable
	actor   string
	step    float32 // World units per movement key
	logger  *zap.Logger

	observer waypoint.Point
	paused   bool
}

func newApp(session *engine.Session, view *ui.View, prompt *ui.Prompt, actor string, step float32, logger *zap.Logger) *app {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &app{
		session: session,
		view:    view,
		prompt:  prompt,
		keys:    ui.DefaultKeyTable(),
		actor:   actor,
		step:    step,
		logger:  logger,
	}
}

// handleKey applies one key press, returns false on quit
func (a *app) handleKey(ev *tcell.EventKey) bool {
	if a.prompt.Active() {
		before := a.session.Store().Len()
		a.prompt.HandleKey(ev)
		if !a.prompt.Active() {
			a.namingClosed(before)
		}
		return true
	}

	intent := a.keys.Resolve(ev)
	store := a.session.Store()

	switch intent.Type {
	case ui.IntentNone:
		return true
	case ui.IntentQuit:
		return false
	case ui.IntentMove:
		a.observer.X += float32(intent.DX) * a.step
		a.observer.Y += float32(intent.DY) * a.step
		return true
	case ui.IntentPause:
		a.paused = !a.paused
		if a.paused {
			a.view.SetMessage("paused")
		} else {
			a.view.SetMessage("resumed")
		}
		return true
	case ui.IntentName:
		if !a.session.BeginNaming(a.actor) {
			a.view.SetMessage("naming in progress")
		}
		return true
	case ui.IntentCycleNext, ui.IntentCyclePrev:
		dir := 1
		if intent.Type == ui.IntentCyclePrev {
			dir = -1
		}
		res := a.session.Cycle(a.actor, dir)
		if res.Status != engine.StatusOK {
			a.view.SetMessage(res.Status.String())
			return true
		}
		a.selected(res.Selection.Index)
	case ui.IntentSelect:
		if st := a.session.SelectWaypoint(a.actor, intent.Index); st != engine.StatusOK {
			a.view.SetMessage(st.String())
			return true
		}
		a.selected(intent.Index)
	case ui.IntentClear:
		a.report(a.session.ClearSelection(a.actor), "guidance off")
	case ui.IntentDelete:
		wp, _ := store.Selected()
		a.report(a.session.DeleteSelected(a.actor), "deleted "+wp.Name)
	case ui.IntentNearest:
		t, st := a.session.SelectNearestTarget(a.actor)
		a.report(st, fmt.Sprintf("exploring %s (%.1f tiles)", targetLabel(t), t.Distance))
	case ui.IntentResync:
		a.session.Resync()
		a.view.SetMessage("full sync sent")
	}

	a.logger.Debug("command", zap.Stringer("intent", intent.Type), zap.Stringer("selection", store.Selection()))
	return true
}

// tick advances the session one step with the current observer
func (a *app) tick() {
	ev := a.session.Tick(a.observer, a.paused)
	if ev.Kind == guidance.EventArrived {
		a.view.SetMessage("arrived")
		if wp, ok := a.session.Store().Selected(); ok {
			a.view.SetMessage("arrived at " + wp.Name)
		}
	}
}

func (a *app) draw() {
	a.view.Draw(a.session.Snapshot(), a.prompt)
}

func (a *app) namingClosed(before int) {
	store := a.session.Store()
	if store.Len() > before {
		wp, _ := store.At(store.Len() - 1)
		a.view.SetMessage(fmt.Sprintf("created %d: %s", store.Len(), wp.Name))
		return
	}
	a.view.SetMessage("naming canceled")
}

func (a *app) selected(index int) {
	if wp, ok := a.session.Store().At(index); ok {
		a.view.SetMessage(fmt.Sprintf("selected %d: %s", index+1, wp.Name))
	}
}

func (a *app) report(st engine.Status, ok string) {
	if st == engine.StatusOK {
		a.view.SetMessage(ok)
		return
	}
	a.view.SetMessage(st.String())
}

func targetLabel(t guidance.Target) string {
	if t.Label != "" {
		return t.Label
	}
	return t.Key
}

// demoTargets is a fixed exploration source around the origin
func demoTargets() []guidance.Target {
	return []guidance.Target{
		{Key: "well", Label: "Old well", Position: waypoint.Point{X: 160, Y: 0}},
		{Key: "ruin", Label: "Ruined tower", Position: waypoint.Point{X: -320, Y: -480}},
		{Key: "shrine", Label: "Shrine", Position: waypoint.Point{X: 640, Y: 960}},
	}
}
