// Package ui draws the waypoint session on a tcell screen and provides the naming prompt
package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/wayfinder/engine"
)

const helpLine = "arrows/hjkl move  n name  [ ] cycle  c clear  x delete  e nearest  p pause  q quit"

// Styles used by the view
var (
	styleDefault  = tcell.StyleDefault
	styleHeader   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleMessage  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	stylePrompt   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlue)
)

// View renders session snapshots
type View struct {
	screen  tcell.Screen
	message string
}

// NewView creates a view over an initialized screen
func NewView(screen tcell.Screen) *View {
	return &View{screen: screen}
}

// SetMessage sets the status line, empty clears it
func (v *View) SetMessage(msg string) { v.message = msg }

// Message returns the current status line
func (v *View) Message() string { return v.message }

// Draw renders snap and, when active, the prompt
func (v *View) Draw(snap *engine.Snapshot, prompt *Prompt) {
	v.screen.Clear()
	w, h := v.screen.Size()
	if snap == nil || w <= 0 || h <= 0 {
		v.screen.Show()
		return
	}

	header := fmt.Sprintf("wayfinder  role=%s  tick=%d", snap.Role, snap.Tick)
	if snap.Paused {
		header += "  [paused]"
	}
	v.text(0, 0, w, header, styleHeader)
	v.text(0, 1, w, fmt.Sprintf("observer (%.1f, %.1f)", snap.Observer[0], snap.Observer[1]), styleDefault)
	v.text(0, 2, w, v.targetLine(snap), styleDefault)

	// List occupies the rows between the summary and the footer
	top, bottom := 4, h-3
	if len(snap.Waypoints) == 0 {
		v.text(2, top, w, "no waypoints", styleDim)
	}
	for i, wp := range snap.Waypoints {
		row := top + i
		if row >= bottom {
			v.text(2, row, w, fmt.Sprintf("... %d more", len(snap.Waypoints)-i), styleDim)
			break
		}
		style := styleDefault
		marker := "  "
		if snap.Selected != nil && *snap.Selected == i {
			style, marker = styleSelected, "> "
		}
		v.text(0, row, w, fmt.Sprintf("%s%d. %s (%.1f, %.1f)", marker, i+1, wp.Name, wp.X, wp.Y), style)
	}

	if prompt != nil && prompt.Active() {
		line := fmt.Sprintf("%s: %s_", prompt.Title(), prompt.Text())
		v.fill(h-3, w, stylePrompt)
		v.text(0, h-3, w, line, stylePrompt)
	}
	if v.message != "" {
		v.text(0, h-2, w, v.message, styleMessage)
	}
	v.text(0, h-1, w, helpLine, styleDim)
	v.screen.Show()
}

func (v *View) targetLine(snap *engine.Snapshot) string {
	var line string
	switch {
	case snap.Selected != nil && *snap.Selected < len(snap.Waypoints):
		wp := snap.Waypoints[*snap.Selected]
		line = fmt.Sprintf("target %d: %s", *snap.Selected+1, wp.Name)
	case snap.Target != "":
		line = "exploring: " + snap.Target
	default:
		return "target: none"
	}
	switch {
	case snap.Arrived:
		line += "  (arrived)"
	case snap.NextDue != nil && *snap.NextDue >= snap.Tick:
		line += fmt.Sprintf("  next cue in %d", *snap.NextDue-snap.Tick)
	}
	return line
}

// text draws s from column x, clipped at width
func (v *View) text(x, y, width int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= width {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func (v *View) fill(y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, style)
	}
}
