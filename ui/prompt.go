package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/wayfinder/naming"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// Prompt is a single-line modal text input implementing naming.Prompt
// Keys reach it through HandleKey from the terminal loop, so results are delivered on that goroutine
type Prompt struct {
	title    string
	text     []rune
	onResult func(naming.Result)
}

// NewPrompt creates a closed prompt
func NewPrompt() *Prompt {
	return &Prompt{}
}

// Open implements naming.Prompt
// Opening over an active prompt cancels the previous request first
func (p *Prompt) Open(title, initial string, onResult func(naming.Result)) {
	if p.onResult != nil {
		p.finish(true)
	}
	p.title = title
	p.text = []rune(initial)
	p.onResult = onResult
}

// Active reports whether the prompt is capturing keys
func (p *Prompt) Active() bool { return p.onResult != nil }

// Title returns the prompt title
func (p *Prompt) Title() string { return p.title }

// Text returns the text typed so far
func (p *Prompt) Text() string { return string(p.text) }

// HandleKey consumes ev while open and reports whether it did
func (p *Prompt) HandleKey(ev *tcell.EventKey) bool {
	if !p.Active() {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEnter:
		p.finish(false)
	case tcell.KeyEscape, tcell.KeyCtrlC:
		p.finish(true)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(p.text); n > 0 {
			p.text = p.text[:n-1]
		}
	case tcell.KeyCtrlU:
		p.text = p.text[:0]
	case tcell.KeyRune:
		if len(p.text) < waypoint.MaxNameLength {
			p.text = append(p.text, ev.Rune())
		}
	}
	// Every key is swallowed while open so gameplay bindings never fire mid-name
	return true
}

func (p *Prompt) finish(canceled bool) {
	cb := p.onResult
	result := naming.Result{Text: string(p.text), Canceled: canceled}
	p.onResult = nil
	p.title = ""
	p.text = nil
	cb(result)
}
