package ui

import "github.com/gdamore/tcell/v2"

// IntentType names what a key asks the session to do
type IntentType uint8

const (
	IntentNone IntentType = iota
	IntentMove
	IntentName
	IntentCycleNext
	IntentCyclePrev
	IntentSelect
	IntentClear
	IntentDelete
	IntentNearest
	IntentPause
	IntentResync
	IntentQuit
)

var intentNames = [...]string{
	IntentNone:      "none",
	IntentMove:      "move",
	IntentName:      "name",
	IntentCycleNext: "cycle_next",
	IntentCyclePrev: "cycle_prev",
	IntentSelect:    "select",
	IntentClear:     "clear",
	IntentDelete:    "delete",
	IntentNearest:   "nearest",
	IntentPause:     "pause",
	IntentResync:    "resync",
	IntentQuit:      "quit",
}

func (t IntentType) String() string {
	if int(t) < len(intentNames) {
		return intentNames[t]
	}
	return "unknown"
}

// Intent is a resolved key binding
// DX and DY are in tiles for IntentMove; Index is zero-based for IntentSelect
type Intent struct {
	Type   IntentType
	DX, DY int
	Index  int
}

// KeyTable maps keys to intents
type KeyTable struct {
	// Special keys (Ctrl+*, arrows)
	SpecialKeys map[tcell.Key]Intent

	// Plain rune bindings
	Runes map[rune]Intent
}

// DefaultKeyTable returns the default key bindings
func DefaultKeyTable() *KeyTable {
	kt := &KeyTable{
		SpecialKeys: map[tcell.Key]Intent{
			tcell.KeyUp:    {Type: IntentMove, DY: -1},
			tcell.KeyDown:  {Type: IntentMove, DY: 1},
			tcell.KeyLeft:  {Type: IntentMove, DX: -1},
			tcell.KeyRight: {Type: IntentMove, DX: 1},
			tcell.KeyCtrlC: {Type: IntentQuit},
			tcell.KeyCtrlQ: {Type: IntentQuit},
		},
		Runes: map[rune]Intent{
			'k': {Type: IntentMove, DY: -1},
			'j': {Type: IntentMove, DY: 1},
			'h': {Type: IntentMove, DX: -1},
			'l': {Type: IntentMove, DX: 1},
			'n': {Type: IntentName},
			']': {Type: IntentCycleNext},
			'[': {Type: IntentCyclePrev},
			'c': {Type: IntentClear},
			'x': {Type: IntentDelete},
			'e': {Type: IntentNearest},
			'p': {Type: IntentPause},
			'r': {Type: IntentResync},
			'q': {Type: IntentQuit},
		},
	}
	for d := '1'; d <= '9'; d++ {
		kt.Runes[d] = Intent{Type: IntentSelect, Index: int(d - '1')}
	}
	return kt
}

// Resolve returns the intent bound to ev, IntentNone when unbound
func (kt *KeyTable) Resolve(ev *tcell.EventKey) Intent {
	if ev.Key() == tcell.KeyRune {
		return kt.Runes[ev.Rune()]
	}
	return kt.SpecialKeys[ev.Key()]
}
