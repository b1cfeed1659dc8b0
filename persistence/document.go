// Package persistence saves and restores a world's waypoints as a TOML document
//
//	selected_index = 1
//
//	[[waypoint_list]]
//	name = "Home"
//	x = 100.0
//	y = 200.0
package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// ErrNoDocument is returned by Load when no save exists for the world
var ErrNoDocument = errors.New("persistence: no saved document")

// Entry is one saved waypoint, absent fields decode as zero values
type Entry struct {
	Name string  `toml:"name"`
	X    float64 `toml:"x"`
	Y    float64 `toml:"y"`
}

// Document is the saved form of a store
// SelectedIndex is nil unless a waypoint was selected at save time
type Document struct {
	Waypoints     []Entry `toml:"waypoint_list"`
	SelectedIndex *int    `toml:"selected_index,omitempty"`
}

// Snapshot captures the store contents
// Exploration target selections are session-only and not saved
func Snapshot(store *waypoint.Store) Document {
	list := store.Waypoints()
	doc := Document{Waypoints: make([]Entry, len(list))}
	for i, wp := range list {
		doc.Waypoints[i] = Entry{Name: wp.Name, X: float64(wp.Position.X), Y: float64(wp.Position.Y)}
	}
	if sel := store.Selection(); sel.IsWaypoint() {
		idx := sel.Index
		doc.SelectedIndex = &idx
	}
	return doc
}

// Restore clears the store and loads doc into it
// Missing names take the default name and entries with non-finite coordinates are skipped
// The selection follows the saved entry, a selected index past the end clamps to the last waypoint
func Restore(store *waypoint.Store, doc Document) {
	want := -1
	if doc.SelectedIndex != nil && *doc.SelectedIndex >= 0 {
		want = *doc.SelectedIndex
	}
	pastEnd := want >= len(doc.Waypoints)

	list := make([]waypoint.Waypoint, 0, len(doc.Waypoints))
	selected := -1
	for i, e := range doc.Waypoints {
		pos := waypoint.Point{X: float32(e.X), Y: float32(e.Y)}
		if !pos.IsFinite() {
			continue
		}
		if i == want {
			selected = len(list)
		}
		list = append(list, waypoint.Waypoint{Name: e.Name, Position: pos})
	}

	store.ReplaceAll(list, waypoint.NoSelection())

	if store.Len() == 0 {
		return
	}
	if pastEnd {
		selected = store.Len() - 1
	}
	if selected >= 0 {
		store.SelectWaypoint(min(selected, store.Len()-1))
	}
}

// Encode writes doc as TOML
func Encode(w io.Writer, doc Document) error {
	if err := toml.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode save document: %w", err)
	}
	return nil
}

// Decode parses a TOML save document
func Decode(data []byte) (Document, error) {
	var doc Document
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode save document: %w", err)
	}
	return doc, nil
}
