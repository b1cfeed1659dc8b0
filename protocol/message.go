// Package protocol defines the waypoint synchronization wire format
//
// Every message is a kind tag byte followed by a kind-specific body, little-endian:
//
//	FullSync: [count:i32] count*([name:str][x:f32][y:f32]) [mode:u8][index:i32]
//	Created:  [name:str][x:f32][y:f32]
//	Deleted:  [index:i32]
//
// str is a uvarint byte length followed by UTF-8 bytes
package protocol

import (
	"fmt"

	"github.com/lixenwraith/wayfinder/waypoint"
)

// Kind is the message tag byte
type Kind uint8

const (
	KindFullSync Kind = 0
	KindCreated  Kind = 1
	KindDeleted  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFullSync:
		return "full_sync"
	case KindCreated:
		return "created"
	case KindDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is one of FullSync, Created or Deleted
type Message interface {
	Kind() Kind
	appendBody(b []byte) []byte
}

// FullSync is a complete snapshot of the store and selection
type FullSync struct {
	Waypoints []waypoint.Waypoint
	Selection waypoint.Selection
}

// Created announces an appended waypoint
type Created struct {
	Name     string
	Position waypoint.Point
}

// Deleted announces removal of the waypoint at Index
type Deleted struct {
	Index int32
}

func (FullSync) Kind() Kind { return KindFullSync }
func (Created) Kind() Kind  { return KindCreated }
func (Deleted) Kind() Kind  { return KindDeleted }

// Limits bounds what a decoder accepts
type Limits struct {
	MaxWaypoints int // Declared FullSync counts above this are rejected
	MaxNameBytes int // Longer names are rejected
}

// DefaultLimits returns the standard decode bounds
func DefaultLimits() Limits {
	return Limits{
		MaxWaypoints: waypoint.DefaultCapacity,
		MaxNameBytes: 4 * waypoint.MaxNameLength,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxWaypoints <= 0 {
		l.MaxWaypoints = d.MaxWaypoints
	}
	if l.MaxNameBytes <= 0 {
		l.MaxNameBytes = d.MaxNameBytes
	}
	return l
}
