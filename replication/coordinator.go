// Package replication keeps waypoint stores consistent between one host and its replicas
//
// The host serializes every mutation: replicas apply their own edits locally, send them to
// the host, and the host appends or deletes in arrival order before relaying to every other
// replica. Deletes identify waypoints by index, so events must be applied in the order the
// host relays them. FullSync is the recovery path for anything missed.
package replication

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/protocol"
	"github.com/lixenwraith/wayfinder/status"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// PeerID identifies a remote process on the transport
type PeerID uint32

// NoPeer marks a locally originated message
const NoPeer PeerID = 0

// Sender delivers encoded protocol messages
// On a replica the only peer is the host, so a broadcast reaches the host
type Sender interface {
	Send(peer PeerID, payload []byte) bool
	BroadcastExcept(except PeerID, payload []byte)
}

// Outcome reports what handling a message did to the store
type Outcome struct {
	Kind    protocol.Kind
	Applied bool
	// Replaced is set when the store was wholesale replaced or cleared
	Replaced bool
}

// Coordinator applies local edits and remote messages according to the process role
type Coordinator struct {
	role   Role
	store  *waypoint.Store
	out    Sender
	limits protocol.Limits
	logger *zap.Logger

	applied  *atomic.Int64
	dropped  *atomic.Int64
	fullSync *atomic.Int64
	relayed  *atomic.Int64
}

// NewCoordinator creates a coordinator over store
// out may be nil for a process without a transport
func NewCoordinator(role Role, store *waypoint.Store, out Sender, limits protocol.Limits, logger *zap.Logger, reg *status.Registry) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg != nil {
		reg.Strings.Get("sync.role").Store(role.String())
	}
	return &Coordinator{
		role:     role,
		store:    store,
		out:      out,
		limits:   limits,
		logger:   logger.With(zap.String("role", role.String())),
		applied:  reg.Counter("sync.applied"),
		dropped:  reg.Counter("sync.dropped"),
		fullSync: reg.Counter("sync.fullsync"),
		relayed:  reg.Counter("sync.relayed"),
	}
}

// Role returns the configured role
func (c *Coordinator) Role() Role { return c.role }

// Participates reports whether this process sends or accepts sync messages
func (c *Coordinator) Participates() bool { return c.role != RoleNone }

// Create appends a locally created waypoint and propagates it
// Returns the new index, or -1 when the store rejected it
func (c *Coordinator) Create(name string, pos waypoint.Point) int {
	idx := c.store.Add(name, pos)
	if idx < 0 {
		c.logger.Warn("local create rejected", zap.Int("count", c.store.Len()))
		return -1
	}
	wp, _ := c.store.At(idx)
	c.broadcast(NoPeer, protocol.Created{Name: wp.Name, Position: wp.Position})
	return idx
}

// Delete removes a waypoint locally and propagates the delete
func (c *Coordinator) Delete(index int) bool {
	if !c.store.Delete(index) {
		return false
	}
	c.broadcast(NoPeer, protocol.Deleted{Index: int32(index)})
	return true
}

// SyncTo sends a FullSync of the host store to peer
func (c *Coordinator) SyncTo(peer PeerID) bool {
	if c.role != RoleHost || c.out == nil {
		return false
	}
	return c.out.Send(peer, protocol.Encode(c.snapshot()))
}

// BroadcastSync sends a FullSync to every replica
func (c *Coordinator) BroadcastSync() {
	if c.role != RoleHost {
		return
	}
	c.broadcast(NoPeer, c.snapshot())
}

// Handle applies a message received from peer
func (c *Coordinator) Handle(from PeerID, payload []byte) Outcome {
	if c.role == RoleNone {
		return Outcome{}
	}
	if len(payload) == 0 {
		c.drop(from, "", protocol.ErrEmpty)
		return Outcome{}
	}

	kind := protocol.Kind(payload[0])
	body := payload[1:]

	switch kind {
	case protocol.KindFullSync:
		return c.handleFullSync(from, body)
	case protocol.KindCreated:
		return c.handleCreated(from, body)
	case protocol.KindDeleted:
		return c.handleDeleted(from, body)
	default:
		c.drop(from, kind.String(), protocol.ErrUnknownKind)
		return Outcome{Kind: kind}
	}
}

func (c *Coordinator) handleFullSync(from PeerID, body []byte) Outcome {
	out := Outcome{Kind: protocol.KindFullSync}
	if c.role == RoleHost {
		c.logger.Warn("host ignores full sync", zap.Uint32("peer", uint32(from)))
		c.dropped.Add(1)
		return out
	}

	limits := c.limits
	if limits.MaxWaypoints <= 0 || limits.MaxWaypoints > c.store.Capacity() {
		limits.MaxWaypoints = c.store.Capacity()
	}

	msg, err := protocol.DecodeFullSync(body, limits)
	if err != nil {
		// Fail safe to an empty store rather than a partial snapshot
		c.store.Clear()
		c.drop(from, out.Kind.String(), err)
		out.Replaced = true
		return out
	}

	c.store.ReplaceAll(msg.Waypoints, msg.Selection)
	c.fullSync.Add(1)
	c.applied.Add(1)
	c.logger.Debug("full sync applied",
		zap.Uint32("peer", uint32(from)),
		zap.Int("count", c.store.Len()),
		zap.Stringer("selection", c.store.Selection()))
	out.Applied = true
	out.Replaced = true
	return out
}

func (c *Coordinator) handleCreated(from PeerID, body []byte) Outcome {
	out := Outcome{Kind: protocol.KindCreated}
	msg, err := protocol.DecodeCreated(body, c.limits)
	if err != nil {
		c.drop(from, out.Kind.String(), err)
		return out
	}

	idx := c.store.Add(msg.Name, msg.Position)
	if idx < 0 {
		c.logger.Warn("created event rejected at capacity",
			zap.Uint32("peer", uint32(from)),
			zap.Int("capacity", c.store.Capacity()))
		c.dropped.Add(1)
		return out
	}
	c.applied.Add(1)
	out.Applied = true

	if c.role == RoleHost {
		// Relay the stored name so replicas see the same default substitution
		wp, _ := c.store.At(idx)
		c.broadcast(from, protocol.Created{Name: wp.Name, Position: wp.Position})
	}
	return out
}

func (c *Coordinator) handleDeleted(from PeerID, body []byte) Outcome {
	out := Outcome{Kind: protocol.KindDeleted}
	msg, err := protocol.DecodeDeleted(body)
	if err != nil {
		c.drop(from, out.Kind.String(), err)
		return out
	}

	if !c.store.Delete(int(msg.Index)) {
		c.logger.Debug("stale delete ignored",
			zap.Uint32("peer", uint32(from)),
			zap.Int32("index", msg.Index),
			zap.Int("count", c.store.Len()))
		return out
	}
	c.applied.Add(1)
	out.Applied = true

	if c.role == RoleHost {
		c.broadcast(from, msg)
	}
	return out
}

func (c *Coordinator) snapshot() protocol.FullSync {
	return protocol.FullSync{
		Waypoints: c.store.Waypoints(),
		Selection: c.store.Selection(),
	}
}

func (c *Coordinator) broadcast(except PeerID, msg protocol.Message) {
	if c.role == RoleNone || c.out == nil {
		return
	}
	c.out.BroadcastExcept(except, protocol.Encode(msg))
	if except != NoPeer {
		c.relayed.Add(1)
	}
}

func (c *Coordinator) drop(from PeerID, kind string, err error) {
	c.dropped.Add(1)
	c.logger.Warn("dropping malformed message",
		zap.Uint32("peer", uint32(from)),
		zap.String("kind", kind),
		zap.Error(err))
}
