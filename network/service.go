package network

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/replication"
	"github.com/lixenwraith/wayfinder/status"
)

// EventKind classifies an inbound network event
type EventKind uint8

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventPayload
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	default:
		return "payload"
	}
}

// Event is queued for the engine tick, which is the only consumer
type Event struct {
	Kind    EventKind
	Peer    replication.PeerID
	Payload []byte
}

// Service wraps Transport as a hub-managed service
// It implements replication.Sender for waypoint payloads
type Service struct {
	config    *Config
	transport *Transport
	actor     uuid.UUID
	logger    *zap.Logger

	events chan Event
	stopCh chan struct{}
	stop   sync.Once

	actors sync.Map // PeerID -> uuid.UUID from Hello

	peersGauge *atomic.Int64
	sendDrops  *atomic.Int64

	disabled atomic.Bool
}

// NewService creates a network service identified by actor (disabled until Init with a role)
func NewService(actor uuid.UUID, logger *zap.Logger, reg *status.Registry) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:     DefaultConfig(),
		actor:      actor,
		logger:     logger.Named("network"),
		stopCh:     make(chan struct{}),
		peersGauge: reg.Counter("net.peers"),
		sendDrops:  reg.Counter("net.send_dropped"),
	}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "network"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements service.Service
// args[0]: *Config (optional, overrides default)
func (s *Service) Init(args ...any) error {
	if len(args) > 0 {
		if cfg, ok := args[0].(*Config); ok && cfg != nil {
			s.config = cfg
		}
	}

	s.events = make(chan Event, max(s.config.RecvQueueSize, 1))

	if s.config.Role == RoleNone {
		s.disabled.Store(true)
		return nil
	}

	s.transport = NewTransport(s.config)
	s.transport.SetHandlers(s.onConnect, s.onDisconnect, s.onMessage)

	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	if s.disabled.Load() || s.transport == nil {
		return nil
	}
	if err := s.transport.Start(); err != nil {
		return err
	}
	s.logger.Info("transport started",
		zap.Stringer("role", s.config.Role),
		zap.String("kind", string(s.config.Kind)),
		zap.String("addr", s.Addr()))
	return nil
}

// Stop implements service.Service
func (s *Service) Stop() error {
	s.stop.Do(func() { close(s.stopCh) })
	if s.transport != nil {
		return s.transport.Stop()
	}
	return nil
}

// Events returns the inbound event queue, nil before Init
func (s *Service) Events() <-chan Event {
	return s.events
}

// Addr returns the bound listen address for a server
func (s *Service) Addr() string {
	if s.transport == nil {
		return ""
	}
	if addr := s.transport.Addr(); addr != "" {
		return addr
	}
	return s.config.Address
}

// Actor returns the actor id a peer announced in its Hello
func (s *Service) Actor(peer replication.PeerID) (uuid.UUID, bool) {
	v, ok := s.actors.Load(PeerID(peer))
	if !ok {
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// push blocks until the engine drains or the service stops
func (s *Service) push(ev Event) {
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

func (s *Service) onConnect(id PeerID) {
	s.peersGauge.Add(1)
	hello, _ := s.actor.MarshalBinary()
	s.transport.Send(id, NewMessage(MsgHello, hello))
	s.logger.Info("peer connected", zap.Uint32("peer", uint32(id)))
	s.push(Event{Kind: EventConnect, Peer: replication.PeerID(id)})
}

func (s *Service) onDisconnect(id PeerID) {
	s.peersGauge.Add(-1)
	s.actors.Delete(id)
	s.logger.Info("peer disconnected", zap.Uint32("peer", uint32(id)))
	s.push(Event{Kind: EventDisconnect, Peer: replication.PeerID(id)})
}

func (s *Service) onMessage(id PeerID, msg *Message) {
	switch msg.Type {
	case MsgHello:
		actor, err := uuid.FromBytes(msg.Payload)
		if err != nil {
			s.logger.Warn("invalid hello", zap.Uint32("peer", uint32(id)), zap.Error(err))
			return
		}
		s.actors.Store(id, actor)
		s.logger.Debug("peer identified", zap.Uint32("peer", uint32(id)), zap.Stringer("actor", actor))

	case MsgWaypoint:
		s.push(Event{Kind: EventPayload, Peer: replication.PeerID(id), Payload: msg.Payload})

	default:
		s.logger.Debug("ignoring message", zap.Uint32("peer", uint32(id)), zap.Stringer("type", msg.Type))
	}
}

// Send implements replication.Sender
func (s *Service) Send(peer replication.PeerID, payload []byte) bool {
	if s.transport == nil {
		return false
	}
	if !s.transport.Send(PeerID(peer), NewMessage(MsgWaypoint, payload)) {
		s.sendDrops.Add(1)
		s.logger.Warn("send dropped", zap.Uint32("peer", uint32(peer)))
		return false
	}
	return true
}

// BroadcastExcept implements replication.Sender
func (s *Service) BroadcastExcept(except replication.PeerID, payload []byte) {
	if s.transport == nil {
		return
	}
	want := s.transport.PeerCount()
	if except != replication.NoPeer {
		if _, ok := s.transport.peers.GetPeer(PeerID(except)); ok {
			want--
		}
	}
	if sent := s.transport.BroadcastExcept(PeerID(except), NewMessage(MsgWaypoint, payload)); sent < want {
		s.sendDrops.Add(int64(want - sent))
	}
}

// PeerCount returns connected peer count
func (s *Service) PeerCount() int {
	if s.transport == nil {
		return 0
	}
	return s.transport.PeerCount()
}

// IsRunning returns true if network is active
func (s *Service) IsRunning() bool {
	return s.transport != nil && s.transport.IsRunning()
}
