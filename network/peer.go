package network

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// PeerID uniquely identifies a connected peer, never zero
type PeerID uint32

// ConnState is a peer's connection phase
type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateDisconnecting
)

// ErrMaxPeers rejects a connection beyond the configured peer limit
var ErrMaxPeers = errors.New("network: max peers reached")

// Peer is one connected remote process with its own read and write loops
type Peer struct {
	ID       PeerID
	Addr     string
	State    atomic.Uint32 // ConnState
	LastSeen atomic.Int64  // UnixNano

	// Sequence tracking
	OutSeq atomic.Uint32 // Next outbound sequence
	InSeq  atomic.Uint32 // Last processed inbound sequence

	conn   conn
	config *Config

	sendCh chan *Message

	closeCh   chan struct{}
	closeOnce sync.Once
}

func newPeer(id PeerID, c conn, cfg *Config) *Peer {
	p := &Peer{
		ID:      id,
		Addr:    c.RemoteAddr(),
		conn:    c,
		config:  cfg,
		sendCh:  make(chan *Message, cfg.SendQueueSize),
		closeCh: make(chan struct{}),
	}
	p.State.Store(uint32(StateConnected))
	p.LastSeen.Store(time.Now().UnixNano())
	return p
}

// Send stamps seq/ack and queues msg without blocking
// A full queue or a closing peer drops the message and returns false
func (p *Peer) Send(msg *Message) bool {
	if ConnState(p.State.Load()) != StateConnected {
		return false
	}

	msg.Seq = p.OutSeq.Add(1)
	msg.Ack = p.InSeq.Load()

	select {
	case p.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Close initiates shutdown, safe to call repeatedly
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.State.Store(uint32(StateDisconnecting))
		close(p.closeCh)
		p.conn.Close()
	})
}

// Done is closed once the peer shuts down
func (p *Peer) Done() <-chan struct{} { return p.closeCh }

// readLoop reads messages until the connection fails or the read deadline passes
func (p *Peer) readLoop(handler func(PeerID, *Message)) {
	defer p.Close()

	for {
		if p.config.ReadTimeout > 0 {
			p.conn.SetReadDeadline(time.Now().Add(p.config.ReadTimeout))
		}

		msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		p.LastSeen.Store(time.Now().UnixNano())
		if msg.Seq > p.InSeq.Load() {
			p.InSeq.Store(msg.Seq)
		}

		if msg.Type == MsgHeartbeat {
			continue
		}
		handler(p.ID, msg)
	}
}

// writeLoop sends queued messages and heartbeats
func (p *Peer) writeLoop() {
	defer p.Close()

	var heartbeat <-chan time.Time
	if p.config.HeartbeatInterval > 0 {
		ticker := time.NewTicker(p.config.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		var msg *Message
		select {
		case <-p.closeCh:
			return
		case msg = <-p.sendCh:
		case <-heartbeat:
			msg = NewMessage(MsgHeartbeat, nil)
			msg.Seq = p.OutSeq.Add(1)
			msg.Ack = p.InSeq.Load()
		}

		if p.config.WriteTimeout > 0 {
			p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout))
		}
		if err := p.conn.WriteMessage(msg); err != nil {
			return
		}
	}
}

// PeerManager tracks live peers and fans messages out to them
type PeerManager struct {
	mu       sync.RWMutex
	peers    map[PeerID]*Peer
	nextID   atomic.Uint32
	maxPeers int
	config   *Config
	wg       sync.WaitGroup

	// Callbacks
	onConnect    func(PeerID)
	onDisconnect func(PeerID)
	onMessage    func(PeerID, *Message)
}

// NewPeerManager creates an empty manager bounded by cfg.MaxPeers
func NewPeerManager(cfg *Config) *PeerManager {
	return &PeerManager{
		peers:    make(map[PeerID]*Peer),
		maxPeers: cfg.MaxPeers,
		config:   cfg,
	}
}

// SetHandlers configures event callbacks, must be called before the first connection
func (pm *PeerManager) SetHandlers(
	onConnect func(PeerID),
	onDisconnect func(PeerID),
	onMessage func(PeerID, *Message),
) {
	pm.onConnect = onConnect
	pm.onDisconnect = onDisconnect
	pm.onMessage = onMessage
}

// AddConnection registers a new peer and starts its I/O loops
// onConnect runs before any message from the peer is delivered
func (pm *PeerManager) AddConnection(c conn) (PeerID, error) {
	pm.mu.Lock()
	if pm.maxPeers > 0 && len(pm.peers) >= pm.maxPeers {
		pm.mu.Unlock()
		c.Close()
		return 0, ErrMaxPeers
	}
	id := PeerID(pm.nextID.Add(1))
	peer := newPeer(id, c, pm.config)
	pm.peers[id] = peer
	pm.mu.Unlock()

	// Callbacks run outside the lock so they may block or send
	if pm.onConnect != nil {
		pm.onConnect(id)
	}

	pm.wg.Add(3)
	go func() { defer pm.wg.Done(); peer.readLoop(pm.handleMessage) }()
	go func() { defer pm.wg.Done(); peer.writeLoop() }()
	go func() { defer pm.wg.Done(); pm.monitorPeer(peer) }()

	return id, nil
}

func (pm *PeerManager) handleMessage(id PeerID, msg *Message) {
	if pm.onMessage != nil {
		pm.onMessage(id, msg)
	}
}

// monitorPeer removes the peer once it closes
func (pm *PeerManager) monitorPeer(peer *Peer) {
	<-peer.closeCh

	pm.mu.Lock()
	delete(pm.peers, peer.ID)
	pm.mu.Unlock()

	if pm.onDisconnect != nil {
		pm.onDisconnect(peer.ID)
	}
}

// Send queues msg for one peer
func (pm *PeerManager) Send(id PeerID, msg *Message) bool {
	pm.mu.RLock()
	peer, ok := pm.peers[id]
	pm.mu.RUnlock()

	if !ok {
		return false
	}
	return peer.Send(msg)
}

// BroadcastExcept sends a message to every connected peer other than except
// Returns the number of peers whose queue accepted it
func (pm *PeerManager) BroadcastExcept(except PeerID, msg *Message) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	sent := 0
	for id, peer := range pm.peers {
		if id == except {
			continue
		}
		// Each peer stamps its own seq on a copy
		clone := *msg
		if peer.Send(&clone) {
			sent++
		}
	}
	return sent
}

// GetPeer looks up a live peer
func (pm *PeerManager) GetPeer(id PeerID) (*Peer, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.peers[id]
	return p, ok
}

// PeerCount returns the number of live peers
func (pm *PeerManager) PeerCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Close disconnects all peers and waits for their loops to exit
func (pm *PeerManager) Close() {
	pm.mu.RLock()
	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	pm.mu.RUnlock()

	for _, peer := range peers {
		peer.Close()
	}
	pm.wg.Wait()
}
