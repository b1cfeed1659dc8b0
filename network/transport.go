package network

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// ErrNotRunning is returned for operations that need a started transport
var ErrNotRunning = errors.New("network: transport not running")

// Transport handles network I/O for a specific role
type Transport struct {
	config   *Config
	listener net.Listener
	httpSrv  *http.Server
	peers    *PeerManager

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTransport creates a transport with the given configuration
func NewTransport(cfg *Config) *Transport {
	return &Transport{
		config: cfg,
		peers:  NewPeerManager(cfg),
		stopCh: make(chan struct{}),
	}
}

// SetHandlers configures message and connection callbacks
func (t *Transport) SetHandlers(
	onConnect func(PeerID),
	onDisconnect func(PeerID),
	onMessage func(PeerID, *Message),
) {
	t.peers.SetHandlers(onConnect, onDisconnect, onMessage)
}

// Start begins listening (server) or connecting (client)
func (t *Transport) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	var err error
	switch t.config.Role {
	case RoleServer:
		err = t.startServer()
	case RoleClient:
		err = t.startClient()
	default:
		return nil // RoleNone, no-op
	}
	if err != nil {
		t.running.Store(false)
	}
	return err
}

// startServer binds and accepts connections
func (t *Transport) startServer() error {
	ln, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		return err
	}
	if t.config.TLS != nil {
		ln = tls.NewListener(ln, t.config.TLS)
	}
	t.listener = ln

	if t.config.Kind == KindWebSocket {
		t.httpSrv = &http.Server{Handler: t.routes()}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.httpSrv.Serve(ln)
		}()
		return nil
	}

	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

// acceptLoop handles incoming TCP connections
func (t *Transport) acceptLoop() {
	defer t.wg.Done()

	for {
		raw, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		t.peers.AddConnection(newStreamConn(raw, t.config))
	}
}

// routes serves the websocket upgrade endpoint
func (t *Transport) routes() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  t.config.ReadBufferSize,
		WriteBufferSize: t.config.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	r := chi.NewRouter()
	r.Get(t.path(), func(w http.ResponseWriter, req *http.Request) {
		if t.peers.PeerCount() >= t.config.MaxPeers && t.config.MaxPeers > 0 {
			http.Error(w, ErrMaxPeers.Error(), http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return // Upgrade already replied
		}
		t.peers.AddConnection(newWSConn(ws, t.config))
	})
	return r
}

func (t *Transport) path() string {
	if t.config.Path == "" {
		return "/sync"
	}
	return t.config.Path
}

// startClient connects to server
func (t *Transport) startClient() error {
	c, err := t.dial()
	if err != nil {
		return err
	}
	_, err = t.peers.AddConnection(c)
	return err
}

// dial establishes a connection with optional TLS
func (t *Transport) dial() (conn, error) {
	cfg := t.config

	if cfg.Kind == KindWebSocket {
		dialer := websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			TLSClientConfig:  cfg.TLS,
		}
		ws, _, err := dialer.Dial(t.websocketURL(), nil)
		if err != nil {
			return nil, err
		}
		return newWSConn(ws, cfg), nil
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	var raw net.Conn
	var err error
	if cfg.TLS != nil {
		raw, err = tls.DialWithDialer(dialer, "tcp", cfg.Address, cfg.TLS)
	} else {
		raw, err = dialer.Dial("tcp", cfg.Address)
	}
	if err != nil {
		return nil, err
	}
	return newStreamConn(raw, cfg), nil
}

// websocketURL builds the dial URL, a full ws:// or wss:// address is used as is
func (t *Transport) websocketURL() string {
	addr := t.config.Address
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	scheme := "ws://"
	if t.config.TLS != nil {
		scheme = "wss://"
	}
	return scheme + addr + t.path()
}

// Stop halts the transport
func (t *Transport) Stop() error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}

	close(t.stopCh)

	if t.httpSrv != nil {
		// Hijacked websocket connections are closed by the peer manager
		t.httpSrv.Close()
	} else if t.listener != nil {
		t.listener.Close()
	}

	t.peers.Close()
	t.wg.Wait()

	return nil
}

// Addr returns the bound listen address, empty for clients
func (t *Transport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Send transmits to a specific peer
func (t *Transport) Send(id PeerID, msg *Message) bool {
	return t.peers.Send(id, msg)
}

// BroadcastExcept sends to all peers other than except
func (t *Transport) BroadcastExcept(except PeerID, msg *Message) int {
	return t.peers.BroadcastExcept(except, msg)
}

// PeerCount returns connected peer count
func (t *Transport) PeerCount() int {
	return t.peers.PeerCount()
}

// IsRunning returns transport state
func (t *Transport) IsRunning() bool {
	return t.running.Load()
}
