package network

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"
)

// Role defines the network topology role
type Role uint8

const (
	RoleNone   Role = iota // Network disabled
	RoleClient             // Connects to server
	RoleServer             // Accepts connections
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "none"
	}
}

// Kind selects the byte stream carrying frames
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "ws"
)

// ParseKind accepts tcp, ws or websocket
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return KindTCP, nil
	case "ws", "websocket":
		return KindWebSocket, nil
	default:
		return "", fmt.Errorf("unknown transport %q", s)
	}
}

// Config holds network configuration
type Config struct {
	// Role determines connection behavior
	Role Role
	Kind Kind

	// Address to bind (server) or connect to (client)
	Address string
	// Path is the websocket upgrade route
	Path string

	// TLS configuration (nil = plaintext)
	TLS *tls.Config

	// Connection limits
	MaxPeers int
	// MaxMessageSize bounds a reassembled payload
	MaxMessageSize int

	// Timing
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration

	// Buffer sizes
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	RecvQueueSize   int
}

// DefaultConfig returns defaults for a LAN session
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleNone,
		Kind:              KindTCP,
		Address:           ":7777",
		Path:              "/sync",
		MaxPeers:          16,
		MaxMessageSize:    1 << 20,
		ConnectTimeout:    5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		ReadBufferSize:    64 * 1024,
		WriteBufferSize:   64 * 1024,
		SendQueueSize:     256,
		RecvQueueSize:     256,
	}
}

// DebugConfig returns config with TLS disabled for local testing
func DebugConfig(role Role, addr string) *Config {
	cfg := DefaultConfig()
	cfg.Role = role
	cfg.Address = addr
	return cfg
}
