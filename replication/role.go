package replication

import (
	"fmt"
	"strings"
)

// Role is a process's authority in a synchronized session
type Role uint8

const (
	// RoleNone does not participate; every message is a no-op
	RoleNone Role = iota
	// RoleHost is the single source of truth
	RoleHost
	// RoleReplica mirrors the host and proposes changes
	RoleReplica
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleReplica:
		return "replica"
	default:
		return "none"
	}
}

// ParseRole parses a configured role name
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return RoleNone, nil
	case "host", "server":
		return RoleHost, nil
	case "replica", "client":
		return RoleReplica, nil
	default:
		return RoleNone, fmt.Errorf("unknown sync role %q", s)
	}
}
