// Package service runs the process-lifetime subsystems around a session
package service

// Service is a long-lived subsystem owned by a Hub: the sync transport, tone output
// and the status endpoint
//
// The hub drives each service through Init, Start and Stop. Init receives the args given at
// registration and runs after every dependency has initialized. Start may launch goroutines.
// Stop must tolerate repeated calls and a service that never started.
type Service interface {
	// Name is the unique registration key
	Name() string

	// Dependencies lists services that initialize and start before this one
	Dependencies() []string

	Init(args ...any) error
	Start() error
	Stop() error
}
