package service

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrDuplicate         = errors.New("service already registered")
	ErrUnknownDependency = errors.New("unregistered dependency")
	ErrCycle             = errors.New("dependency cycle")
)

type entry struct {
	svc  Service
	args []any
}

// Hub owns registered services and runs their lifecycle in dependency order
// Services without a dependency relation keep their registration order
type Hub struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // Registration order
	plan    []string // Resolved lifecycle order, nil until InitAll
	started []string // Started services, stopped in reverse
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds svc; args are handed to its Init
func (h *Hub) Register(svc Service, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := svc.Name()
	if _, ok := h.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	h.entries[name] = &entry{svc: svc, args: args}
	h.order = append(h.order, name)
	h.plan = nil
	return nil
}

// Get looks up a service by name
func (h *Hub) Get(name string) (Service, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[name]
	if !ok {
		return nil, false
	}
	return e.svc, true
}

// MustGet returns the named service as T, panicking when it is missing or of another type
func MustGet[T any](h *Hub, name string) T {
	svc, ok := h.Get(name)
	if !ok {
		panic(fmt.Sprintf("service not found: %s", name))
	}
	typed, ok := svc.(T)
	if !ok {
		panic(fmt.Sprintf("service %s: type mismatch, got %T", name, svc))
	}
	return typed
}

// InitAll resolves the lifecycle order and initializes every service
// A failed Init stops the services initialized before it, newest first
func (h *Hub) InitAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	plan, err := h.resolve()
	if err != nil {
		return err
	}
	h.plan = plan

	for i, name := range plan {
		e := h.entries[name]
		if err := e.svc.Init(e.args...); err != nil {
			h.stopEach(slices.Backward(plan[:i]))
			return fmt.Errorf("service %s init: %w", name, err)
		}
	}
	return nil
}

// StartAll starts every service in lifecycle order
// A failed Start stops the services already started, newest first
func (h *Hub) StartAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.plan == nil {
		return errors.New("service: StartAll before InitAll")
	}

	h.started = h.started[:0]
	for _, name := range h.plan {
		if err := h.entries[name].svc.Start(); err != nil {
			h.stopEach(slices.Backward(h.started))
			h.started = nil
			return fmt.Errorf("service %s start: %w", name, err)
		}
		h.started = append(h.started, name)
		h.logger.Debug("service started", zap.String("service", name))
	}
	return nil
}

// StopAll stops started services in reverse order
// Stop errors are logged so every service still gets stopped
func (h *Hub) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopEach(slices.Backward(h.started))
	h.started = nil
}

func (h *Hub) stopEach(seq iter.Seq2[int, string]) {
	for _, name := range seq {
		if err := h.entries[name].svc.Stop(); err != nil {
			h.logger.Warn("service stop failed", zap.String("service", name), zap.Error(err))
		}
	}
}

// resolve orders services so each follows its dependencies, depth first in registration order
func (h *Hub) resolve() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(h.entries))
	plan := make([]string, 0, len(h.entries))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := slices.Index(path, name)
			cycle := append(slices.Clone(path[start:]), name)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range h.entries[name].svc.Dependencies() {
			if _, ok := h.entries[dep]; !ok {
				return fmt.Errorf("%w: %s needs %s", ErrUnknownDependency, name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		plan = append(plan, name)
		return nil
	}

	for _, name := range h.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Names returns registered service names in registration order
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}
