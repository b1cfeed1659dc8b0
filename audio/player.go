package audio

import (
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"go.uber.org/zap"

	"github.com/lixenwraith/wayfinder/guidance"
)

// Player renders guidance cues on the default output device
// Every method is safe to call without an initialized backend
type Player struct {
	mu          sync.Mutex
	config      *Config
	mixer       *beep.Mixer
	logger      *zap.Logger
	initialized bool

	cues     atomic.Int64
	arrivals atomic.Int64
}

var _ guidance.TonePlayer = (*Player)(nil)

// NewPlayer creates a player, output starts at Start or Initialize
func NewPlayer(logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		config: DefaultConfig(),
		mixer:  &beep.Mixer{},
		logger: logger.Named("audio"),
	}
}

// Name implements service.Service
func (p *Player) Name() string { return "audio" }

// Dependencies implements service.Service
func (p *Player) Dependencies() []string { return nil }

// Init implements service.Service
// args[0]: *Config (optional, overrides default)
func (p *Player) Init(args ...any) error {
	if len(args) > 0 {
		if cfg, ok := args[0].(*Config); ok && cfg != nil {
			p.mu.Lock()
			p.config = cfg
			p.mu.Unlock()
		}
	}
	return nil
}

// Start implements service.Service
// A missing audio device degrades to silent output without error
func (p *Player) Start() error {
	if err := p.Initialize(); err != nil {
		p.logger.Warn("audio unavailable, continuing silent", zap.Error(err))
	}
	return nil
}

// Stop implements service.Service
func (p *Player) Stop() error {
	p.Cleanup()
	return nil
}

// Initialize sets up the speaker and starts the mixer
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized || !p.config.Enabled {
		return nil
	}

	rate := beep.SampleRate(p.config.SampleRate)
	if err := speaker.Init(rate, rate.N(p.config.BufferLatency)); err != nil {
		return err
	}

	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Initialized reports whether output reaches a device
func (p *Player) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Cleanup stops all sounds and releases the speaker
func (p *Player) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}

	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()

	speaker.Close()
	p.initialized = false
}

// PlayCue queues one ping, dropped when output is unavailable
func (p *Player) PlayCue(cue guidance.Cue) {
	p.cues.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	p.add(CreateCueTone(cue, p.config))
}

// AnnounceArrival logs the arrival label and plays the chime
func (p *Player) AnnounceArrival(label string) {
	p.arrivals.Add(1)
	p.logger.Info("arrived", zap.String("target", label))

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	p.add(CreateArrivalChime(p.config))
}

// Counts returns cues and arrivals requested since construction
func (p *Player) Counts() (cues, arrivals int64) {
	return p.cues.Load(), p.arrivals.Load()
}

// add must hold p.mu; the speaker goroutine reads the mixer under speaker.Lock
func (p *Player) add(s beep.Streamer) {
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}
