package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/wayfinder/guidance"
)

// oscillator generates a sine wave of fixed length
type oscillator struct {
	freq     float64
	phase    float64
	duration int
	position int
	rate     beep.SampleRate
}

// NewOscillator creates a sine oscillator for duration
func NewOscillator(freq float64, duration time.Duration, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		duration: rate.N(duration),
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		val := math.Sin(2 * math.Pi * o.phase)
		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase) // Keep in [0, 1)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// envelope applies linear attack and release to a stream
type envelope struct {
	streamer     beep.Streamer
	position     int
	attack       int
	releaseStart int
	release      int
	total        int
}

// NewEnvelope shapes s over duration with linear attack and release ramps
func NewEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	att := min(rate.N(attack), total)
	rel := min(rate.N(release), total-att)
	return &envelope{
		streamer:     s,
		attack:       att,
		releaseStart: total - rel,
		release:      rel,
		total:        total,
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)

	for i := 0; i < n; i++ {
		if e.position >= e.total {
			return i, i > 0
		}

		vol := 1.0
		if e.position < e.attack {
			vol = float64(e.position) / float64(e.attack)
		}
		if e.position >= e.releaseStart && e.release > 0 {
			vol = float64(e.total-e.position) / float64(e.release)
		}

		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}

	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume scales linear amplitude vol, zero is silent
// math.Log2(0) is -Inf so zero maps to Silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// master applies the master level as a linear gain
func master(s beep.Streamer, cfg *Config) beep.Streamer {
	return &effects.Gain{Streamer: s, Gain: clampUnit(cfg.MasterVolume) - 1}
}

// CueFrequency maps a cue pitch to Hz, one octave per unit
func CueFrequency(base, pitch float64) float64 {
	if math.IsNaN(pitch) || math.IsInf(pitch, 0) {
		pitch = 0
	}
	return base * math.Exp2(pitch)
}

// CreateCueTone renders one ping for cue
func CreateCueTone(cue guidance.Cue, cfg *Config) beep.Streamer {
	rate := beep.SampleRate(cfg.SampleRate)

	osc := NewOscillator(CueFrequency(cfg.CueBaseFreq, cue.Pitch), cfg.CueDuration, rate)
	shaped := NewEnvelope(osc, cfg.CueDuration, cfg.CueAttack, cfg.CueRelease, rate)

	panned := &effects.Pan{Streamer: newVolume(shaped, clampUnit(cue.Volume)), Pan: clampPan(cue.Pan)}
	return master(panned, cfg)
}

func clampPan(v float64) float64 {
	if v != v {
		return 0
	}
	return max(-1, min(1, v))
}

// CreateArrivalChime renders the two-note arrival chime
func CreateArrivalChime(cfg *Config) beep.Streamer {
	rate := beep.SampleRate(cfg.SampleRate)

	notes := make([]beep.Streamer, 0, len(cfg.ChimeFreqs))
	for _, freq := range cfg.ChimeFreqs {
		osc := NewOscillator(freq, cfg.ChimeNote, rate)
		notes = append(notes, NewEnvelope(osc, cfg.ChimeNote, cfg.CueAttack, cfg.ChimeRelease, rate))
	}

	return master(newVolume(beep.Seq(notes...), clampUnit(cfg.ChimeVolume)), cfg)
}
