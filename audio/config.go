package audio

import "time"

// Config controls tone output
type Config struct {
	Enabled      bool
	MasterVolume float64 // [0, 1]
	SampleRate   int

	// Cue tone shape
	CueBaseFreq float64 // Hz at pitch 0, one octave per unit of pitch
	CueDuration time.Duration
	CueAttack   time.Duration
	CueRelease  time.Duration

	// Arrival chime, two rising notes
	ChimeFreqs    [2]float64
	ChimeNote     time.Duration
	ChimeRelease  time.Duration
	ChimeVolume   float64
	BufferLatency time.Duration
}

// DefaultConfig returns the stock tone settings with output enabled
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MasterVolume:  0.8,
		SampleRate:    44100,
		CueBaseFreq:   660,
		CueDuration:   90 * time.Millisecond,
		CueAttack:     5 * time.Millisecond,
		CueRelease:    40 * time.Millisecond,
		ChimeFreqs:    [2]float64{880, 1318.51},
		ChimeNote:     140 * time.Millisecond,
		ChimeRelease:  90 * time.Millisecond,
		ChimeVolume:   0.6,
		BufferLatency: 100 * time.Millisecond,
	}
}

func clampUnit(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
