package audio

import (
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/wayfinder/guidance"
)

func drain(s beep.Streamer) (total int, peak float64) {
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			peak = math.Max(peak, math.Abs(buf[i][0]))
			peak = math.Max(peak, math.Abs(buf[i][1]))
		}
		total += n
		if !ok {
			return total, peak
		}
	}
}

func TestOscillatorLengthAndRange(t *testing.T) {
	rate := beep.SampleRate(44100)
	osc := NewOscillator(440, 100*time.Millisecond, rate)

	total, peak := drain(osc)
	if total != rate.N(100*time.Millisecond) {
		t.Errorf("streamed %d samples, want %d", total, rate.N(100*time.Millisecond))
	}
	if peak > 1.0 || peak < 0.9 {
		t.Errorf("peak = %f, want close to 1", peak)
	}
	if osc.Err() != nil {
		t.Errorf("unexpected error: %v", osc.Err())
	}
}

func TestEnvelopeRamps(t *testing.T) {
	rate := beep.SampleRate(1000)
	// 1 kHz sample rate with 250 Hz sine gives 0,1,0,-1 cycles
	env := NewEnvelope(NewOscillator(250, 100*time.Millisecond, rate), 100*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond, rate)

	buf := make([][2]float64, 100)
	n, _ := env.Stream(buf)
	if n != 100 {
		t.Fatalf("streamed %d, want 100", n)
	}
	if buf[0][0] != 0 {
		t.Errorf("first sample = %f, want silent start", buf[0][0])
	}
	if math.Abs(buf[1][0]) >= 0.2 {
		t.Errorf("attack sample = %f, want ramped", buf[1][0])
	}
	if math.Abs(buf[49][0]) < 0.99 {
		t.Errorf("sustain sample = %f, want full level", buf[49][0])
	}
	if math.Abs(buf[97][0]) > 0.31 {
		t.Errorf("release sample = %f, want faded", buf[97][0])
	}
}

func TestCueFrequency(t *testing.T) {
	tests := []struct {
		pitch float64
		want  float64
	}{
		{0, 660},
		{1, 1320},
		{-1, 330},
		{math.NaN(), 660},
		{math.Inf(1), 660},
	}
	for _, tt := range tests {
		if got := CueFrequency(660, tt.pitch); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CueFrequency(%v) = %f, want %f", tt.pitch, got, tt.want)
		}
	}
}

func TestCueToneVolume(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MasterVolume = 1

	_, loud := drain(CreateCueTone(guidance.Cue{Volume: 0.75}, cfg))
	_, quiet := drain(CreateCueTone(guidance.Cue{Volume: 0.35}, cfg))
	_, silent := drain(CreateCueTone(guidance.Cue{Volume: 0}, cfg))

	if loud <= quiet {
		t.Errorf("peak at 0.75 (%f) not above 0.35 (%f)", loud, quiet)
	}
	if loud > 0.76 {
		t.Errorf("peak %f exceeds cue volume", loud)
	}
	if silent != 0 {
		t.Errorf("zero volume peak = %f", silent)
	}

	cfg.MasterVolume = 0.5
	_, halved := drain(CreateCueTone(guidance.Cue{Volume: 0.75}, cfg))
	if math.Abs(halved-loud/2) > 0.01 {
		t.Errorf("master 0.5 peak = %f, want about %f", halved, loud/2)
	}
}

func TestArrivalChimeLength(t *testing.T) {
	cfg := DefaultConfig()
	rate := beep.SampleRate(cfg.SampleRate)
	total, peak := drain(CreateArrivalChime(cfg))
	if want := 2 * rate.N(cfg.ChimeNote); total != want {
		t.Errorf("chime length = %d samples, want %d", total, want)
	}
	if peak == 0 {
		t.Error("chime is silent")
	}
}

// Output calls must be safe without an initialized device
func TestPlayerGracefulDegradation(t *testing.T) {
	p := NewPlayer(nil)
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("player panicked without initialization: %v", r)
		}
	}()

	p.PlayCue(guidance.Cue{Pitch: 0.2, Volume: 0.4})
	p.AnnounceArrival("Home")
	p.Cleanup()

	if cues, arrivals := p.Counts(); cues != 1 || arrivals != 1 {
		t.Errorf("counts = %d,%d want 1,1", cues, arrivals)
	}
}

func TestPlayerDisabledSkipsDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p := NewPlayer(nil)
	if err := p.Init(cfg); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	if p.Initialized() {
		t.Error("disabled player opened the device")
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestPlayerInitialization(t *testing.T) {
	p := NewPlayer(nil)

	// Speaker initialization fails on machines without an audio device
	if err := p.Initialize(); err != nil {
		t.Logf("audio initialization failed (expected without a device): %v", err)
		return
	}
	if err := p.Initialize(); err != nil {
		t.Errorf("second Initialize should be a no-op, got %v", err)
	}
	p.PlayCue(guidance.Cue{Volume: 0.1})
	p.Cleanup()
	if p.Initialized() {
		t.Error("still initialized after Cleanup")
	}
}

func TestCueTonePan(t *testing.T) {
	cfg := DefaultConfig()
	s := CreateCueTone(guidance.Cue{Volume: 0.5, Pan: 1}, cfg)

	buf := make([][2]float64, 2048)
	n, _ := s.Stream(buf)
	var left, right float64
	for i := 0; i < n; i++ {
		left = math.Max(left, math.Abs(buf[i][0]))
		right = math.Max(right, math.Abs(buf[i][1]))
	}
	if left != 0 {
		t.Errorf("left channel peak = %f, want silent for a target hard right", left)
	}
	if right == 0 {
		t.Error("right channel silent")
	}
}
