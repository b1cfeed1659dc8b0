package guidance

// TonePlayer renders cues
// Calls are fire-and-forget and must not block the tick loop
type TonePlayer interface {
	PlayCue(cue Cue)
	AnnounceArrival(label string)
}

// SilentPlayer discards every cue
type SilentPlayer struct{}

func (SilentPlayer) PlayCue(Cue)            {}
func (SilentPlayer) AnnounceArrival(string) {}
