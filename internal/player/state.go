package player

// Phase is the controller's lifecycle position for the loaded media.
type Phase string

const (
	PhaseUnloaded Phase = "unloaded"
	PhaseLoading  Phase = "loading"
	PhasePaused   Phase = "paused"
	PhasePlaying  Phase = "playing"
	PhaseEnded    Phase = "ended"
)

// DefaultVolume is applied when no volume is configured.
const DefaultVolume = 100

// Range is a [Start, End] window in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// State is the live transport state owned by the Controller.
// Duration and RepeatRange are only meaningful once IsMediaReady is set.
type State struct {
	Phase          Phase   `json:"phase"`
	CurrentTime    float64 `json:"currentTime"`
	Duration       float64 `json:"duration"`
	IsPlaying      bool    `json:"isPlaying"`
	Volume         int     `json:"volume"`
	RepeatRange    Range   `json:"repeatRange"`
	IsRepeatRange  bool    `json:"isRepeatRange"`
	IsRepeatTrack  bool    `json:"isRepeatTrack"`
	IsShuffle      bool    `json:"isShuffle"`
	CurrentTrackID string  `json:"currentTrackId"`
	Title          string  `json:"title"`
	IsMediaReady   bool    `json:"isMediaReady"`

	// Version increases with every change; observers use it to discard
	// snapshots delivered out of order.
	Version uint64 `json:"-"`
}

// fresh returns per-media state for id, carrying user preferences over.
func (s State) fresh(id string) State {
	return State{
		Volume:         s.Volume,
		IsRepeatRange:  s.IsRepeatRange,
		IsRepeatTrack:  s.IsRepeatTrack,
		IsShuffle:      s.IsShuffle,
		CurrentTrackID: id,
	}
}

func clampFloat(v float64, lo float64, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v int, lo int, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
