package player

// StateCode is the widget's own playback state vocabulary.
type StateCode int

// Widget state codes consumed by the controller. Other codes (buffering,
// cued, unstarted) are ignored.
const (
	StateEnded   StateCode = 0
	StatePlaying StateCode = 1
	StatePaused  StateCode = 2
)

// VideoData describes the media the widget currently holds.
type VideoData struct {
	ID    string
	Title string
}

// Listener receives push events for one media session.
type Listener interface {
	OnReady()
	OnStateChange(code StateCode)
}

// Widget is the capability set of the external playback widget. Calls are
// fire-and-forget from the controller's point of view; returned errors are
// logged and otherwise ignored.
//
// Implementations must not invoke a Listener while holding a lock that
// Subscribe or any other Widget method also takes.
type Widget interface {
	Load(id string) error
	CurrentTime() (float64, error)
	Duration() (float64, error)
	SeekTo(seconds float64) error
	Play() error
	Pause() error
	SetVolume(volume int) error
	VideoData() (VideoData, error)
	Subscribe(l Listener) (unsubscribe func())
}
