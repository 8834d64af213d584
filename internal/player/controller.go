package player

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/internal/metrics"
)

// DefaultPollInterval is how often the widget position is sampled while playing.
const DefaultPollInterval = 500 * time.Millisecond

// Config configures a Controller.
type Config struct {
	PollInterval    time.Duration
	Volume          int
	DisableAutoplay bool
	Log             *zap.Logger
}

// Controller owns the playback state and reconciles it with the widget's
// push callbacks and a pull-style position poll. Every callback, poll tick
// and command runs under one lock, so only one of them mutates state at a time.
type Controller struct {
	mu        sync.Mutex
	log       *zap.Logger
	cfg       Config
	seq       *Sequencer
	widget    Widget
	state     State
	ended     bool
	sess      *session
	unsub     func()
	pollGen   uint64
	version   uint64
	pollStop  context.CancelFunc
	observers []func(State)
	closed    bool
}

// NewController creates a controller that advances through lib on end of track.
func NewController(lib Library, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Volume <= 0 {
		cfg.Volume = DefaultVolume
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	c := &Controller{
		log: cfg.Log,
		cfg: cfg,
		seq: NewSequencer(lib),
	}
	c.state.Volume = clampInt(cfg.Volume, 0, 100)
	c.state.Phase = PhaseUnloaded
	return c
}

// OnChange registers fn to receive a state copy after every change.
// fn runs outside the controller lock, so concurrent changes may reach it
// out of order; State.Version tells them apart.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns the sequencer position in the active playlist.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq.Cursor()
}

// Attach connects a widget. Media requested while detached is loaded now.
func (c *Controller) Attach(w Widget) {
	c.do(func() {
		if c.widget == w {
			return
		}
		c.detachLocked()
		c.widget = w
		if w == nil || c.state.CurrentTrackID == "" {
			return
		}
		c.loadLocked(c.state.CurrentTrackID)
	})
}

// Detach disconnects the widget and stops polling.
func (c *Controller) Detach() {
	c.do(c.detachLocked)
}

func (c *Controller) detachLocked() {
	c.closeSessionLocked()
	c.widget = nil
	c.state.IsPlaying = false
	c.state.IsMediaReady = false
	c.restartPollLocked()
}

// Close stops the poller and tears down the widget subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeSessionLocked()
	c.restartPollLocked()
}

// Submit resolves raw input and loads the identifier it names. Submitting the
// identifier already loaded restarts it from 0 without reloading the widget.
func (c *Controller) Submit(raw string) (string, bool, error) {
	id, err := media.Parse(raw)
	if err != nil {
		return "", false, err
	}
	var restarted bool
	c.do(func() {
		restarted = c.submitLocked(id)
	})
	return id, restarted, nil
}

// Load loads id, discarding the state of the previous media.
func (c *Controller) Load(id string) {
	c.do(func() {
		c.loadLocked(id)
	})
}

// PlayFromList plays the track at index in the active playlist and moves the
// sequencer cursor to it.
func (c *Controller) PlayFromList(index int) bool {
	var ok bool
	c.do(func() {
		if c.seq.lib == nil {
			return
		}
		track, found := c.seq.lib.Track(c.seq.lib.Active(), index)
		if !found {
			return
		}
		c.seq.MoveTo(index)
		c.submitLocked(track.ID)
		ok = true
	})
	return ok
}

func (c *Controller) submitLocked(id string) bool {
	if id != "" && id == c.state.CurrentTrackID && c.widget != nil {
		if c.state.IsMediaReady {
			metrics.MediaRestartsTotal.Inc()
			c.seekLocked(0)
			c.playLocked()
		}
		return true
	}
	c.loadLocked(id)
	return false
}

func (c *Controller) loadLocked(id string) {
	c.closeSessionLocked()
	c.state = c.state.fresh(id)
	c.ended = false
	c.restartPollLocked()
	if c.widget == nil || id == "" {
		return
	}
	metrics.MediaLoadsTotal.Inc()
	c.sess = &session{c: c, id: id}
	c.unsub = c.widget.Subscribe(c.sess)
	c.call("load", c.widget.Load(id))
	c.log.Debug("media loading", zap.String("id", id))
}

func (c *Controller) closeSessionLocked() {
	c.sess = nil
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
}

// Play resumes playback.
func (c *Controller) Play() {
	c.do(func() {
		if c.readyLocked() {
			c.playLocked()
		}
	})
}

// Pause pauses playback.
func (c *Controller) Pause() {
	c.do(func() {
		if c.readyLocked() {
			c.pauseLocked()
		}
	})
}

// TogglePlay plays or pauses and flips IsPlaying without waiting for the widget.
func (c *Controller) TogglePlay() {
	c.do(func() {
		if !c.readyLocked() {
			return
		}
		if c.state.IsPlaying {
			c.pauseLocked()
			return
		}
		c.playLocked()
	})
}

func (c *Controller) playLocked() {
	c.call("play", c.widget.Play())
	c.state.IsPlaying = true
	c.ended = false
	c.restartPollLocked()
}

func (c *Controller) pauseLocked() {
	c.call("pause", c.widget.Pause())
	c.state.IsPlaying = false
	c.restartPollLocked()
}

// Seek moves to t seconds, clamped into [0, duration].
func (c *Controller) Seek(t float64) {
	c.do(func() {
		if c.readyLocked() {
			c.seekLocked(t)
		}
	})
}

// SkipToStart seeks to the beginning.
func (c *Controller) SkipToStart() {
	c.Seek(0)
}

// SkipToEnd seeks to one second before the end.
func (c *Controller) SkipToEnd() {
	c.do(func() {
		if c.readyLocked() && c.state.Duration > 1 {
			c.seekLocked(c.state.Duration - 1)
		}
	})
}

func (c *Controller) seekLocked(t float64) {
	t = clampFloat(t, 0, c.state.Duration)
	c.call("seek", c.widget.SeekTo(t))
	c.state.CurrentTime = t
}

// SetVolume stores v clamped into [0, 100] and applies it to a ready widget.
func (c *Controller) SetVolume(v int) {
	c.do(func() {
		c.state.Volume = clampInt(v, 0, 100)
		if c.readyLocked() {
			c.call("volume", c.widget.SetVolume(c.state.Volume))
		}
	})
}

// SetRepeatRangeEnabled toggles range looping. Ignored until media is ready.
func (c *Controller) SetRepeatRangeEnabled(enabled bool) {
	c.do(func() {
		if !c.readyLocked() {
			return
		}
		c.state.IsRepeatRange = enabled
		c.restartPollLocked()
	})
}

// SetRepeatRange sets the loop window, clamped into [0, duration] with
// start no later than end. Ignored until media is ready.
func (c *Controller) SetRepeatRange(start float64, end float64) {
	c.do(func() {
		if !c.readyLocked() {
			return
		}
		end = clampFloat(end, 0, c.state.Duration)
		start = clampFloat(start, 0, end)
		c.state.RepeatRange = Range{Start: start, End: end}
		c.restartPollLocked()
	})
}

// SetRepeatTrack toggles single-track repeat.
func (c *Controller) SetRepeatTrack(enabled bool) {
	c.do(func() {
		c.state.IsRepeatTrack = enabled
	})
}

// SetShuffle records the shuffle preference.
func (c *Controller) SetShuffle(enabled bool) {
	c.do(func() {
		c.state.IsShuffle = enabled
	})
}

// CurrentVideo returns the identifier and title of the ready media.
func (c *Controller) CurrentVideo() (VideoData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked() {
		return VideoData{}, false
	}
	data, err := c.widget.VideoData()
	if err != nil {
		c.call("videoData", err)
	}
	if data.ID == "" {
		data.ID = c.state.CurrentTrackID
	}
	if data.Title == "" {
		data.Title = c.state.Title
	}
	return data, true
}

// Tick runs one poll step: sample the position and enforce the repeat range.
func (c *Controller) Tick() {
	c.do(c.tickLocked)
}

func (c *Controller) tickLocked() {
	if !c.readyLocked() {
		return
	}
	t, err := c.widget.CurrentTime()
	if err != nil {
		c.call("currentTime", err)
		return
	}
	if t < 0 {
		t = 0
	}
	c.state.CurrentTime = t
	if c.state.Duration <= 0 {
		if d, err := c.widget.Duration(); err == nil && d > 0 {
			c.state.Duration = d
			c.state.RepeatRange = Range{Start: 0, End: d}
		}
	}

	r := c.state.RepeatRange
	if c.state.IsPlaying && c.state.IsRepeatRange && r.End > 0 && c.state.CurrentTime >= r.End {
		metrics.RepeatRangeLoopsTotal.Inc()
		c.seekLocked(r.Start)
	}
}

func (c *Controller) handleReady(s *session) {
	c.do(func() {
		if c.staleLocked(s) || c.state.IsMediaReady {
			return
		}
		d, err := c.widget.Duration()
		if err != nil || d < 0 {
			c.call("duration", err)
			d = 0
		}
		c.state.Duration = d
		c.state.RepeatRange = Range{Start: 0, End: d}
		c.state.CurrentTime = 0
		c.state.IsMediaReady = true
		if data, err := c.widget.VideoData(); err == nil {
			c.state.Title = data.Title
		}
		c.call("volume", c.widget.SetVolume(c.state.Volume))
		c.log.Info("media ready", zap.String("id", s.id), zap.String("title", c.state.Title), zap.Float64("duration", d))

		if !c.cfg.DisableAutoplay {
			c.playLocked()
			return
		}
		c.restartPollLocked()
	})
}

func (c *Controller) handleStateChange(s *session, code StateCode) {
	c.do(func() {
		if c.staleLocked(s) {
			return
		}
		switch code {
		case StatePlaying:
			c.state.IsPlaying = true
			c.ended = false
			c.restartPollLocked()
		case StatePaused:
			c.state.IsPlaying = false
			c.restartPollLocked()
		case StateEnded:
			c.endedLocked()
		}
	})
}

func (c *Controller) endedLocked() {
	c.state.IsPlaying = false
	if c.state.IsRepeatTrack && c.readyLocked() {
		metrics.TracksEndedTotal.WithLabelValues("repeat").Inc()
		c.seekLocked(0)
		c.playLocked()
		return
	}

	c.ended = true
	c.restartPollLocked()
	next, ok := c.seq.Next()
	if !ok {
		metrics.TracksEndedTotal.WithLabelValues("stop").Inc()
		c.log.Debug("no next track, playback ended", zap.String("id", c.state.CurrentTrackID))
		return
	}
	metrics.TracksEndedTotal.WithLabelValues("advance").Inc()
	c.log.Info("advancing to next track", zap.String("id", next.ID), zap.Int("index", c.seq.Cursor()))
	c.loadLocked(next.ID)
}

// staleLocked reports callbacks from a torn-down session or for an
// identifier other than the one currently loaded.
func (c *Controller) staleLocked(s *session) bool {
	if c.widget != nil && s == c.sess && s.id == c.state.CurrentTrackID {
		return false
	}
	metrics.StaleCallbacksTotal.Inc()
	c.log.Debug("dropping stale widget callback", zap.String("id", s.id), zap.String("current", c.state.CurrentTrackID))
	return true
}

func (c *Controller) readyLocked() bool {
	return c.widget != nil && c.state.IsMediaReady
}

// restartPollLocked cancels any running poller and starts a new one when
// media is playing on an attached widget.
func (c *Controller) restartPollLocked() {
	if c.pollStop != nil {
		c.pollStop()
		c.pollStop = nil
	}
	c.pollGen++
	if c.closed || !c.readyLocked() || !c.state.IsPlaying {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pollStop = cancel
	go c.runPoll(ctx, c.pollGen, c.cfg.PollInterval)
}

func (c *Controller) runPoll(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.do(func() {
				if gen == c.pollGen {
					c.tickLocked()
				}
			})
		}
	}
}

func (c *Controller) polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollStop != nil
}

func (c *Controller) call(op string, err error) {
	if err != nil {
		c.log.Debug("widget call failed", zap.String("op", op), zap.Error(err))
	}
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.state.CurrentTrackID == "":
		return PhaseUnloaded
	case c.ended:
		return PhaseEnded
	case !c.state.IsMediaReady:
		return PhaseLoading
	case c.state.IsPlaying:
		return PhasePlaying
	default:
		return PhasePaused
	}
}

func (c *Controller) do(fn func()) {
	c.mu.Lock()
	fn()
	c.state.Phase = c.phaseLocked()
	c.version++
	c.state.Version = c.version
	snapshot := c.state
	observers := c.observers
	c.mu.Unlock()
	for _, observer := range observers {
		observer(snapshot)
	}
}

// session binds widget callbacks to the identifier they were opened for.
type session struct {
	c  *Controller
	id string
}

func (s *session) OnReady() {
	s.c.handleReady(s)
}

func (s *session) OnStateChange(code StateCode) {
	s.c.handleStateChange(s, code)
}
