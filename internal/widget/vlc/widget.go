// Package vlc drives a VLC instance as the playback widget.
package vlc

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/internal/player"
)

// DefaultWatchInterval is how often status.json is polled for events.
const DefaultWatchInterval = 250 * time.Millisecond

// Config configures a Widget.
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	Timeout       time.Duration
	WatchInterval time.Duration
	Log           *zap.Logger
}

// Widget implements player.Widget on top of VLC. VLC has no push events,
// so Run watches status.json and synthesizes ready, state and end signals.
type Widget struct {
	driver   *Driver
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	listeners map[uint64]player.Listener
	nextSub   uint64
	gen       uint64
	id        string
	title     string
	time      float64
	length    float64
	reported  string
	ready     bool
	started   bool
	eosSeen   bool
}

// New creates a widget for the VLC instance at cfg.BaseURL.
func New(cfg Config) (*Widget, error) {
	driver, err := NewDriver(cfg.BaseURL, cfg.Username, cfg.Password, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return newWidget(driver, cfg), nil
}

func newWidget(driver *Driver, cfg Config) *Widget {
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultWatchInterval
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Widget{
		driver:    driver,
		interval:  cfg.WatchInterval,
		log:       cfg.Log,
		listeners: map[uint64]player.Listener{},
	}
}

// Run watches VLC until ctx is done.
func (w *Widget) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.watch()
		}
	}
}

func (w *Widget) Load(id string) error {
	if id == "" {
		return errors.New("id required")
	}
	w.mu.Lock()
	w.gen++
	w.id = id
	w.title = ""
	w.time = 0
	w.length = 0
	w.reported = ""
	w.ready = false
	w.started = false
	w.eosSeen = false
	w.mu.Unlock()
	return w.driver.Open(media.WatchURL(id))
}

// CurrentTime returns the position seen by the last watch, adjusted by seeks.
func (w *Widget) CurrentTime() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time, nil
}

func (w *Widget) Duration() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.length, nil
}

func (w *Widget) SeekTo(seconds float64) error {
	if err := w.driver.Seek(seconds); err != nil {
		return err
	}
	w.mu.Lock()
	w.time = seconds
	w.mu.Unlock()
	return nil
}

func (w *Widget) Play() error {
	return w.driver.Play()
}

func (w *Widget) Pause() error {
	return w.driver.Pause()
}

func (w *Widget) SetVolume(volume int) error {
	return w.driver.SetVolume(volume)
}

func (w *Widget) VideoData() (player.VideoData, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return player.VideoData{ID: w.id, Title: w.title}, nil
}

func (w *Widget) Subscribe(l player.Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.listeners[id] = l
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

type event struct {
	ready bool
	code  player.StateCode
}

// watch samples status.json once and delivers any resulting events outside
// the widget lock.
func (w *Widget) watch() {
	w.mu.Lock()
	gen := w.gen
	w.mu.Unlock()

	status, err := w.driver.Status()
	if err != nil {
		w.log.Debug("vlc status failed", zap.Error(err))
		return
	}
	w.apply(gen, status)
}

// apply folds a sample taken during load generation gen into the widget.
// Samples that raced a Load belong to the previous input and are dropped.
func (w *Widget) apply(gen uint64, status Status) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		w.log.Debug("dropping status sampled before load")
		return
	}
	events := w.observeLocked(status)
	listeners := make([]player.Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			if ev.ready {
				l.OnReady()
				continue
			}
			l.OnStateChange(ev.code)
		}
	}
}

func (w *Widget) observeLocked(status Status) []event {
	if w.id == "" {
		return nil
	}
	w.time = status.Time
	if status.Length > 0 {
		w.length = status.Length
	}
	if title := status.Title(); title != "" {
		w.title = title
	}

	var events []event
	if !w.ready {
		if w.length <= 0 || status.State == "stopped" {
			return nil
		}
		w.ready = true
		events = append(events, event{ready: true})
	}
	// After an end, only a fresh playing sample short of the end re-arms the
	// end signal; VLC reports stopped for a while when reopening a stream.
	if w.eosSeen {
		if status.State != "playing" || (w.length > 0 && status.Time >= w.length) {
			return events
		}
		w.eosSeen = false
	}

	switch status.State {
	case "playing":
		w.started = true
		if w.reported != status.State {
			events = append(events, event{code: player.StatePlaying})
		}
		if w.length > 0 && status.Time >= w.length {
			w.eosSeen = true
			events = append(events, event{code: player.StateEnded})
		}
	case "paused":
		if w.reported != status.State {
			events = append(events, event{code: player.StatePaused})
		}
	case "stopped":
		if w.started {
			w.eosSeen = true
			events = append(events, event{code: player.StateEnded})
		}
	}
	w.reported = status.State
	return events
}
