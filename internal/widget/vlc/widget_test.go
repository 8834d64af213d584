package vlc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/internal/player"
)

type testTransport func(*http.Request) (*http.Response, error)

func (t testTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t(r)
}

type fakeVLC struct {
	mu       sync.Mutex
	status   map[string]any
	commands []url.Values
	user     string
	pass     string
	held     *heldRequest
}

// heldRequest parks the next plain status request after its payload has been
// read, until release is closed.
type heldRequest struct {
	entered chan struct{}
	release chan struct{}
}

func (f *fakeVLC) holdNextStatus() *heldRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = &heldRequest{entered: make(chan struct{}), release: make(chan struct{})}
	return f.held
}

func newFakeVLC() *fakeVLC {
	return &fakeVLC{status: map[string]any{"state": "stopped", "time": 0, "length": 0}}
}

func (f *fakeVLC) set(state string, time int, length int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = map[string]any{
		"state":  state,
		"time":   time,
		"length": length,
		"information": map[string]any{
			"category": map[string]any{
				"meta": map[string]any{"title": "Never Gonna Give You Up"},
			},
		},
	}
}

func (f *fakeVLC) seen(command string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []url.Values
	for _, values := range f.commands {
		if values.Get("command") == command {
			out = append(out, values)
		}
	}
	return out
}

func (f *fakeVLC) transport() http.RoundTripper {
	return testTransport(func(req *http.Request) (*http.Response, error) {
		f.mu.Lock()
		var held *heldRequest
		if query := req.URL.Query(); query.Get("command") != "" {
			f.commands = append(f.commands, query)
		} else {
			held, f.held = f.held, nil
		}
		f.user, f.pass, _ = req.BasicAuth()
		payload, _ := json.Marshal(f.status)
		f.mu.Unlock()
		if held != nil {
			close(held.entered)
			<-held.release
		}
		return &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewBuffer(payload)),
		}, nil
	})
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "ready")
}

func (r *recorder) OnStateChange(code player.StateCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("state:%d", code))
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func newTestWidget(t *testing.T, vlc *fakeVLC) *Widget {
	t.Helper()
	driver, err := NewDriver("vlc.test:8080", "", "secret", 2*time.Second)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	driver.http = &http.Client{Transport: vlc.transport()}
	return newWidget(driver, Config{})
}

func expectEvents(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestLoadOpensWatchURL(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)
	if err := w.Load("dQw4w9WgXcQ"); err != nil {
		t.Fatalf("load: %v", err)
	}
	plays := vlc.seen("in_play")
	if len(plays) != 1 || plays[0].Get("input") != media.WatchURL("dQw4w9WgXcQ") {
		t.Fatalf("expected in_play with watch url, got %v", plays)
	}
	if len(vlc.seen("pl_empty")) != 1 {
		t.Fatalf("expected playlist cleared before load")
	}
	if vlc.pass != "secret" {
		t.Fatalf("expected basic auth password")
	}
	if err := w.Load(""); err == nil {
		t.Fatalf("expected empty id to fail")
	}
}

func TestWatchSynthesizesEvents(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)
	rec := &recorder{}
	w.Subscribe(rec)

	w.watch()
	expectEvents(t, rec.take())

	if err := w.Load("dQw4w9WgXcQ"); err != nil {
		t.Fatalf("load: %v", err)
	}
	vlc.set("playing", 0, 0)
	w.watch()
	expectEvents(t, rec.take())

	vlc.set("playing", 1, 212)
	w.watch()
	expectEvents(t, rec.take(), "ready", "state:1")

	d, _ := w.Duration()
	data, _ := w.VideoData()
	if d != 212 || data.Title != "Never Gonna Give You Up" || data.ID != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected duration %v or data %+v", d, data)
	}

	vlc.set("playing", 2, 212)
	w.watch()
	expectEvents(t, rec.take())
	if now, _ := w.CurrentTime(); now != 2 {
		t.Fatalf("expected current time 2, got %v", now)
	}

	vlc.set("paused", 2, 212)
	w.watch()
	expectEvents(t, rec.take(), "state:2")

	vlc.set("stopped", 0, 212)
	w.watch()
	expectEvents(t, rec.take(), "state:0")
	w.watch()
	expectEvents(t, rec.take())
}

func TestEndSignalsOncePerPlayback(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)
	rec := &recorder{}
	unsub := w.Subscribe(rec)

	_ = w.Load("dQw4w9WgXcQ")
	vlc.set("playing", 10, 10)
	w.watch()
	expectEvents(t, rec.take(), "ready", "state:1", "state:0")
	w.watch()
	expectEvents(t, rec.take())

	if err := w.SeekTo(0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := w.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	w.watch()
	expectEvents(t, rec.take())

	vlc.set("playing", 1, 10)
	w.watch()
	expectEvents(t, rec.take())
	vlc.set("playing", 10, 10)
	w.watch()
	expectEvents(t, rec.take(), "state:0")

	unsub()
	_ = w.Load("aaaaaaaaaaa")
	vlc.set("playing", 1, 30)
	w.watch()
	expectEvents(t, rec.take())
}

func TestDriverCommands(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)

	if err := w.SetVolume(50); err != nil {
		t.Fatalf("volume: %v", err)
	}
	if err := w.SeekTo(12.7); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := w.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_ = w.driver.SetVolume(150)

	volumes := vlc.seen("volume")
	if len(volumes) != 2 || volumes[0].Get("val") != "128" || volumes[1].Get("val") != "256" {
		t.Fatalf("unexpected volume commands %v", volumes)
	}
	seeks := vlc.seen("seek")
	if len(seeks) != 1 || seeks[0].Get("val") != "12" {
		t.Fatalf("unexpected seek commands %v", seeks)
	}
	if len(vlc.seen("pl_forcepause")) != 1 {
		t.Fatalf("expected pl_forcepause")
	}
}

func TestDriverReportsHTTPErrors(t *testing.T) {
	driver, err := NewDriver("http://vlc.test", "", "", time.Second)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	driver.http = &http.Client{Transport: testTransport(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 401,
			Status:     "401 Unauthorized",
			Body:       io.NopCloser(bytes.NewBuffer(nil)),
		}, nil
	})}
	if _, err := driver.Status(); err == nil {
		t.Fatalf("expected error on 401")
	}
	if _, err := NewDriver("  ", "", "", 0); err == nil {
		t.Fatalf("expected base url required")
	}
}

func TestStoppedWhileReopeningDoesNotRepeatEnd(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)
	rec := &recorder{}
	w.Subscribe(rec)

	_ = w.Load("dQw4w9WgXcQ")
	vlc.set("playing", 5, 212)
	w.watch()
	expectEvents(t, rec.take(), "ready", "state:1")

	vlc.set("stopped", 0, 212)
	w.watch()
	expectEvents(t, rec.take(), "state:0")

	if err := w.SeekTo(0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := w.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	for i := 0; i < 3; i++ {
		w.watch()
	}
	expectEvents(t, rec.take())

	vlc.set("playing", 1, 212)
	w.watch()
	expectEvents(t, rec.take(), "state:1")

	vlc.set("stopped", 0, 212)
	w.watch()
	expectEvents(t, rec.take(), "state:0")
}

func TestSampleRacingLoadIsDropped(t *testing.T) {
	vlc := newFakeVLC()
	w := newTestWidget(t, vlc)
	rec := &recorder{}
	w.Subscribe(rec)

	_ = w.Load("aaaaaaaaaaa")
	vlc.set("playing", 100, 300)
	held := vlc.holdNextStatus()
	done := make(chan struct{})
	go func() {
		w.watch()
		close(done)
	}()
	<-held.entered

	if err := w.Load("bbbbbbbbbbb"); err != nil {
		t.Fatalf("load: %v", err)
	}
	vlc.set("stopped", 0, 0)
	close(held.release)
	<-done

	expectEvents(t, rec.take())
	if d, _ := w.Duration(); d != 0 {
		t.Fatalf("expected no duration from previous input, got %v", d)
	}
	data, _ := w.VideoData()
	if data.ID != "bbbbbbbbbbb" || data.Title != "" {
		t.Fatalf("unexpected data %+v", data)
	}

	vlc.set("playing", 1, 180)
	w.watch()
	expectEvents(t, rec.take(), "ready", "state:1")
	if d, _ := w.Duration(); d != 180 {
		t.Fatalf("expected duration 180, got %v", d)
	}
}
