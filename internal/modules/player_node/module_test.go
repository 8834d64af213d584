package playernode

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/adapters/clock"
	"github.com/mikey-austin/loop_utopia/internal/player"
	"github.com/mikey-austin/loop_utopia/internal/playlist"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

const (
	nodeID     = "lu:player:den"
	replyTopic = "lu/v1/reply/test"
	testURL    = "https://youtu.be/dQw4w9WgXcQ"
	testID     = "dQw4w9WgXcQ"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu        sync.Mutex
	published []published
	subs      map[string]paho.MessageHandler
	unsubs    []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{subs: map[string]paho.MessageHandler{}}
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: payload})
	return nil
}

func (c *fakeClient) Subscribe(topic string, _ byte, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, topic)
	c.unsubs = append(c.unsubs, topic)
	return nil
}

func (c *fakeClient) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *fakeClient) all(topic string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, p := range c.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeClient) last(t *testing.T, topic string) published {
	t.Helper()
	msgs := c.all(topic)
	if len(msgs) == 0 {
		t.Fatalf("nothing published on %s", topic)
	}
	return msgs[len(msgs)-1]
}

type fakeWidget struct {
	mu        sync.Mutex
	loads     []string
	seeks     []float64
	volume    int
	duration  float64
	title     string
	current   string
	listeners map[int]player.Listener
	next      int
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{duration: 200, title: "Test Video", listeners: map[int]player.Listener{}}
}

func (w *fakeWidget) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (w *fakeWidget) Load(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loads = append(w.loads, id)
	w.current = id
	return nil
}

func (w *fakeWidget) CurrentTime() (float64, error) { return 0, nil }

func (w *fakeWidget) Duration() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration, nil
}

func (w *fakeWidget) SeekTo(seconds float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seeks = append(w.seeks, seconds)
	return nil
}

func (w *fakeWidget) Play() error  { return nil }
func (w *fakeWidget) Pause() error { return nil }

func (w *fakeWidget) SetVolume(volume int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.volume = volume
	return nil
}

func (w *fakeWidget) VideoData() (player.VideoData, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return player.VideoData{ID: w.current, Title: w.title}, nil
}

func (w *fakeWidget) Subscribe(l player.Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.next
	w.next++
	w.listeners[id] = l
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

func (w *fakeWidget) snapshot() []player.Listener {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]player.Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		out = append(out, l)
	}
	return out
}

func (w *fakeWidget) ready() {
	for _, l := range w.snapshot() {
		l.OnReady()
	}
}

func (w *fakeWidget) emit(code player.StateCode) {
	for _, l := range w.snapshot() {
		l.OnStateChange(code)
	}
}

func (w *fakeWidget) loaded() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.loads...)
}

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func newTestModule(t *testing.T, stored string) (*Module, *fakeClient, *fakeWidget) {
	t.Helper()
	client := newFakeClient()
	widget := newFakeWidget()
	store := playlist.NewStore(playlist.NewMemoryPort(stored, true), playlist.Options{})
	m, err := newModule(zap.NewNop(), client, store, widget, nil, Config{
		NodeID:       nodeID,
		PollInterval: time.Hour,
		Volume:       40,
	})
	if err != nil {
		t.Fatalf("newModule: %v", err)
	}
	m.clock = clock.Fixed(1700000000)
	m.ctrl.Attach(widget)
	t.Cleanup(m.ctrl.Close)
	return m, client, widget
}

func send(t *testing.T, m *Module, client *fakeClient, cmdType string, body any) lu.ReplyEnvelope {
	t.Helper()
	cmd, err := lu.NewCommand(cmdType, body)
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	cmd.ID = "cmd-1"
	cmd.TS = 1
	cmd.From = "test"
	cmd.ReplyTo = replyTopic
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	m.handleMessage(payload)

	var reply lu.ReplyEnvelope
	if err := json.Unmarshal(client.last(t, replyTopic).payload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.ID != "cmd-1" {
		t.Fatalf("unexpected reply id %q", reply.ID)
	}
	return reply
}

func expectOK(t *testing.T, reply lu.ReplyEnvelope, out any) {
	t.Helper()
	if !reply.OK || reply.Err != nil {
		t.Fatalf("expected ok reply, got %+v", reply.Err)
	}
	if out != nil {
		if err := json.Unmarshal(reply.Body, out); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
}

func expectCode(t *testing.T, reply lu.ReplyEnvelope, code string) {
	t.Helper()
	if reply.OK || reply.Err == nil || reply.Err.Code != code {
		t.Fatalf("expected %s, got %+v", code, reply)
	}
}

func retainedState(t *testing.T, client *fakeClient) lu.PlayerState {
	t.Helper()
	msg := client.last(t, lu.TopicState(lu.BaseTopic, nodeID))
	if !msg.retained {
		t.Fatalf("state must be retained")
	}
	var state lu.PlayerState
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func events(t *testing.T, client *fakeClient) []lu.Event {
	t.Helper()
	var out []lu.Event
	for _, msg := range client.all(lu.TopicEvents(lu.BaseTopic, nodeID)) {
		var evt lu.Event
		if err := json.Unmarshal(msg.payload, &evt); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, evt)
	}
	return out
}

func TestNewModuleRequiresNodeID(t *testing.T) {
	store := playlist.NewStore(playlist.NewMemoryPort("", false), playlist.Options{})
	if _, err := newModule(nil, newFakeClient(), store, nil, nil, Config{}); err == nil {
		t.Fatalf("expected node_id error")
	}
}

func TestMediaLoadPublishesStateAndEvents(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)

	var loaded lu.MediaLoadReply
	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), &loaded)
	if loaded.ID != testID || loaded.Restarted {
		t.Fatalf("unexpected load reply %+v", loaded)
	}
	if got := widget.loaded(); len(got) != 1 || got[0] != testID {
		t.Fatalf("unexpected widget loads %v", got)
	}
	if state := retainedState(t, client); state.Phase != "loading" || state.CurrentTrackID != testID {
		t.Fatalf("unexpected state before ready %+v", state)
	}

	widget.ready()

	state := retainedState(t, client)
	if state.Phase != "playing" || !state.IsMediaReady || state.Duration != 200 || state.Volume != 40 {
		t.Fatalf("unexpected state after ready %+v", state)
	}
	if state.Title != "Test Video" || state.Playlist != "favorites" || state.TS != 1700000000 {
		t.Fatalf("unexpected state metadata %+v", state)
	}
	evts := events(t, client)
	if len(evts) != 1 || evts[0].Type != lu.EventMediaLoaded {
		t.Fatalf("expected one media.loaded event, got %+v", evts)
	}
	var body lu.MediaEventBody
	if err := json.Unmarshal(evts[0].Body, &body); err != nil || body.ID != testID {
		t.Fatalf("unexpected event body %s", evts[0].Body)
	}

	widget.emit(player.StateEnded)
	evts = events(t, client)
	if len(evts) != 2 || evts[1].Type != lu.EventMediaEnded {
		t.Fatalf("expected media.ended after end of an empty playlist, got %+v", evts)
	}
	if state := retainedState(t, client); state.Phase != "ended" {
		t.Fatalf("expected ended phase, got %s", state.Phase)
	}
}

func TestStaleSnapshotsAreNotPublished(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)
	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), nil)
	widget.ready()
	playing := m.ctrl.Snapshot()
	if playing.Phase != player.PhasePlaying {
		t.Fatalf("expected playing, got %s", playing.Phase)
	}

	widget.emit(player.StateEnded)
	ended := m.ctrl.Snapshot()

	// A tick computed before the end lands after it.
	m.onChange(playing)
	if state := retainedState(t, client); state.Phase != "ended" || state.IsPlaying {
		t.Fatalf("stale snapshot overwrote retained state %+v", state)
	}
	if err := m.publishState(); err != nil {
		t.Fatalf("publish state: %v", err)
	}
	if state := retainedState(t, client); state.Phase != "ended" {
		t.Fatalf("expected ended after republish, got %s", state.Phase)
	}

	m.onChange(ended)
	var ends int
	for _, evt := range events(t, client) {
		if evt.Type == lu.EventMediaEnded {
			ends++
		}
	}
	if ends != 1 {
		t.Fatalf("expected one media.ended event, got %d", ends)
	}
}

func TestMediaLoadResubmitRestarts(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)
	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), nil)
	widget.ready()

	var loaded lu.MediaLoadReply
	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: "https://www.youtube.com/watch?v=" + testID}), &loaded)
	if !loaded.Restarted {
		t.Fatalf("expected restart")
	}
	if got := widget.loaded(); len(got) != 1 {
		t.Fatalf("restart must not reload the widget, loads %v", got)
	}
}

func TestMediaLoadInvalidInput(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)
	expectCode(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: "not a link"}), lu.CodeInvalid)
	if got := widget.loaded(); len(got) != 0 {
		t.Fatalf("invalid input must not load, got %v", got)
	}
}

func TestTransportRequiresReadyMedia(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)

	for _, cmdType := range []string{lu.CmdPlaybackPlay, lu.CmdPlaybackPause, lu.CmdPlaybackToggle, lu.CmdPlaybackSkipStart, lu.CmdPlaybackSkipEnd} {
		expectCode(t, send(t, m, client, cmdType, lu.Empty{}), lu.CodeNotReady)
	}
	expectCode(t, send(t, m, client, lu.CmdPlaybackSeek, lu.PlaybackSeekBody{Seconds: 10}), lu.CodeNotReady)
	expectCode(t, send(t, m, client, lu.CmdPlaybackSetRepeatRange, lu.RepeatRangeBody{Start: 1, End: 2}), lu.CodeNotReady)
	expectCode(t, send(t, m, client, lu.CmdPlaybackSetRepeatRangeOn, lu.ToggleBody{Enabled: true}), lu.CodeNotReady)

	var state lu.PlayerState
	expectOK(t, send(t, m, client, lu.CmdPlaybackSetVolume, lu.PlaybackSetVolumeBody{Volume: 130}), &state)
	if state.Volume != 100 {
		t.Fatalf("expected clamped volume, got %d", state.Volume)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackSetRepeatTrack, lu.ToggleBody{Enabled: true}), &state)
	expectOK(t, send(t, m, client, lu.CmdPlaybackSetShuffle, lu.ToggleBody{Enabled: true}), &state)
	if !state.IsRepeatTrack || !state.IsShuffle {
		t.Fatalf("expected preferences stored before load, got %+v", state)
	}

	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), nil)
	widget.ready()
	if widget.volume != 100 {
		t.Fatalf("expected stored volume applied on ready, got %d", widget.volume)
	}
}

func TestPlaybackCommands(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)
	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), nil)
	widget.ready()

	var state lu.PlayerState
	expectOK(t, send(t, m, client, lu.CmdPlaybackToggle, lu.Empty{}), &state)
	if state.IsPlaying || state.Phase != "paused" {
		t.Fatalf("expected toggle to pause, got %+v", state)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackSeek, lu.PlaybackSeekBody{Seconds: 500}), &state)
	if state.CurrentTime != 200 {
		t.Fatalf("expected seek clamped to duration, got %v", state.CurrentTime)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackSkipEnd, lu.Empty{}), &state)
	if state.CurrentTime != 199 {
		t.Fatalf("expected skip to end at 199, got %v", state.CurrentTime)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackSetRepeatRange, lu.RepeatRangeBody{Start: 30, End: 20}), &state)
	if state.RepeatRange.Start != 20 || state.RepeatRange.End != 20 {
		t.Fatalf("unexpected clamped range %+v", state.RepeatRange)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackSetRepeatRangeOn, lu.ToggleBody{Enabled: true}), &state)
	if !state.IsRepeatRange {
		t.Fatalf("expected repeat range on")
	}
	expectOK(t, send(t, m, client, lu.CmdPlaybackPlay, lu.Empty{}), &state)
	if !state.IsPlaying {
		t.Fatalf("expected playing")
	}

	var got lu.PlayerState
	expectOK(t, send(t, m, client, lu.CmdStateGet, lu.Empty{}), &got)
	if got.CurrentTrackID != testID || !got.IsRepeatRange {
		t.Fatalf("unexpected state.get %+v", got)
	}
}

func TestPlaylistCommands(t *testing.T) {
	m, client, _ := newTestModule(t, `{"favorites":[]}`)

	var pl lu.PlaylistReply
	expectOK(t, send(t, m, client, lu.CmdPlaylistCreate, lu.PlaylistNameBody{Name: "warmups"}), &pl)
	if pl.Name != "warmups" || !pl.Active || len(pl.Tracks) != 0 {
		t.Fatalf("unexpected create reply %+v", pl)
	}
	expectCode(t, send(t, m, client, lu.CmdPlaylistCreate, lu.PlaylistNameBody{Name: "warmups"}), lu.CodeInvalid)
	expectCode(t, send(t, m, client, lu.CmdPlaylistCreate, lu.PlaylistNameBody{Name: "  "}), lu.CodeInvalid)

	expectOK(t, send(t, m, client, lu.CmdPlaylistAddTrack, lu.PlaylistAddTrackBody{Input: testURL}), &pl)
	if pl.Name != "warmups" || len(pl.Tracks) != 1 || pl.Tracks[0].ID != testID || pl.Tracks[0].Title != testID {
		t.Fatalf("unexpected add reply %+v", pl)
	}
	expectOK(t, send(t, m, client, lu.CmdPlaylistAddTrack, lu.PlaylistAddTrackBody{Name: "favorites", Input: "https://youtu.be/aaaaaaaaaaa", Title: "Scales"}), &pl)
	if pl.Name != "favorites" || pl.Tracks[0].Title != "Scales" {
		t.Fatalf("unexpected add reply %+v", pl)
	}
	expectCode(t, send(t, m, client, lu.CmdPlaylistAddTrack, lu.PlaylistAddTrackBody{Input: "nope"}), lu.CodeInvalid)
	expectCode(t, send(t, m, client, lu.CmdPlaylistAddTrack, lu.PlaylistAddTrackBody{Name: "missing", Input: testURL}), lu.CodeNotFound)

	var list lu.PlaylistListReply
	expectOK(t, send(t, m, client, lu.CmdPlaylistList, lu.Empty{}), &list)
	if list.Active != "warmups" || len(list.Playlists) != 2 || list.Playlists[0].Name != "favorites" || list.Playlists[0].Tracks != 1 {
		t.Fatalf("unexpected list %+v", list)
	}

	expectOK(t, send(t, m, client, lu.CmdPlaylistSelect, lu.PlaylistNameBody{Name: "favorites"}), &pl)
	if !pl.Active {
		t.Fatalf("expected favorites active")
	}
	expectCode(t, send(t, m, client, lu.CmdPlaylistSelect, lu.PlaylistNameBody{Name: "missing"}), lu.CodeNotFound)
	if state := retainedState(t, client); state.Playlist != "favorites" {
		t.Fatalf("expected state to follow the active playlist, got %q", state.Playlist)
	}

	expectOK(t, send(t, m, client, lu.CmdPlaylistGet, lu.PlaylistNameBody{Name: "warmups"}), &pl)
	if pl.Active || len(pl.Tracks) != 1 {
		t.Fatalf("unexpected get reply %+v", pl)
	}
	expectCode(t, send(t, m, client, lu.CmdPlaylistGet, lu.PlaylistNameBody{Name: "missing"}), lu.CodeNotFound)

	expectCode(t, send(t, m, client, lu.CmdPlaylistRemoveTrack, lu.PlaylistIndexBody{Name: "warmups", Index: 5}), lu.CodeNotFound)
	expectOK(t, send(t, m, client, lu.CmdPlaylistRemoveTrack, lu.PlaylistIndexBody{Name: "warmups", Index: 0}), &pl)
	if len(pl.Tracks) != 0 {
		t.Fatalf("expected empty playlist after remove")
	}

	expectOK(t, send(t, m, client, lu.CmdPlaylistShuffle, lu.PlaylistNameBody{}), &pl)
	if pl.Name != "favorites" {
		t.Fatalf("expected shuffle of the active playlist, got %q", pl.Name)
	}
	expectCode(t, send(t, m, client, lu.CmdPlaylistShuffle, lu.PlaylistNameBody{Name: "missing"}), lu.CodeNotFound)

	expectCode(t, send(t, m, client, lu.CmdPlaylistDelete, lu.PlaylistNameBody{Name: "missing"}), lu.CodeNotFound)
	expectOK(t, send(t, m, client, lu.CmdPlaylistDelete, lu.PlaylistNameBody{Name: "favorites"}), &list)
	if list.Active != "warmups" || len(list.Playlists) != 1 {
		t.Fatalf("unexpected list after delete %+v", list)
	}
}

func TestPlaylistAddCurrent(t *testing.T) {
	m, client, widget := newTestModule(t, `{"favorites":[]}`)
	expectCode(t, send(t, m, client, lu.CmdPlaylistAddCurrent, lu.PlaylistNameBody{}), lu.CodeNotReady)

	expectOK(t, send(t, m, client, lu.CmdMediaLoad, lu.MediaLoadBody{Input: testURL}), nil)
	widget.ready()

	var pl lu.PlaylistReply
	expectOK(t, send(t, m, client, lu.CmdPlaylistAddCurrent, lu.PlaylistNameBody{}), &pl)
	if len(pl.Tracks) != 1 || pl.Tracks[0].ID != testID || pl.Tracks[0].Title != "Test Video" {
		t.Fatalf("unexpected add current reply %+v", pl)
	}
}

func TestPlaylistPlayAndAdvance(t *testing.T) {
	stored := `{"favorites":[],"warmups":[{"id":"aaaaaaaaaaa","title":"A"},{"id":"bbbbbbbbbbb","title":"B"}]}`
	m, client, widget := newTestModule(t, stored)

	expectCode(t, send(t, m, client, lu.CmdPlaylistPlay, lu.PlaylistIndexBody{Name: "missing"}), lu.CodeNotFound)
	expectCode(t, send(t, m, client, lu.CmdPlaylistPlay, lu.PlaylistIndexBody{Name: "warmups", Index: 7}), lu.CodeNotFound)

	var state lu.PlayerState
	expectOK(t, send(t, m, client, lu.CmdPlaylistPlay, lu.PlaylistIndexBody{Name: "warmups", Index: 1}), &state)
	if state.CurrentTrackID != "bbbbbbbbbbb" || state.Playlist != "warmups" || state.Cursor != 1 {
		t.Fatalf("unexpected state %+v", state)
	}

	widget.ready()
	widget.emit(player.StateEnded)

	loads := widget.loaded()
	if len(loads) != 2 || loads[1] != "aaaaaaaaaaa" {
		t.Fatalf("expected wraparound to the first track, loads %v", loads)
	}
	if state := retainedState(t, client); state.Cursor != 0 || state.Phase != "loading" {
		t.Fatalf("unexpected state after advance %+v", state)
	}
	for _, evt := range events(t, client) {
		if evt.Type == lu.EventMediaEnded {
			t.Fatalf("advance must not publish media.ended")
		}
	}
}

func TestRejectsBadEnvelopes(t *testing.T) {
	m, client, _ := newTestModule(t, `{"favorites":[]}`)
	expectCode(t, send(t, m, client, "queue.set", lu.Empty{}), lu.CodeInvalid)

	payload, _ := json.Marshal(lu.CommandEnvelope{ID: "cmd-1", Type: lu.CmdStateGet, From: "test", ReplyTo: replyTopic, Body: []byte("{}")})
	m.handleMessage(payload)
	var reply lu.ReplyEnvelope
	if err := json.Unmarshal(client.last(t, replyTopic).payload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	expectCode(t, reply, lu.CodeInvalid)

	before := len(client.all(replyTopic))
	m.handleMessage([]byte("{not json"))
	if len(client.all(replyTopic)) != before {
		t.Fatalf("malformed payload must not be answered")
	}
}

func TestRunAnnouncesAndServes(t *testing.T) {
	client := newFakeClient()
	widget := newFakeWidget()
	store := playlist.NewStore(playlist.NewMemoryPort("", false), playlist.Options{Defaults: []string{"favorites"}})
	closer := &closeRecorder{}
	m, err := newModule(zap.NewNop(), client, store, widget, closer, Config{NodeID: nodeID, PollInterval: time.Hour})
	if err != nil {
		t.Fatalf("newModule: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	cmdTopic := lu.TopicCommands(lu.BaseTopic, nodeID)
	deadline := time.Now().Add(time.Second)
	for !client.subscribed(cmdTopic) {
		if time.Now().After(deadline) {
			t.Fatalf("module did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg := client.last(t, lu.TopicPresence(lu.BaseTopic, nodeID))
	var presence lu.Presence
	if err := json.Unmarshal(msg.payload, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if !msg.retained || presence.Kind != "player" || presence.NodeID != nodeID || presence.Name != "Loop Player" {
		t.Fatalf("unexpected presence %+v", presence)
	}
	if state := retainedState(t, client); state.Phase != "unloaded" || state.Playlist != "favorites" {
		t.Fatalf("unexpected initial state %+v", state)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop")
	}
	if client.subscribed(cmdTopic) {
		t.Fatalf("expected unsubscribe on shutdown")
	}
	if !closer.closed {
		t.Fatalf("expected storage to be closed")
	}
}
