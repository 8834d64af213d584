// Package playernode exposes a player Controller, its playlist Store and a
// VLC widget as an MQTT node.
package playernode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/adapters/clock"
	"github.com/mikey-austin/loop_utopia/internal/adapters/persist"
	"github.com/mikey-austin/loop_utopia/internal/player"
	"github.com/mikey-austin/loop_utopia/internal/playlist"
	"github.com/mikey-austin/loop_utopia/internal/ports"
	"github.com/mikey-austin/loop_utopia/internal/widget/vlc"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Widget is a player.Widget that needs a background loop, such as the VLC watcher.
type Widget interface {
	player.Widget
	Run(ctx context.Context) error
}

// Config configures the player node module.
type Config struct {
	NodeID           string
	TopicBase        string
	Name             string
	PollInterval     time.Duration
	Volume           int
	DisableAutoplay  bool
	DefaultPlaylists []string
	Widget           vlc.Config
	Storage          persist.Config
}

// Module runs one player node.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	ctrl     *player.Controller
	store    *playlist.Store
	widget   Widget
	closer   io.Closer
	clock    ports.Clock
	config   Config
	cmdTopic string

	mu sync.Mutex

	pubMu sync.Mutex
	last  player.State
}

// NewModule opens the playlist backend and the VLC widget and builds the node.
func NewModule(log *zap.Logger, client mqttClient, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Widget.BaseURL) == "" {
		return nil, errors.New("widget base_url required")
	}
	port, closer, err := persist.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	cfg.Widget.Log = log.With(zap.String("component", "vlc"))
	widget, err := vlc.New(cfg.Widget)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	store := playlist.NewStore(port, playlist.Options{
		Defaults: cfg.DefaultPlaylists,
		Log:      log.With(zap.String("component", "playlist")),
	})
	return newModule(log, client, store, widget, closer, cfg)
}

func newModule(log *zap.Logger, client mqttClient, store *playlist.Store, widget Widget, closer io.Closer, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = lu.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Loop Player"
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctrl := player.NewController(store, player.Config{
		PollInterval:    cfg.PollInterval,
		Volume:          cfg.Volume,
		DisableAutoplay: cfg.DisableAutoplay,
		Log:             log.With(zap.String("component", "controller")),
	})
	m := &Module{
		log:      log,
		client:   client,
		ctrl:     ctrl,
		store:    store,
		widget:   widget,
		closer:   closer,
		clock:    clock.Clock{},
		config:   cfg,
		cmdTopic: lu.TopicCommands(cfg.TopicBase, cfg.NodeID),
		last:     ctrl.Snapshot(),
	}
	ctrl.OnChange(m.onChange)
	return m, nil
}

// Run attaches the widget, announces the node and serves commands until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	defer func() {
		m.ctrl.Close()
		if m.closer != nil {
			if err := m.closer.Close(); err != nil {
				m.log.Warn("close playlist storage", zap.Error(err))
			}
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	widgetErr := make(chan error, 1)
	if m.widget != nil {
		go func() {
			widgetErr <- m.widget.Run(ctx)
		}()
		m.ctrl.Attach(m.widget)
	}

	if err := m.publishPresence(); err != nil {
		return err
	}
	if err := m.publishState(); err != nil {
		return err
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg.Payload())
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	m.log.Info("player node ready",
		zap.String("node_id", m.config.NodeID),
		zap.String("playlist", m.store.Active()),
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-widgetErr:
		if err != nil && ctx.Err() == nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
}

func (m *Module) publishPresence() error {
	presence := lu.Presence{
		NodeID: m.config.NodeID,
		Kind:   "player",
		Name:   m.config.Name,
		Caps: map[string]any{
			"seek":        true,
			"volume":      true,
			"repeatRange": true,
			"playlists":   true,
		},
		TS: m.clock.NowUnix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(lu.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

// State returns the wire form of the current player state.
func (m *Module) State() lu.PlayerState {
	return m.wireState(m.ctrl.Snapshot())
}

func (m *Module) wireState(s player.State) lu.PlayerState {
	return lu.PlayerState{
		Phase:          string(s.Phase),
		CurrentTime:    s.CurrentTime,
		Duration:       s.Duration,
		IsPlaying:      s.IsPlaying,
		Volume:         s.Volume,
		RepeatRange:    lu.RepeatRange{Start: s.RepeatRange.Start, End: s.RepeatRange.End},
		IsRepeatRange:  s.IsRepeatRange,
		IsRepeatTrack:  s.IsRepeatTrack,
		IsShuffle:      s.IsShuffle,
		CurrentTrackID: s.CurrentTrackID,
		Title:          s.Title,
		IsMediaReady:   s.IsMediaReady,
		Playlist:       m.store.Active(),
		Cursor:         m.ctrl.Cursor(),
		TS:             m.clock.NowUnix(),
	}
}

func (m *Module) publishState() error {
	s := m.ctrl.Snapshot()
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if s.Version < m.last.Version {
		return nil
	}
	return m.publishWire(m.wireState(s))
}

func (m *Module) publishWire(state lu.PlayerState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return m.client.Publish(lu.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

// onChange republishes state after every controller change and derives
// media events from the transition. Snapshots older than the last one
// handled are dropped.
func (m *Module) onChange(s player.State) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if s.Version <= m.last.Version {
		return
	}
	prev := m.last
	m.last = s

	if err := m.publishWire(m.wireState(s)); err != nil {
		m.log.Debug("publish state", zap.Error(err))
	}
	if s.IsMediaReady && (!prev.IsMediaReady || prev.CurrentTrackID != s.CurrentTrackID) {
		m.publishEvent(lu.EventMediaLoaded, s)
	}
	if s.Phase == player.PhaseEnded && prev.Phase != player.PhaseEnded {
		m.publishEvent(lu.EventMediaEnded, s)
	}
}

func (m *Module) publishEvent(eventType string, s player.State) {
	body, err := json.Marshal(lu.MediaEventBody{
		ID:       s.CurrentTrackID,
		Title:    s.Title,
		Duration: s.Duration,
		Playlist: m.store.Active(),
		Cursor:   m.ctrl.Cursor(),
	})
	if err != nil {
		return
	}
	payload, err := json.Marshal(lu.Event{Type: eventType, TS: m.clock.NowUnix(), Body: body})
	if err != nil {
		return
	}
	if err := m.client.Publish(lu.TopicEvents(m.config.TopicBase, m.config.NodeID), 1, false, payload); err != nil {
		m.log.Debug("publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (m *Module) handleMessage(data []byte) {
	var cmd lu.CommandEnvelope
	if err := json.Unmarshal(data, &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}

	m.mu.Lock()
	reply := m.dispatch(cmd)
	m.mu.Unlock()
	m.publishReply(cmd.ReplyTo, reply)
}

func (m *Module) publishReply(replyTo string, reply lu.ReplyEnvelope) {
	if replyTo != "" {
		payload, err := json.Marshal(reply)
		if err == nil {
			if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
				m.log.Debug("publish reply", zap.Error(err))
			}
		}
	}
	if err := m.publishState(); err != nil {
		m.log.Debug("publish state", zap.Error(err))
	}
}
