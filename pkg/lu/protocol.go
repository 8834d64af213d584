package lu

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "lu/v1"

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// Reply error codes.
const (
	CodeInvalid  = "INVALID"
	CodeNotFound = "NOT_FOUND"
	CodeNotReady = "NOT_READY"
	CodeInternal = "INTERNAL"
)

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	EPs    map[string]any `json:"endpoints,omitempty"`
	TS     int64          `json:"ts"`
}

// Event is a player event payload.
type Event struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Event types published on the events topic.
const (
	EventMediaLoaded = "media.loaded"
	EventMediaEnded  = "media.ended"
)

// Command types understood by a player node.
const (
	CmdMediaLoad                = "media.load"
	CmdPlaybackPlay             = "playback.play"
	CmdPlaybackPause            = "playback.pause"
	CmdPlaybackToggle           = "playback.toggle"
	CmdPlaybackSeek             = "playback.seek"
	CmdPlaybackSkipStart        = "playback.skipStart"
	CmdPlaybackSkipEnd          = "playback.skipEnd"
	CmdPlaybackSetVolume        = "playback.setVolume"
	CmdPlaybackSetRepeatRange   = "playback.setRepeatRange"
	CmdPlaybackSetRepeatRangeOn = "playback.setRepeatRangeEnabled"
	CmdPlaybackSetRepeatTrack   = "playback.setRepeatTrack"
	CmdPlaybackSetShuffle       = "playback.setShuffle"
	CmdPlaylistList             = "playlist.list"
	CmdPlaylistGet              = "playlist.get"
	CmdPlaylistCreate           = "playlist.create"
	CmdPlaylistDelete           = "playlist.delete"
	CmdPlaylistSelect           = "playlist.select"
	CmdPlaylistAddTrack         = "playlist.addTrack"
	CmdPlaylistAddCurrent       = "playlist.addCurrent"
	CmdPlaylistRemoveTrack      = "playlist.removeTrack"
	CmdPlaylistShuffle          = "playlist.shuffle"
	CmdPlaylistPlay             = "playlist.play"
	CmdStateGet                 = "state.get"
)

var knownCommands = map[string]struct{}{
	CmdMediaLoad: {}, CmdPlaybackPlay: {}, CmdPlaybackPause: {}, CmdPlaybackToggle: {},
	CmdPlaybackSeek: {}, CmdPlaybackSkipStart: {}, CmdPlaybackSkipEnd: {}, CmdPlaybackSetVolume: {},
	CmdPlaybackSetRepeatRange: {}, CmdPlaybackSetRepeatRangeOn: {}, CmdPlaybackSetRepeatTrack: {},
	CmdPlaybackSetShuffle: {}, CmdPlaylistList: {}, CmdPlaylistGet: {}, CmdPlaylistCreate: {},
	CmdPlaylistDelete: {}, CmdPlaylistSelect: {}, CmdPlaylistAddTrack: {}, CmdPlaylistAddCurrent: {},
	CmdPlaylistRemoveTrack: {}, CmdPlaylistShuffle: {}, CmdPlaylistPlay: {}, CmdStateGet: {},
}

// KnownCommand reports whether cmdType is part of the protocol.
func KnownCommand(cmdType string) bool {
	_, ok := knownCommands[cmdType]
	return ok
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
