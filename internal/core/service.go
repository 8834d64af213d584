package core

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/internal/ports"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// Service orchestrates lu CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListNodes returns presence entries, optionally filtered by kind.
func (s Service) ListNodes(ctx context.Context, kind string) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	return NodesResult{Nodes: filterPresenceByKind(nodes, kind)}, nil
}

// Status returns the retained player state.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	state, err := s.Broker.GetPlayerState(ctx, player.NodeID)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "get player state", err)
	}
	return StatusResult{Player: player, State: state}, nil
}

// WatchStatus streams state and events for a player.
func (s Service) WatchStatus(ctx context.Context, selector string) (<-chan lu.PlayerState, <-chan lu.Event, <-chan error, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return nil, nil, nil, err
	}
	states, events, errs := s.Broker.WatchPlayer(ctx, player.NodeID)
	return states, events, errs, nil
}

// Load asks a player to load the media named by input. Input without a
// recognizable identifier fails locally with a usage error.
func (s Service) Load(ctx context.Context, selector string, input string) (LoadResult, error) {
	if _, err := media.Parse(input); err != nil {
		return LoadResult{}, WrapError(ExitUsage, "invalid input", err)
	}
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return LoadResult{}, err
	}
	var reply lu.MediaLoadReply
	if err := s.call(ctx, player.NodeID, lu.CmdMediaLoad, lu.MediaLoadBody{Input: input}, &reply); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{PlayerID: player.NodeID, ID: reply.ID, Restarted: reply.Restarted}, nil
}

// Play sends playback.play.
func (s Service) Play(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, lu.CmdPlaybackPlay, lu.Empty{})
}

// Pause sends playback.pause.
func (s Service) Pause(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, lu.CmdPlaybackPause, lu.Empty{})
}

// Toggle sends playback.toggle.
func (s Service) Toggle(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, lu.CmdPlaybackToggle, lu.Empty{})
}

// SkipStart seeks to the beginning.
func (s Service) SkipStart(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, lu.CmdPlaybackSkipStart, lu.Empty{})
}

// SkipEnd seeks to just before the end.
func (s Service) SkipEnd(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, lu.CmdPlaybackSkipEnd, lu.Empty{})
}

// Seek moves to an absolute position, or relative to the current one when
// arg starts with + or -.
func (s Service) Seek(ctx context.Context, selector string, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return &CLIError{Code: ExitUsage, Msg: "seek position required"}
	}
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}

	var position float64
	if sign := arg[0]; sign == '+' || sign == '-' {
		delta, err := media.ParseTime(arg[1:])
		if err != nil {
			return WrapError(ExitUsage, "invalid seek offset", err)
		}
		if sign == '-' {
			delta = -delta
		}
		state, err := s.Broker.GetPlayerState(ctx, player.NodeID)
		if err != nil {
			return WrapError(ExitRuntime, "get player state", err)
		}
		position = state.CurrentTime + delta
		if position < 0 {
			position = 0
		}
	} else {
		position, err = media.ParseTime(arg)
		if err != nil {
			return WrapError(ExitUsage, "invalid seek position", err)
		}
	}
	return s.call(ctx, player.NodeID, lu.CmdPlaybackSeek, lu.PlaybackSeekBody{Seconds: position}, nil)
}

// SetVolume sets the volume, or adjusts it when arg starts with + or -.
func (s Service) SetVolume(ctx context.Context, selector string, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return &CLIError{Code: ExitUsage, Msg: "volume argument required"}
	}
	value, err := strconv.Atoi(arg)
	if err != nil {
		return &CLIError{Code: ExitUsage, Msg: "invalid volume"}
	}
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		state, err := s.Broker.GetPlayerState(ctx, player.NodeID)
		if err != nil {
			return WrapError(ExitRuntime, "get player state", err)
		}
		value += state.Volume
	}
	return s.call(ctx, player.NodeID, lu.CmdPlaybackSetVolume, lu.PlaybackSetVolumeBody{Volume: clampVolume(value)}, nil)
}

func clampVolume(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// SetRepeatRange sets the loop window from two positions.
func (s Service) SetRepeatRange(ctx context.Context, selector string, startArg string, endArg string) error {
	start, err := media.ParseTime(startArg)
	if err != nil {
		return WrapError(ExitUsage, "invalid range start", err)
	}
	end, err := media.ParseTime(endArg)
	if err != nil {
		return WrapError(ExitUsage, "invalid range end", err)
	}
	if start > end {
		return &CLIError{Code: ExitUsage, Msg: "range start must not be after end"}
	}
	return s.simple(ctx, selector, lu.CmdPlaybackSetRepeatRange, lu.RepeatRangeBody{Start: start, End: end})
}

// SetRepeatRangeEnabled turns range looping on or off.
func (s Service) SetRepeatRangeEnabled(ctx context.Context, selector string, enabled bool) error {
	return s.simple(ctx, selector, lu.CmdPlaybackSetRepeatRangeOn, lu.ToggleBody{Enabled: enabled})
}

// SetRepeatTrack turns single track repeat on or off.
func (s Service) SetRepeatTrack(ctx context.Context, selector string, enabled bool) error {
	return s.simple(ctx, selector, lu.CmdPlaybackSetRepeatTrack, lu.ToggleBody{Enabled: enabled})
}

// SetShuffle records the shuffle preference.
func (s Service) SetShuffle(ctx context.Context, selector string, enabled bool) error {
	return s.simple(ctx, selector, lu.CmdPlaybackSetShuffle, lu.ToggleBody{Enabled: enabled})
}

// PlaylistList returns the playlists on a player.
func (s Service) PlaylistList(ctx context.Context, selector string) (PlaylistListResult, error) {
	var reply lu.PlaylistListReply
	if err := s.resolveAndCall(ctx, selector, lu.CmdPlaylistList, lu.Empty{}, &reply); err != nil {
		return PlaylistListResult{}, err
	}
	return PlaylistListResult{Active: reply.Active, Playlists: reply.Playlists}, nil
}

// PlaylistShow returns one playlist. An empty name shows the active one.
func (s Service) PlaylistShow(ctx context.Context, selector string, name string) (PlaylistResult, error) {
	return s.playlistCall(ctx, selector, lu.CmdPlaylistGet, lu.PlaylistNameBody{Name: name})
}

// PlaylistCreate adds an empty playlist.
func (s Service) PlaylistCreate(ctx context.Context, selector string, name string) (PlaylistResult, error) {
	if err := requireName(name); err != nil {
		return PlaylistResult{}, err
	}
	return s.playlistCall(ctx, selector, lu.CmdPlaylistCreate, lu.PlaylistNameBody{Name: name})
}

// PlaylistDelete removes a playlist.
func (s Service) PlaylistDelete(ctx context.Context, selector string, name string) error {
	if err := requireName(name); err != nil {
		return err
	}
	return s.simple(ctx, selector, lu.CmdPlaylistDelete, lu.PlaylistNameBody{Name: name})
}

// PlaylistSelect makes a playlist the active one.
func (s Service) PlaylistSelect(ctx context.Context, selector string, name string) (PlaylistResult, error) {
	if err := requireName(name); err != nil {
		return PlaylistResult{}, err
	}
	return s.playlistCall(ctx, selector, lu.CmdPlaylistSelect, lu.PlaylistNameBody{Name: name})
}

// PlaylistAdd appends the media named by input to a playlist.
func (s Service) PlaylistAdd(ctx context.Context, selector string, name string, input string, title string) (PlaylistResult, error) {
	if _, err := media.Parse(input); err != nil {
		return PlaylistResult{}, WrapError(ExitUsage, "invalid input", err)
	}
	return s.playlistCall(ctx, selector, lu.CmdPlaylistAddTrack, lu.PlaylistAddTrackBody{Name: name, Input: input, Title: title})
}

// PlaylistAddCurrent appends the loaded media to a playlist.
func (s Service) PlaylistAddCurrent(ctx context.Context, selector string, name string) (PlaylistResult, error) {
	return s.playlistCall(ctx, selector, lu.CmdPlaylistAddCurrent, lu.PlaylistNameBody{Name: name})
}

// PlaylistRemove removes the track at index.
func (s Service) PlaylistRemove(ctx context.Context, selector string, name string, index int) (PlaylistResult, error) {
	if index < 0 {
		return PlaylistResult{}, &CLIError{Code: ExitUsage, Msg: "index must not be negative"}
	}
	return s.playlistCall(ctx, selector, lu.CmdPlaylistRemoveTrack, lu.PlaylistIndexBody{Name: name, Index: index})
}

// PlaylistShuffle reorders a playlist at random.
func (s Service) PlaylistShuffle(ctx context.Context, selector string, name string) (PlaylistResult, error) {
	return s.playlistCall(ctx, selector, lu.CmdPlaylistShuffle, lu.PlaylistNameBody{Name: name})
}

// PlaylistPlay plays the track at index, selecting name first when given.
func (s Service) PlaylistPlay(ctx context.Context, selector string, name string, index int) error {
	if index < 0 {
		return &CLIError{Code: ExitUsage, Msg: "index must not be negative"}
	}
	return s.simple(ctx, selector, lu.CmdPlaylistPlay, lu.PlaylistIndexBody{Name: name, Index: index})
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &CLIError{Code: ExitUsage, Msg: "playlist name required"}
	}
	return nil
}

func (s Service) playlistCall(ctx context.Context, selector string, cmdType string, body any) (PlaylistResult, error) {
	var reply lu.PlaylistReply
	if err := s.resolveAndCall(ctx, selector, cmdType, body, &reply); err != nil {
		return PlaylistResult{}, err
	}
	return PlaylistResult{Playlist: reply}, nil
}

func (s Service) simple(ctx context.Context, selector string, cmdType string, body any) error {
	return s.resolveAndCall(ctx, selector, cmdType, body, nil)
}

func (s Service) resolveAndCall(ctx context.Context, selector string, cmdType string, body any, out any) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	return s.call(ctx, player.NodeID, cmdType, body, out)
}

// call publishes one command and decodes the reply body into out when set.
func (s Service) call(ctx context.Context, nodeID string, cmdType string, body any, out any) error {
	cmd, err := lu.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return WrapError(ExitRuntime, "player did not reply", err)
		}
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	if !reply.OK {
		return &CLIError{Code: ExitRuntime, Msg: "command rejected"}
	}
	if out == nil || len(reply.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Body, out); err != nil {
		return WrapError(ExitRuntime, "decode reply", err)
	}
	return nil
}

func (s Service) decorateCommand(cmd lu.CommandEnvelope) lu.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}
