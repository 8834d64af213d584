package playernode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/internal/metrics"
	"github.com/mikey-austin/loop_utopia/internal/playlist"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

func (m *Module) dispatch(cmd lu.CommandEnvelope) lu.ReplyEnvelope {
	reply := m.route(cmd)
	result := "ok"
	if reply.Err != nil {
		result = reply.Err.Code
		m.log.Debug("command rejected",
			zap.String("type", cmd.Type),
			zap.String("code", reply.Err.Code),
			zap.String("message", reply.Err.Message),
		)
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Type, result).Inc()
	return reply
}

func (m *Module) route(cmd lu.CommandEnvelope) lu.ReplyEnvelope {
	if err := lu.ValidateCommandEnvelope(cmd); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, err.Error())
	}
	reply := lu.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   m.clock.NowUnix(),
	}

	switch cmd.Type {
	case lu.CmdMediaLoad:
		return m.mediaLoad(cmd, reply)
	case lu.CmdPlaybackPlay, lu.CmdPlaybackPause, lu.CmdPlaybackToggle,
		lu.CmdPlaybackSkipStart, lu.CmdPlaybackSkipEnd:
		return m.transport(cmd, reply)
	case lu.CmdPlaybackSeek:
		return m.seek(cmd, reply)
	case lu.CmdPlaybackSetVolume:
		return m.setVolume(cmd, reply)
	case lu.CmdPlaybackSetRepeatRange:
		return m.setRepeatRange(cmd, reply)
	case lu.CmdPlaybackSetRepeatRangeOn, lu.CmdPlaybackSetRepeatTrack, lu.CmdPlaybackSetShuffle:
		return m.toggle(cmd, reply)
	case lu.CmdPlaylistList:
		return withBody(reply, m.Playlists())
	case lu.CmdPlaylistGet:
		return m.playlistGet(cmd, reply)
	case lu.CmdPlaylistCreate:
		return m.playlistCreate(cmd, reply)
	case lu.CmdPlaylistDelete:
		return m.playlistDelete(cmd, reply)
	case lu.CmdPlaylistSelect:
		return m.playlistSelect(cmd, reply)
	case lu.CmdPlaylistAddTrack:
		return m.playlistAddTrack(cmd, reply)
	case lu.CmdPlaylistAddCurrent:
		return m.playlistAddCurrent(cmd, reply)
	case lu.CmdPlaylistRemoveTrack:
		return m.playlistRemoveTrack(cmd, reply)
	case lu.CmdPlaylistShuffle:
		return m.playlistShuffle(cmd, reply)
	case lu.CmdPlaylistPlay:
		return m.playlistPlay(cmd, reply)
	case lu.CmdStateGet:
		return withBody(reply, m.State())
	default:
		return m.errorReply(cmd, lu.CodeInvalid, "unsupported command")
	}
}

func (m *Module) mediaLoad(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.MediaLoadBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	id, restarted, err := m.ctrl.Submit(body.Input)
	if err != nil {
		if errors.Is(err, media.ErrInvalidIdentifier) {
			return m.errorReply(cmd, lu.CodeInvalid, err.Error())
		}
		return m.errorReply(cmd, lu.CodeInternal, err.Error())
	}
	m.log.Info("media submitted", zap.String("id", id), zap.Bool("restarted", restarted), zap.String("from", cmd.From))
	return withBody(reply, lu.MediaLoadReply{ID: id, Restarted: restarted})
}

func (m *Module) transport(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	if !m.ctrl.Snapshot().IsMediaReady {
		return m.errorReply(cmd, lu.CodeNotReady, "no media ready")
	}
	switch cmd.Type {
	case lu.CmdPlaybackPlay:
		m.ctrl.Play()
	case lu.CmdPlaybackPause:
		m.ctrl.Pause()
	case lu.CmdPlaybackToggle:
		m.ctrl.TogglePlay()
	case lu.CmdPlaybackSkipStart:
		m.ctrl.SkipToStart()
	case lu.CmdPlaybackSkipEnd:
		m.ctrl.SkipToEnd()
	}
	return withBody(reply, m.State())
}

func (m *Module) seek(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaybackSeekBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	if !m.ctrl.Snapshot().IsMediaReady {
		return m.errorReply(cmd, lu.CodeNotReady, "no media ready")
	}
	m.ctrl.Seek(body.Seconds)
	return withBody(reply, m.State())
}

func (m *Module) setVolume(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaybackSetVolumeBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	m.ctrl.SetVolume(body.Volume)
	return withBody(reply, m.State())
}

func (m *Module) setRepeatRange(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.RepeatRangeBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	if !m.ctrl.Snapshot().IsMediaReady {
		return m.errorReply(cmd, lu.CodeNotReady, "no media ready")
	}
	m.ctrl.SetRepeatRange(body.Start, body.End)
	return withBody(reply, m.State())
}

func (m *Module) toggle(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.ToggleBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	switch cmd.Type {
	case lu.CmdPlaybackSetRepeatRangeOn:
		if !m.ctrl.Snapshot().IsMediaReady {
			return m.errorReply(cmd, lu.CodeNotReady, "no media ready")
		}
		m.ctrl.SetRepeatRangeEnabled(body.Enabled)
	case lu.CmdPlaybackSetRepeatTrack:
		m.ctrl.SetRepeatTrack(body.Enabled)
	case lu.CmdPlaybackSetShuffle:
		m.ctrl.SetShuffle(body.Enabled)
	}
	return withBody(reply, m.State())
}

// Playlists summarizes every playlist in name order.
func (m *Module) Playlists() lu.PlaylistListReply {
	active := m.store.Active()
	names := m.store.Names()
	out := lu.PlaylistListReply{Active: active, Playlists: make([]lu.PlaylistSummary, 0, len(names))}
	for _, name := range names {
		tracks, _ := m.store.Tracks(name)
		out.Playlists = append(out.Playlists, lu.PlaylistSummary{
			Name:   name,
			Tracks: len(tracks),
			Active: name == active,
		})
	}
	return out
}

// Playlist returns the named playlist, or the active one for an empty name.
func (m *Module) Playlist(name string) (lu.PlaylistReply, bool) {
	active := m.store.Active()
	if strings.TrimSpace(name) == "" {
		name = active
	}
	tracks, ok := m.store.Tracks(name)
	if !ok {
		return lu.PlaylistReply{}, false
	}
	out := lu.PlaylistReply{Name: name, Active: name == active, Tracks: make([]lu.Track, 0, len(tracks))}
	for _, track := range tracks {
		out.Tracks = append(out.Tracks, lu.Track{ID: track.ID, Title: track.Title})
	}
	return out, true
}

func (m *Module) playlistReply(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope, name string) lu.ReplyEnvelope {
	pl, ok := m.Playlist(name)
	if !ok {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", name))
	}
	return withBody(reply, pl)
}

func (m *Module) playlistGet(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	return m.playlistReply(cmd, reply, body.Name)
}

func (m *Module) playlistCreate(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return m.errorReply(cmd, lu.CodeInvalid, "name required")
	}
	if !m.store.CreatePlaylist(name) {
		return m.errorReply(cmd, lu.CodeInvalid, fmt.Sprintf("playlist %q already exists", name))
	}
	return m.playlistReply(cmd, reply, name)
}

func (m *Module) playlistDelete(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	if !m.store.DeletePlaylist(body.Name) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", body.Name))
	}
	return withBody(reply, m.Playlists())
}

func (m *Module) playlistSelect(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	if !m.store.Select(body.Name) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", body.Name))
	}
	return m.playlistReply(cmd, reply, body.Name)
}

func (m *Module) playlistAddTrack(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistAddTrackBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	id, err := media.Parse(body.Input)
	if err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, err.Error())
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = id
		if s := m.ctrl.Snapshot(); s.CurrentTrackID == id && s.Title != "" {
			title = s.Title
		}
	}
	return m.addTrack(cmd, reply, body.Name, playlist.Track{ID: id, Title: title})
}

func (m *Module) playlistAddCurrent(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	video, ok := m.ctrl.CurrentVideo()
	if !ok {
		return m.errorReply(cmd, lu.CodeNotReady, "no media ready")
	}
	title := video.Title
	if title == "" {
		title = video.ID
	}
	return m.addTrack(cmd, reply, body.Name, playlist.Track{ID: video.ID, Title: title})
}

func (m *Module) addTrack(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope, name string, track playlist.Track) lu.ReplyEnvelope {
	if strings.TrimSpace(name) == "" {
		name = m.store.Active()
	}
	if !m.store.AddTrack(name, track) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", name))
	}
	return m.playlistReply(cmd, reply, name)
}

func (m *Module) playlistRemoveTrack(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistIndexBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	name := body.Name
	if strings.TrimSpace(name) == "" {
		name = m.store.Active()
	}
	if !m.store.RemoveTrack(name, body.Index) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("no track %d in playlist %q", body.Index, name))
	}
	return m.playlistReply(cmd, reply, name)
}

func (m *Module) playlistShuffle(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistNameBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	name := body.Name
	if strings.TrimSpace(name) == "" {
		name = m.store.Active()
	}
	if !m.store.Shuffle(name) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", name))
	}
	return m.playlistReply(cmd, reply, name)
}

func (m *Module) playlistPlay(cmd lu.CommandEnvelope, reply lu.ReplyEnvelope) lu.ReplyEnvelope {
	var body lu.PlaylistIndexBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, lu.CodeInvalid, "invalid body")
	}
	if strings.TrimSpace(body.Name) != "" && !m.store.Select(body.Name) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("playlist %q not found", body.Name))
	}
	if !m.ctrl.PlayFromList(body.Index) {
		return m.errorReply(cmd, lu.CodeNotFound, fmt.Sprintf("no track %d in playlist %q", body.Index, m.store.Active()))
	}
	return withBody(reply, m.State())
}

func withBody(reply lu.ReplyEnvelope, body any) lu.ReplyEnvelope {
	payload, err := json.Marshal(body)
	if err == nil {
		reply.Body = payload
	}
	return reply
}

func (m *Module) errorReply(cmd lu.CommandEnvelope, code string, message string) lu.ReplyEnvelope {
	return lu.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   m.clock.NowUnix(),
		Err: &lu.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
