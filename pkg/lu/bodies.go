package lu

// Empty is the body for commands without parameters.
type Empty struct{}

// MediaLoadBody is the payload for media.load. Input is a share, embed or
// watch link.
type MediaLoadBody struct {
	Input string `json:"input"`
}

// MediaLoadReply is returned by media.load.
type MediaLoadReply struct {
	ID        string `json:"id"`
	Restarted bool   `json:"restarted"`
}

// PlaybackSeekBody is the payload for playback.seek.
type PlaybackSeekBody struct {
	Seconds float64 `json:"seconds"`
}

// PlaybackSetVolumeBody is the payload for playback.setVolume, 0..100.
type PlaybackSetVolumeBody struct {
	Volume int `json:"volume"`
}

// RepeatRangeBody is the payload for playback.setRepeatRange.
type RepeatRangeBody struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ToggleBody carries an on/off flag for the repeat and shuffle commands.
type ToggleBody struct {
	Enabled bool `json:"enabled"`
}

// PlaylistNameBody names a playlist. An empty name means the active one
// where a command allows it.
type PlaylistNameBody struct {
	Name string `json:"name"`
}

// PlaylistAddTrackBody is the payload for playlist.addTrack.
type PlaylistAddTrackBody struct {
	Name  string `json:"name"`
	Input string `json:"input"`
	Title string `json:"title,omitempty"`
}

// PlaylistIndexBody addresses one track, for playlist.removeTrack and playlist.play.
type PlaylistIndexBody struct {
	Name  string `json:"name,omitempty"`
	Index int    `json:"index"`
}

// Track is a playlist entry.
type Track struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PlaylistSummary describes one playlist in a listing.
type PlaylistSummary struct {
	Name   string `json:"name"`
	Tracks int    `json:"tracks"`
	Active bool   `json:"active"`
}

// PlaylistListReply is returned by playlist.list.
type PlaylistListReply struct {
	Active    string            `json:"active"`
	Playlists []PlaylistSummary `json:"playlists"`
}

// PlaylistReply is returned by playlist.get and the playlist mutations.
type PlaylistReply struct {
	Name   string  `json:"name"`
	Active bool    `json:"active"`
	Tracks []Track `json:"tracks"`
}

// RepeatRange is a loop window in seconds.
type RepeatRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PlayerState is the retained state of a player node and the reply to state.get.
type PlayerState struct {
	Phase          string      `json:"phase"`
	CurrentTime    float64     `json:"currentTime"`
	Duration       float64     `json:"duration"`
	IsPlaying      bool        `json:"isPlaying"`
	Volume         int         `json:"volume"`
	RepeatRange    RepeatRange `json:"repeatRange"`
	IsRepeatRange  bool        `json:"isRepeatRange"`
	IsRepeatTrack  bool        `json:"isRepeatTrack"`
	IsShuffle      bool        `json:"isShuffle"`
	CurrentTrackID string      `json:"currentTrackId"`
	Title          string      `json:"title,omitempty"`
	IsMediaReady   bool        `json:"isMediaReady"`
	Playlist       string      `json:"playlist,omitempty"`
	Cursor         int         `json:"cursor"`
	TS             int64       `json:"ts"`
}

// MediaEventBody is the body of media.loaded and media.ended events.
type MediaEventBody struct {
	ID       string  `json:"id"`
	Title    string  `json:"title,omitempty"`
	Duration float64 `json:"duration"`
	Playlist string  `json:"playlist,omitempty"`
	Cursor   int     `json:"cursor"`
}
