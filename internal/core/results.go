package core

import "github.com/mikey-austin/loop_utopia/pkg/lu"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []lu.Presence
}

// StatusResult holds player presence and state.
type StatusResult struct {
	Player lu.Presence
	State  lu.PlayerState
}

// LoadResult reports what a player loaded.
type LoadResult struct {
	PlayerID  string
	ID        string
	Restarted bool
}

// PlaylistListResult holds playlist summaries.
type PlaylistListResult struct {
	Active    string
	Playlists []lu.PlaylistSummary
}

// PlaylistResult holds one playlist with its tracks.
type PlaylistResult struct {
	Playlist lu.PlaylistReply
}
