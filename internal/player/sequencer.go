package player

import "github.com/mikey-austin/loop_utopia/internal/playlist"

// Library is the read side of the playlist store used for sequencing.
type Library interface {
	Active() string
	Tracks(name string) ([]playlist.Track, bool)
	Track(name string, index int) (playlist.Track, bool)
}

// Sequencer picks the next track from the active playlist when one ends.
// Shuffle is not applied here; a shuffled playlist is simply walked in order.
type Sequencer struct {
	lib    Library
	cursor int
}

// NewSequencer creates a sequencer reading from lib. A nil lib never yields a track.
func NewSequencer(lib Library) *Sequencer {
	return &Sequencer{lib: lib}
}

// Cursor returns the index of the current track in the active playlist.
func (s *Sequencer) Cursor() int {
	return s.cursor
}

// MoveTo sets the cursor.
func (s *Sequencer) MoveTo(index int) {
	if index < 0 {
		index = 0
	}
	s.cursor = index
}

// Next advances the cursor with wraparound and returns the track there.
// It reports false when the active playlist is missing or empty.
func (s *Sequencer) Next() (playlist.Track, bool) {
	if s.lib == nil {
		return playlist.Track{}, false
	}
	tracks, ok := s.lib.Tracks(s.lib.Active())
	if !ok || len(tracks) == 0 {
		return playlist.Track{}, false
	}
	s.cursor = NextIndex(s.cursor, len(tracks))
	return tracks[s.cursor], true
}

// NextIndex returns (current+1) mod length, or 0 for an empty list.
func NextIndex(current int, length int) int {
	if length <= 0 {
		return 0
	}
	if current < 0 {
		current = -1
	}
	return (current + 1) % length
}
